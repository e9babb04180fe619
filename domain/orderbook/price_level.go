package orderbook

// PriceLevel is a FIFO queue of resting orders at one price, kept as an
// intrusive doubly linked list so removal from the middle is O(1) once the
// order is in hand. TotalQty and OrderCount track remaining quantity so
// depth aggregation never rescans the queue.
type PriceLevel struct {
	Price      int64
	TotalQty   int64
	OrderCount int

	head *Order
	tail *Order
}

func (p *PriceLevel) Head() *Order { return p.head }

func (p *PriceLevel) Empty() bool { return p.head == nil }

// Orders returns the queue in arrival (priority) order.
func (p *PriceLevel) Orders() []*Order {
	out := make([]*Order, 0, p.OrderCount)
	for o := p.head; o != nil; o = o.next {
		out = append(out, o)
	}
	return out
}

func (p *PriceLevel) enqueue(o *Order) {
	o.next = nil
	o.prev = nil
	if p.head == nil {
		p.head = o
		p.tail = o
	} else {
		p.tail.next = o
		o.prev = p.tail
		p.tail = o
	}
	p.TotalQty += o.RemainingQty
	p.OrderCount++
}

func (p *PriceLevel) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	o.next = nil
	o.prev = nil
	p.TotalQty -= o.RemainingQty
	p.OrderCount--
	if p.TotalQty < 0 {
		p.TotalQty = 0
	}
}
