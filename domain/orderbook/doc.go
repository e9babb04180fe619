// Package orderbook holds the engine's value types and the per-symbol
// limit order book: a red-black tree of price levels per side with FIFO
// queues inside each level. The book is a single-writer structure; all
// mutation happens on the engine goroutine.
package orderbook
