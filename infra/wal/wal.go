package wal

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"

	"hermes/infra/sequence"
)

const maxLineBytes = 1 << 20

// WAL is the append-only event log: one JSON object per line, flushed
// after every append so a reader that opens the file afresh sees it.
// Without a path it degrades to a no-op sink that still mints sequence
// numbers. Appends are serialized internally; in this system only the
// engine writes.
type WAL struct {
	path string
	file *os.File
	mu   sync.Mutex
	seq  *sequence.Sequencer
	log  *zap.Logger
}

// Open sets up the log at path, or a disabled sink when path is empty.
// An open failure is absorbed: the engine keeps running without
// durability, which the current contract tolerates.
func Open(path string, log *zap.Logger) *WAL {
	if log == nil {
		log = zap.NewNop()
	}
	w := &WAL{path: path, seq: sequence.New(0), log: log}
	if path == "" {
		return w
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Warn("event log open failed, running without durability",
			zap.String("path", path), zap.Error(err))
		return w
	}
	w.file = f
	return w
}

// NextSequence mints the next sequence number.
func (w *WAL) NextSequence() uint64 { return w.seq.Next() }

// CurrentSequence returns the largest sequence minted so far.
func (w *WAL) CurrentSequence() uint64 { return w.seq.Current() }

// ResetSequence repositions the sequencer after recovery so new events
// continue strictly after everything already on disk.
func (w *WAL) ResetSequence(v uint64) { w.seq.Reset(v) }

// Append writes one event record and flushes it to stable storage.
func (w *WAL) Append(e Event) error {
	if w.file == nil {
		return nil
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return err
	}
	return w.file.Sync()
}

// ReadAll streams every record currently on disk.
func (w *WAL) ReadAll() []Event {
	return w.ReadFrom(0)
}

// ReadFrom streams records with sequence >= start. Malformed and empty
// lines are skipped.
func (w *WAL) ReadFrom(start uint64) []Event {
	if w.path == "" {
		return nil
	}

	f, err := os.Open(w.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var events []Event
	skipped := 0

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			skipped++
			continue
		}
		if e.Sequence >= start {
			events = append(events, e)
		}
	}

	if skipped > 0 {
		w.log.Warn("skipped malformed event log lines",
			zap.String("path", w.path), zap.Int("count", skipped))
	}
	return events
}

// Close flushes and releases the file handle.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		w.file = nil
		return err
	}
	err := w.file.Close()
	w.file = nil
	return err
}
