package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadLatest scans the directory and returns the snapshot with the
// greatest sequence in its name, or nil when none exists.
func (s *Store) LoadLatest() (*Snapshot, error) {
	if s.dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var latest string
	var latestSeq uint64
	for _, e := range entries {
		var seq uint64
		n, _ := fmt.Sscanf(e.Name(), "snapshot_%d.json", &seq)
		if n == 1 && seq > latestSeq {
			latestSeq = seq
			latest = e.Name()
		}
	}
	if latest == "" {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, latest))
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	s.lastSeq = snap.Sequence
	return &snap, nil
}
