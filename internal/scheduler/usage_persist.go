package scheduler

import (
	"encoding/json"
	"os"
	"path/filepath"
)

type usageRecord struct {
	LastUsedUnix int64 `json:"last_used_unix"`
	UseCount     int   `json:"use_count"`
	SizeMB       int   `json:"size_mb"`
}

func (s *Scheduler) loadUsage() {
	if s.statePath == "" {
		return
	}
	f, err := os.Open(s.statePath)
	if err != nil {
		return
	}
	defer f.Close()
	var data map[string]usageRecord
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		s.log.Warn().Err(err).Str("path", s.statePath).Msg("ignoring unreadable usage state")
		return
	}
	s.saved = data
}

// Save writes LRU usage to StatePath so eviction order survives a restart.
// It is a no-op when StatePath is empty.
func (s *Scheduler) Save() error {
	if s.statePath == "" {
		return nil
	}
	s.mu.Lock()
	snap := make(map[string]usageRecord, len(s.slots))
	for name, sl := range s.slots {
		if sl.lastUsed.IsZero() {
			continue
		}
		snap[name] = usageRecord{LastUsedUnix: sl.lastUsed.Unix(), UseCount: sl.useCount, SizeMB: sl.SizeMB}
	}
	s.mu.Unlock()
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.statePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.statePath, b, 0o644)
}
