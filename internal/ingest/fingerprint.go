package ingest

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Fingerprint is a cheap change signature: size plus modification time.
// It exists to skip redundant reprocessing, not as a correctness store.
type Fingerprint struct {
	Size    int64 `json:"size"`
	ModTime int64 `json:"mod_time_unix_nano"`
}

// FingerprintCache persists path -> fingerprint across restarts.
type FingerprintCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]Fingerprint
}

type fingerprintState struct {
	Entries     map[string]Fingerprint `json:"entries"`
	LastUpdated time.Time              `json:"last_updated"`
}

// LoadFingerprints reads the cache from dir/fingerprints.json, starting
// empty when the file does not exist.
func LoadFingerprints(dir string) (*FingerprintCache, error) {
	c := &FingerprintCache{
		path:    filepath.Join(dir, "fingerprints.json"),
		entries: make(map[string]Fingerprint),
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}

	var state fingerprintState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Entries != nil {
		c.entries = state.Entries
	}
	return c, nil
}

// Save writes the cache back to disk.
func (c *FingerprintCache) Save() error {
	c.mu.Lock()
	state := fingerprintState{
		Entries:     make(map[string]Fingerprint, len(c.entries)),
		LastUpdated: time.Now(),
	}
	for k, v := range c.entries {
		state.Entries[k] = v
	}
	c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}

// Unchanged reports whether the file's current size and mtime match the
// stored fingerprint.
func (c *FingerprintCache) Unchanged(path string, info fs.FileInfo) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	fp, ok := c.entries[path]
	if !ok {
		return false
	}
	return fp.Size == info.Size() && fp.ModTime == info.ModTime().UnixNano()
}

// Remember stores the file's current fingerprint.
func (c *FingerprintCache) Remember(path string, info fs.FileInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = Fingerprint{Size: info.Size(), ModTime: info.ModTime().UnixNano()}
}

// Forget drops the fingerprint for a deleted or moved file.
func (c *FingerprintCache) Forget(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Len returns the number of stored fingerprints.
func (c *FingerprintCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
