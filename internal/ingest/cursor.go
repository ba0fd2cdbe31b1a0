package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// CursorStore persists the opaque pagination token at a fixed path so an
// interrupted ingestion run can resume. An absent file means "start fresh".
type CursorStore struct {
	path string
}

// NewCursorStore creates a cursor store backed by the given file path.
func NewCursorStore(path string) *CursorStore {
	return &CursorStore{path: path}
}

// Load returns the persisted cursor token, or "" if none exists.
func (s *CursorStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "cursor: read %s", s.path)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the cursor token, creating parent directories as needed.
func (s *CursorStore) Save(token string) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "cursor: create dir %s", dir)
		}
	}
	if err := os.WriteFile(s.path, []byte(token), 0o644); err != nil {
		return eris.Wrapf(err, "cursor: write %s", s.path)
	}
	return nil
}

// Clear removes the persisted cursor so the next run starts fresh.
func (s *CursorStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "cursor: remove %s", s.path)
	}
	return nil
}
