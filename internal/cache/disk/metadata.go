package disk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// metadataFormatVersion tags the on-disk metadata schema so a future
// incompatible change can be detected rather than silently misread.
const metadataFormatVersion = 1

// metadata is the on-disk record written alongside each value file. It
// carries the original key so a lookup can detect a hash collision, and an
// optional expiry for TTL enforcement.
type metadata struct {
	Version     int       `json:"version"`
	OriginalKey string    `json:"original_key"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

func (m metadata) expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}

// writeAtomic writes data to path by first writing to a sibling temp file
// and renaming it into place, so a crash mid-write never leaves a
// half-written file observable at path.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func writeMetadata(path string, m metadata) error {
	m.Version = metadataFormatVersion
	encoded, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return writeAtomic(path, encoded)
}

func readMetadata(path string) (metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return metadata{}, err
	}
	var m metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return metadata{}, fmt.Errorf("unmarshal metadata %s: %w", filepath.Base(path), err)
	}
	return m, nil
}
