package webhook

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"tools.zach/dev/modwatch/internal/atomicfile"
)

const replacesPrefix = "replaces "

// StoredID is the content of the id file.
type StoredID struct {
	// ID is the message the daemon posted.
	ID string
	// Replaces is the configured message id that was rejected before ID was
	// posted. Empty when ID was not a replacement.
	Replaces string
}

// IDStore persists the id of the published message between runs. The file
// holds the id on its first line and an optional "replaces <id>" line.
type IDStore struct {
	Path string
}

// Load returns the stored id, or "" when none has been stored yet.
func (s *IDStore) Load() (string, error) {
	rec, err := s.LoadRecord()
	return rec.ID, err
}

// LoadRecord returns the full stored record. A missing file yields the zero
// value.
func (s *IDStore) LoadRecord() (StoredID, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StoredID{}, nil
		}
		return StoredID{}, fmt.Errorf("reading message id: %w", err)
	}

	var rec StoredID
	lines := strings.Split(string(data), "\n")
	rec.ID = strings.TrimSpace(lines[0])
	for _, line := range lines[1:] {
		if r, ok := strings.CutPrefix(strings.TrimSpace(line), replacesPrefix); ok {
			rec.Replaces = strings.TrimSpace(r)
		}
	}
	return rec, nil
}

// Save replaces the stored id.
func (s *IDStore) Save(id string) error {
	return s.SaveRecord(StoredID{ID: id})
}

// SaveRecord replaces the stored record.
func (s *IDStore) SaveRecord(rec StoredID) error {
	content := rec.ID + "\n"
	if rec.Replaces != "" {
		content += replacesPrefix + rec.Replaces + "\n"
	}
	if err := atomicfile.Write(s.Path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("saving message id: %w", err)
	}
	return nil
}
