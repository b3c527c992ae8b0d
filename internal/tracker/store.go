package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"tools.zach/dev/modwatch/internal/atomicfile"
	"tools.zach/dev/modwatch/internal/migrate"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// DateLayout is the layout of [Store.Date].
const DateLayout = "2006-01-02"

// Record is the session state of one moderator for the tracked day.
type Record struct {
	// FirstSeen is the start of the current continuous session.
	FirstSeen time.Time `json:"firstSeen"`
	// LastSeen is the latest sample that saw the moderator online.
	LastSeen time.Time `json:"lastSeen"`
	// Undercover is sticky: once set it stays set (see [MergeSticky]).
	Undercover bool `json:"undercover"`
	// Online reports whether the latest sample contained the moderator.
	Online bool `json:"online"`
}

// Duration is the length of the current (or last) session.
func (r *Record) Duration() time.Duration {
	return r.LastSeen.Sub(r.FirstSeen)
}

// Store maps canonical moderator names to their [Record] for one local
// calendar day. All records belong to Date; a new day starts from an empty
// store.
type Store struct {
	Version    int                `json:"$version"`
	Date       string             `json:"date"`
	Moderators map[string]*Record `json:"moderators"`
}

// NewStore returns an empty store for date.
func NewStore(date string) *Store {
	return &Store{
		Version:    migrate.Store.CurrentVersion,
		Date:       date,
		Moderators: make(map[string]*Record),
	}
}

// DateKey returns the calendar date of now in loc, formatted with
// [DateLayout]. A nil loc means UTC.
func DateKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}

// ///////////////////////////////////////////////
// Store I/O
// ///////////////////////////////////////////////

// Load reads the store at path for the day today.
//
// Load always returns a usable store. A missing file or a store from another
// day gives a fresh empty store and a nil error. A file that cannot be decoded
// is copied to path+".corrupted" and a fresh store is returned together with
// an error describing the damage, which callers log and otherwise ignore.
func Load(path, today string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewStore(today), nil
		}
		return NewStore(today), fmt.Errorf("reading session store: %w", err)
	}

	s, err := decodeStore(data)
	if err != nil {
		return NewStore(today), backupCorrupted(path, data, err)
	}

	if s.Date != today {
		slog.Info("session store rolled over", "stored_date", s.Date, "today", today, "moderators", len(s.Moderators))
		return NewStore(today), nil
	}
	return s, nil
}

// decodeStore parses data, running store migrations first when the file was
// written by an older schema.
func decodeStore(data []byte) (*Store, error) {
	var peek struct {
		Version int `json:"$version"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, fmt.Errorf("decoding session store: %w", err)
	}
	if peek.Version == 0 {
		peek.Version = 1
	}
	if peek.Version > migrate.Store.CurrentVersion {
		return nil, fmt.Errorf("session store version %d is newer than supported %d", peek.Version, migrate.Store.CurrentVersion)
	}
	if migrate.Store.NeedsMigration(peek.Version) {
		migrated, _, err := migrate.Store.Run(data, peek.Version)
		if err != nil {
			return nil, fmt.Errorf("migrating session store: %w", err)
		}
		data = migrated
	}

	var s Store
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session store: %w", err)
	}
	if s.Date == "" {
		return nil, errors.New("session store has no date")
	}
	if s.Moderators == nil {
		s.Moderators = make(map[string]*Record)
	}
	for name, r := range s.Moderators {
		if r == nil {
			return nil, fmt.Errorf("session store has empty record for %q", name)
		}
	}
	s.Version = migrate.Store.CurrentVersion
	return &s, nil
}

// backupCorrupted keeps a copy of an unreadable store for inspection and
// returns the error the caller should log.
func backupCorrupted(path string, data []byte, cause error) error {
	corruptedPath := path + ".corrupted"
	if err := os.WriteFile(corruptedPath, data, 0o600); err != nil {
		slog.Warn("failed to back up corrupted session store", "path", corruptedPath, "error", err)
	}
	return fmt.Errorf("corrupted session store (backed up to %s): %w", corruptedPath, cause)
}

// Save writes s to path, replacing the previous snapshot atomically.
func Save(path string, s *Store) error {
	if err := atomicfile.WriteJSON(path, s, 0o600); err != nil {
		return fmt.Errorf("saving session store: %w", err)
	}
	return nil
}
