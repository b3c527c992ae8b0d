// Package paths centralizes the file names modwatch keeps in its data
// directory. Every other package builds paths through [DataDir].
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile       = "daemon.pid"
	ConfigFile    = "config.toml"
	LogFile       = "daemon.log"
	SessionsFile  = "sessions.json"
	MessageIDFile = "message-id.txt"
)

const (
	BinaryName = "modwatch"
	DataDirRel = ".modwatch" // relative to $HOME
)

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// Sessions returns the full path to the daily session store.
func (d DataDir) Sessions() string { return filepath.Join(d.Root, SessionsFile) }

// MessageID returns the full path to the persisted webhook message identifier.
func (d DataDir) MessageID() string { return filepath.Join(d.Root, MessageIDFile) }
