// Package config loads and persists the bot's configuration file: the bot
// token, command prefix, owner-bypass identity, per-command permission
// entries, and the autoreply map. The file is JSON; a missing file is
// replaced by the default tree and written back so a fresh install always
// starts from a well-formed config. Process-level knobs (paths, addresses,
// log settings) stay in the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Permissions is a per-command pair of allow lists holding role and user IDs.
type Permissions struct {
	Roles []string `json:"roles"`
	Users []string `json:"users"`
}

// Command is the configuration subtree for one command name.
type Command struct {
	Permissions Permissions `json:"permissions"`
	// LogText controls whether the deletion audit stores message text.
	// Only meaningful on the "taggeth" entry.
	LogText bool `json:"logText,omitempty"`
}

// File is the full on-disk configuration tree.
type File struct {
	Token         string `json:"token"`
	CommandPrefix string `json:"commandPrefix"`
	// Owner (format User#1234) bypasses every permission check. Meant for
	// bootstrapping only; blank it once real permissions are in place.
	Owner         string              `json:"owner"`
	Commands      map[string]*Command `json:"commands"`
	AutoreplyUser map[string]string   `json:"autoreplyUser"`
}

// Store wraps a File with its path and a mutex so command handlers running
// on separate goroutines can read and mutate it safely. Every mutation is
// expected to be followed by Save.
type Store struct {
	mu   sync.Mutex
	path string
	file File
}

func defaultFile() File {
	return File{
		CommandPrefix: ".",
		Commands: map[string]*Command{
			"count":   {},
			"allow":   {},
			"taggeth": {},
		},
		AutoreplyUser: map[string]string{},
	}
}

// Load reads the configuration file at path, falling back to CONFIG_PATH or
// "config.json" when path is empty. A missing file is created from the
// default tree (load-or-default-then-persist). Any other read or decode
// failure is returned as-is: a corrupt config should stop the process, not
// silently reset permissions.
func Load(path string) (*Store, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.json"
	}
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.file = defaultFile()
		if err := s.Save(); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		slog.Info("created default config file", slog.String("path", path))
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(raw, &s.file); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if s.file.Commands == nil {
		s.file.Commands = map[string]*Command{}
	}
	if s.file.AutoreplyUser == nil {
		s.file.AutoreplyUser = map[string]string{}
	}
	return s, nil
}

// Save writes the tree back to disk atomically: marshal to a temp file in
// the same directory, then rename over the target. A crash mid-save leaves
// either the old or the new file, never a torn one.
func (s *Store) Save() error {
	s.mu.Lock()
	raw, err := json.MarshalIndent(&s.file, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Token returns the bot token.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Token
}

// Prefix returns the command prefix, defaulting to "." when unset.
func (s *Store) Prefix() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file.CommandPrefix == "" {
		return "."
	}
	return s.file.CommandPrefix
}

// Owner returns the owner-bypass identity (empty when disabled).
func (s *Store) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Owner
}

// CommandPermissions returns a copy of the permission entry for a command.
// A command with no entry yields empty sets (nothing authorized) and a
// warning, never an error: a malformed or incomplete config degrades to
// "deny" rather than crashing the bot.
func (s *Store) CommandPermissions(command string) Permissions {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.file.Commands[command]
	if !ok {
		slog.Warn("no config entry for command, denying", slog.String("command", command))
		return Permissions{}
	}
	return Permissions{
		Roles: slices.Clone(c.Permissions.Roles),
		Users: slices.Clone(c.Permissions.Users),
	}
}

// SetPermission adds or removes an ID from a command's role or user list and
// reports whether the tree changed. The entry is created lazily when a grant
// targets a command with no entry yet.
func (s *Store) SetPermission(command string, role bool, id string, allow bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.file.Commands[command]
	if !ok {
		if !allow {
			return false
		}
		c = &Command{}
		s.file.Commands[command] = c
	}
	list := &c.Permissions.Users
	if role {
		list = &c.Permissions.Roles
	}
	has := slices.Contains(*list, id)
	switch {
	case allow && !has:
		*list = append(*list, id)
	case !allow && has:
		*list = slices.DeleteFunc(*list, func(v string) bool { return v == id })
	default:
		return false
	}
	return true
}

// LogDeletedText reports whether the deletion audit should store message
// text (the commands.taggeth.logText toggle).
func (s *Store) LogDeletedText() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.file.Commands["taggeth"]; ok {
		return c.LogText
	}
	return false
}

// Autoreply returns the configured reply text for a display name, if any.
func (s *Store) Autoreply(displayName string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.file.AutoreplyUser[displayName]
	return text, ok
}
