// Package permission gatekeeps bot commands. Every command has a pair of
// allow lists (role IDs, user IDs) in the config tree; an actor is
// authorized when their ID or any of their roles is listed, or when they
// match the global owner-bypass identity. A command with no entry denies
// everyone but the owner.
package permission

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/onnwee/guild-tender/config"
	"github.com/onnwee/guild-tender/platform"
)

// TargetKind selects which allow list a grant operates on.
type TargetKind string

const (
	TargetRole TargetKind = "role"
	TargetUser TargetKind = "user"
)

// Store answers authorization checks and applies grants against the
// configuration tree, persisting synchronously after every mutation.
type Store struct {
	cfg *config.Store
}

// NewStore returns a Store backed by the given config.
func NewStore(cfg *config.Store) *Store {
	return &Store{cfg: cfg}
}

// IsAuthorized reports whether the member may execute the named command.
// The command name is always passed explicitly by the caller; nothing here
// inspects the call stack. The role scan short-circuits on the first match,
// in the member's own role order.
func (s *Store) IsAuthorized(m platform.Member, command string) bool {
	if owner := s.cfg.Owner(); owner != "" && m.Tag() == owner {
		slog.Warn("permission bypass by owner, blank this config entry once real permissions are set",
			slog.String("owner", owner), slog.String("command", command))
		return true
	}
	perms := s.cfg.CommandPermissions(command)
	if slices.Contains(perms.Users, m.ID) {
		return true
	}
	for _, rid := range m.RoleIDs {
		if slices.Contains(perms.Roles, rid) {
			return true
		}
	}
	return false
}

// Grant adds (allow=true) or removes (allow=false) an identity from the
// command's allow list for the given kind. It is idempotent: granting an
// already-granted identity or revoking an absent one changes nothing. Any
// change is persisted before Grant returns, so a crash right after a grant
// never loses it.
func (s *Store) Grant(command string, kind TargetKind, id string, allow bool) error {
	if !s.cfg.SetPermission(command, kind == TargetRole, id, allow) {
		return nil
	}
	if err := s.cfg.Save(); err != nil {
		return fmt.Errorf("persist permission change: %w", err)
	}
	slog.Info("permission updated",
		slog.String("command", command),
		slog.String("kind", string(kind)),
		slog.String("id", id),
		slog.Bool("allow", allow))
	return nil
}
