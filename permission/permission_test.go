package permission

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/onnwee/guild-tender/config"
	"github.com/onnwee/guild-tender/platform"
)

func newStore(t *testing.T, raw string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if raw != "" {
		if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	return NewStore(cfg)
}

var (
	alice = platform.Member{ID: "100", Username: "alice", Discriminator: "0001", RoleIDs: []string{"r-mod", "r-member"}}
	bob   = platform.Member{ID: "200", Username: "bob", Discriminator: "0002"}
)

func TestOwnerBypassesEveryCommand(t *testing.T) {
	s := newStore(t, `{"owner": "alice#0001", "commands": {}}`)
	for _, cmd := range []string{"count", "allow", "whatever"} {
		if !s.IsAuthorized(alice, cmd) {
			t.Fatalf("owner must be authorized for %s", cmd)
		}
	}
	if s.IsAuthorized(bob, "count") {
		t.Fatal("non-owner without grants must be denied")
	}
}

func TestEmptyOwnerDoesNotMatchEmptyTag(t *testing.T) {
	s := newStore(t, `{"commands": {}}`)
	ghost := platform.Member{ID: "300"}
	if s.IsAuthorized(ghost, "count") {
		t.Fatal("empty owner entry must never authorize")
	}
}

func TestUserGrantAuthorizes(t *testing.T) {
	s := newStore(t, "")
	if err := s.Grant("count", TargetUser, bob.ID, true); err != nil {
		t.Fatal(err)
	}
	if !s.IsAuthorized(bob, "count") {
		t.Fatal("granted user must be authorized")
	}
	if s.IsAuthorized(bob, "allow") {
		t.Fatal("grant is per command")
	}
}

func TestRoleGrantAuthorizesAnyHolder(t *testing.T) {
	s := newStore(t, "")
	if err := s.Grant("count", TargetRole, "r-member", true); err != nil {
		t.Fatal(err)
	}
	if !s.IsAuthorized(alice, "count") {
		t.Fatal("role holder must be authorized")
	}
	if s.IsAuthorized(bob, "count") {
		t.Fatal("member without the role must be denied")
	}
}

func TestGrantIsMonotonicAndIdempotent(t *testing.T) {
	s := newStore(t, "")
	if err := s.Grant("count", TargetUser, bob.ID, true); err != nil {
		t.Fatal(err)
	}
	// regranting changes nothing
	if err := s.Grant("count", TargetUser, bob.ID, true); err != nil {
		t.Fatal(err)
	}
	if !s.IsAuthorized(bob, "count") {
		t.Fatal("regrant must not remove authorization")
	}
	// granting someone else never removes an existing authorization
	if err := s.Grant("count", TargetRole, "r-mod", true); err != nil {
		t.Fatal(err)
	}
	if !s.IsAuthorized(bob, "count") {
		t.Fatal("unrelated grant must not remove authorization")
	}
}

func TestRevokeAbsentIsNoOp(t *testing.T) {
	s := newStore(t, "")
	if err := s.Grant("count", TargetUser, "nobody", false); err != nil {
		t.Fatalf("revoking an absent id must be a clean no-op: %v", err)
	}
}

func TestRevokeRemovesAuthorization(t *testing.T) {
	s := newStore(t, "")
	if err := s.Grant("count", TargetUser, bob.ID, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Grant("count", TargetUser, bob.ID, false); err != nil {
		t.Fatal(err)
	}
	if s.IsAuthorized(bob, "count") {
		t.Fatal("revoked user must be denied")
	}
}

func TestMissingCommandEntryDeniesNonOwner(t *testing.T) {
	s := newStore(t, `{"owner": "alice#0001", "commands": {}}`)
	if s.IsAuthorized(bob, "count") {
		t.Fatal("command without entry must deny")
	}
	if !s.IsAuthorized(alice, "count") {
		t.Fatal("owner bypass must still work for commands without entries")
	}
}
