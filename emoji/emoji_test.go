package emoji

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/guild-tender/platform"
	"github.com/onnwee/guild-tender/telemetry"
	"github.com/onnwee/guild-tender/testutil"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	os.Exit(m.Run())
}

var guildEmojis = []platform.Emoji{
	{ID: "7", Name: "party"},
	{ID: "8", Name: "wave"},
	{ID: "9", Name: "lurk"},
}

func msg(ts time.Time, content string, reactions ...platform.Reaction) platform.Message {
	return platform.Message{Content: content, Timestamp: ts, Reactions: reactions}
}

func usageByID(t *testing.T, r *Report, id string) int {
	t.Helper()
	for _, u := range r.Usages {
		if u.Emoji.ID == id {
			return u.Count
		}
	}
	t.Fatalf("emoji %s missing from report", id)
	return 0
}

func TestCountSeedsEveryRegisteredEmoji(t *testing.T) {
	s := &testutil.MockSession{
		EmojiList: guildEmojis,
		Histories: map[string][]platform.Message{"c1": nil},
	}
	report, err := Count(context.Background(), s, Options{
		After:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Channels: []platform.Channel{{ID: "c1", Name: "general"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Usages) != len(guildEmojis) {
		t.Fatalf("expected %d entries, got %d", len(guildEmojis), len(report.Usages))
	}
	for _, u := range report.Usages {
		if u.Count != 0 {
			t.Errorf("emoji %s should have count 0, got %d", u.Emoji.ID, u.Count)
		}
	}
}

func TestCountInlineTokensAndReactions(t *testing.T) {
	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &testutil.MockSession{
		EmojiList: guildEmojis,
		Histories: map[string][]platform.Message{
			"c1": {
				msg(after.Add(24*time.Hour), "gg <:party:7> and again <:party:7>",
					platform.Reaction{EmojiID: "7", Name: "party", Custom: true, Count: 3}),
			},
		},
	}
	report, err := Count(context.Background(), s, Options{
		After:            after,
		IncludeReactions: true,
		Channels:         []platform.Channel{{ID: "c1", Name: "general"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := usageByID(t, report, "7"); got != 5 {
		t.Fatalf("expected tally 5 for emoji 7 (2 inline + 3 reactions), got %d", got)
	}
}

func TestCountReactionsExcludedByDefault(t *testing.T) {
	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &testutil.MockSession{
		EmojiList: guildEmojis,
		Histories: map[string][]platform.Message{
			"c1": {
				msg(after, "<:wave:8>",
					platform.Reaction{EmojiID: "8", Name: "wave", Custom: true, Count: 10}),
			},
		},
	}
	report, err := Count(context.Background(), s, Options{
		After:    after,
		Channels: []platform.Channel{{ID: "c1", Name: "general"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := usageByID(t, report, "8"); got != 1 {
		t.Fatalf("expected only the inline occurrence, got %d", got)
	}
}

func TestCountIgnoresUnregisteredEmoji(t *testing.T) {
	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &testutil.MockSession{
		EmojiList: guildEmojis,
		Histories: map[string][]platform.Message{
			"c1": {
				msg(after, "<:foreign:999> <:party:7>",
					platform.Reaction{EmojiID: "999", Name: "foreign", Custom: true, Count: 4},
					platform.Reaction{Name: "👍", Custom: false, Count: 6}),
			},
		},
	}
	report, err := Count(context.Background(), s, Options{
		After:            after,
		IncludeReactions: true,
		Channels:         []platform.Channel{{ID: "c1", Name: "general"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total := 0
	for _, u := range report.Usages {
		total += u.Count
	}
	if total != 1 {
		t.Fatalf("only the registered inline token should count, got total %d", total)
	}
}

func TestCountSkipsForbiddenChannelAndContinues(t *testing.T) {
	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &testutil.MockSession{
		EmojiList: guildEmojis,
		Histories: map[string][]platform.Message{
			"open": {msg(after, "<:lurk:9>")},
		},
		Forbidden: map[string]bool{"secret": true},
	}
	report, err := Count(context.Background(), s, Options{
		After: after,
		Channels: []platform.Channel{
			{ID: "secret", Name: "mod-only"},
			{ID: "open", Name: "general"},
		},
	})
	if err != nil {
		t.Fatalf("a forbidden channel must not abort the scan: %v", err)
	}
	if report.ChannelsSkipped != 1 {
		t.Fatalf("expected 1 skipped channel, got %d", report.ChannelsSkipped)
	}
	if got := usageByID(t, report, "9"); got != 1 {
		t.Fatalf("remaining channel should still be counted, got %d", got)
	}
}

func TestCountCutoffExcludesOlderMessages(t *testing.T) {
	after := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := &testutil.MockSession{
		EmojiList: guildEmojis,
		Histories: map[string][]platform.Message{
			"c1": {
				msg(after.Add(-time.Hour), "<:party:7>"),
				msg(after, "<:party:7>"),
			},
		},
	}
	report, err := Count(context.Background(), s, Options{
		After:    after,
		Channels: []platform.Channel{{ID: "c1", Name: "general"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := usageByID(t, report, "7"); got != 1 {
		t.Fatalf("message before the cutoff must not count, got %d", got)
	}
}

func TestCountSortsByCountDescendingKeepingSeedOrderOnTies(t *testing.T) {
	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &testutil.MockSession{
		EmojiList: guildEmojis,
		Histories: map[string][]platform.Message{
			"c1": {msg(after, "<:wave:8> <:wave:8> <:lurk:9>")},
		},
	}
	report, err := Count(context.Background(), s, Options{
		After:    after,
		Channels: []platform.Channel{{ID: "c1", Name: "general"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var order []string
	for _, u := range report.Usages {
		order = append(order, u.Emoji.ID)
	}
	// wave twice, lurk once, party never; party keeps its seed position
	// among the zero-count tail.
	want := []string{"8", "9", "7"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestCountRequiresChannels(t *testing.T) {
	s := &testutil.MockSession{EmojiList: guildEmojis}
	if _, err := Count(context.Background(), s, Options{After: time.Now()}); err == nil {
		t.Fatal("expected error for empty channel list")
	}
}

func TestRenderReport(t *testing.T) {
	r := &Report{
		After: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Usages: []Usage{
			{Emoji: platform.Emoji{ID: "7", Name: "party"}, Count: 5},
			{Emoji: platform.Emoji{ID: "8", Name: "wave"}, Count: 0},
		},
	}
	got := r.Render()
	if !strings.HasPrefix(got, "Emoji usage since `2024-01-01`:") {
		t.Fatalf("missing header: %q", got)
	}
	if !strings.Contains(got, "<:party:7>: 5") || !strings.Contains(got, "<:wave:8>: 0") {
		t.Fatalf("missing usage lines: %q", got)
	}
}
