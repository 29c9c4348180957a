// Package emoji aggregates custom-emoji usage across channel history. A run
// seeds a tally with every emoji registered on the guild at zero, drains
// each requested channel's history after a cutoff, counts inline emoji
// tokens (and optionally reaction tallies) that reference registered emoji,
// and renders a ranked report. Channels the bot cannot read are skipped;
// everything else keeps counting.
package emoji

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/guild-tender/platform"
	"github.com/onnwee/guild-tender/telemetry"
)

// tokenPattern matches the platform's inline custom-emoji markup and
// captures the emoji id.
var tokenPattern = regexp.MustCompile(`<:\w+:(\d+)>`)

// Options configures a single aggregation run.
type Options struct {
	// After is the inclusive lower bound for message timestamps (UTC, day
	// granularity). There is no upper bound.
	After time.Time
	// IncludeReactions adds each custom-emoji reaction's reactor count to
	// the tally of that emoji.
	IncludeReactions bool
	// Channels to scan. The caller resolves these up front; an empty list is
	// invalid (resolve "all visible channels" before calling).
	Channels []platform.Channel
}

// Usage is one emoji's tally.
type Usage struct {
	Emoji platform.Emoji
	Count int
}

// Report is the outcome of an aggregation run. Usages is sorted by count
// descending; ties keep the guild emoji set's order, so unused emoji appear
// in a stable order at the bottom with count 0.
type Report struct {
	After           time.Time
	Usages          []Usage
	MessagesScanned int
	ChannelsSkipped int
}

// Count runs one aggregation over the given channels. A channel yielding
// ErrForbidden is logged and skipped; any other history error aborts the
// run. The result always has exactly one entry per registered emoji, even
// when nothing matched.
func Count(ctx context.Context, s platform.Session, opts Options) (*Report, error) {
	if len(opts.Channels) == 0 {
		return nil, errors.New("emoji count: no channels to scan")
	}

	ctx, span := telemetry.StartSpan(ctx, "emoji", "emoji.count",
		attribute.Int("channels", len(opts.Channels)),
		attribute.String("after", opts.After.Format("2006-01-02")),
		attribute.Bool("reactions", opts.IncludeReactions))
	defer span.End()

	registered, err := s.GuildEmojis(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list guild emojis: %w", err)
	}
	counts := make(map[string]int, len(registered))
	for _, e := range registered {
		counts[e.ID] = 0
	}

	report := &Report{After: opts.After}
	for _, ch := range opts.Channels {
		skipped, err := scanChannel(ctx, s, ch, opts, counts, report)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if skipped {
			report.ChannelsSkipped++
			telemetry.ChannelsSkipped.Inc()
		}
	}

	report.Usages = make([]Usage, 0, len(registered))
	for _, e := range registered {
		report.Usages = append(report.Usages, Usage{Emoji: e, Count: counts[e.ID]})
	}
	sort.SliceStable(report.Usages, func(i, j int) bool {
		return report.Usages[i].Count > report.Usages[j].Count
	})

	span.SetAttributes(attribute.Int("messages_scanned", report.MessagesScanned))
	return report, nil
}

// scanChannel drains one channel's history into counts. It reports
// skipped=true when the channel denied access; other errors abort.
func scanChannel(ctx context.Context, s platform.Session, ch platform.Channel, opts Options, counts map[string]int, report *Report) (skipped bool, err error) {
	it := s.History(ctx, ch.ID, opts.After)
	for {
		msg, err := it.Next(ctx)
		if errors.Is(err, platform.ErrForbidden) {
			slog.Warn("skipping channel: access forbidden", slog.String("channel", ch.Name))
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("history of channel %s: %w", ch.Name, err)
		}
		if msg == nil {
			return false, nil
		}
		report.MessagesScanned++
		telemetry.MessagesScanned.Inc()

		for _, m := range tokenPattern.FindAllStringSubmatch(msg.Content, -1) {
			if _, ok := counts[m[1]]; ok {
				counts[m[1]]++
			}
		}
		if !opts.IncludeReactions {
			continue
		}
		for _, r := range msg.Reactions {
			if !r.Custom {
				continue
			}
			if _, ok := counts[r.EmojiID]; ok {
				counts[r.EmojiID] += r.Count
			}
		}
	}
}

// Render formats the report as the outbound message body: a header naming
// the cutoff date, then one "<emoji>: <count>" line per registered emoji in
// ranked order.
func (r *Report) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Emoji usage since `%s`:", r.After.Format("2006-01-02"))
	for _, u := range r.Usages {
		fmt.Fprintf(&b, "\n%s: %d", u.Emoji, u.Count)
	}
	return b.String()
}
