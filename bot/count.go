package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/guild-tender/emoji"
	"github.com/onnwee/guild-tender/platform"
	"github.com/onnwee/guild-tender/telemetry"
)

const countUsage = "I need \n(1) a date of format `yyyy-mm-dd`, \n(2) a boolean to indicate whether reactions should be counted as well and \n(3...) zero or more channel names. If no channel is passed, all accessible channels are used instead."

// handleCount runs the emoji usage aggregation. All argument validation
// happens before any channel is scanned; a validation failure aborts with an
// inline reply and no partial report.
func (b *Bot) handleCount(ctx context.Context, msg platform.Message, args []string) error {
	if !b.Perms.IsAuthorized(msg.Author, "count") {
		telemetry.CommandsDenied.Inc()
		return nil
	}
	if len(args) < 2 {
		return b.reply(ctx, msg, countUsage)
	}

	after, err := time.ParseInLocation("2006-01-02", args[0], time.UTC)
	if err != nil {
		return b.reply(ctx, msg, "First parameter must be a valid UTC date of format `yyyy-mm-dd`.")
	}
	if args[1] != "true" && args[1] != "false" {
		return b.reply(ctx, msg, "Second parameter must either be `false` to only count emojis in messages or `true` to also count reactions.")
	}
	includeReactions := args[1] == "true"

	all, err := b.Session.Channels(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	channels := all
	if len(args) >= 3 {
		channels = resolveChannels(all, args[2:])
		if len(channels) == 0 {
			return b.reply(ctx, msg, fmt.Sprintf("Not a single channel you gave me exists on this server: '`%s`'.", strings.Join(args[2:], ", ")))
		}
	}

	var report *emoji.Report
	var countErr error
	telemetry.TimeFunc(telemetry.ScanDuration, func() {
		report, countErr = emoji.Count(ctx, b.Session, emoji.Options{
			After:            after,
			IncludeReactions: includeReactions,
			Channels:         channels,
		})
	})
	if countErr != nil {
		return countErr
	}

	// A report line wider than the chunk limit is a programming-contract
	// violation, not a user input error; it fails the command.
	chunks, err := Split(report.Render(), MessageLimit)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		if err := b.reply(ctx, msg, chunk); err != nil {
			return fmt.Errorf("send report chunk: %w", err)
		}
		telemetry.ChunksSent.Inc()
	}
	telemetry.LoggerWithCorr(ctx).Info("count finished",
		"messages_scanned", report.MessagesScanned,
		"channels_skipped", report.ChannelsSkipped,
		"chunks", len(chunks))
	return nil
}

// resolveChannels maps requested names onto existing channels, silently
// dropping names that match nothing.
func resolveChannels(all []platform.Channel, names []string) []platform.Channel {
	var out []platform.Channel
	for _, name := range names {
		for _, ch := range all {
			if ch.Name == name {
				out = append(out, ch)
				break
			}
		}
	}
	return out
}
