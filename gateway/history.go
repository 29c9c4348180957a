package gateway

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/onnwee/guild-tender/platform"
)

const historyPageSize = 100

// History returns a lazy iterator over a channel's messages at or after the
// cutoff. Pages are fetched on demand by ascending message ID; there is no
// upper bound and no page cap, so a large channel simply takes many pages.
func (s *Session) History(ctx context.Context, channelID string, after time.Time) platform.HistoryIter {
	return &historyIter{
		session:   s,
		channelID: channelID,
		cursor:    snowflakeFromTime(after),
	}
}

type historyIter struct {
	session   *Session
	channelID string
	cursor    string
	buf       []platform.Message
	done      bool
}

// Next returns the next message in roughly chronological order, (nil, nil)
// when the history is drained, or platform.ErrForbidden when the channel is
// not readable (surfaced from the first page fetch).
func (it *historyIter) Next(ctx context.Context) (*platform.Message, error) {
	for len(it.buf) == 0 {
		if it.done {
			return nil, nil
		}
		if err := it.fetchPage(ctx); err != nil {
			return nil, err
		}
	}
	msg := it.buf[0]
	it.buf = it.buf[1:]
	return &msg, nil
}

func (it *historyIter) fetchPage(ctx context.Context) error {
	path := "/channels/" + it.channelID + "/messages?limit=100&after=" + it.cursor
	var wire []wireMessage
	if err := it.session.api(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return err
	}
	if len(wire) < historyPageSize {
		it.done = true
	}
	if len(wire) == 0 {
		return nil
	}
	// Pages arrive newest-first; flip to chronological and advance the
	// cursor to the newest ID seen.
	sort.SliceStable(wire, func(i, j int) bool { return snowflakeLess(wire[i].ID, wire[j].ID) })
	it.cursor = wire[len(wire)-1].ID
	for _, w := range wire {
		it.buf = append(it.buf, w.toMessage())
	}
	return nil
}

// snowflakeLess compares two decimal snowflake IDs numerically.
func snowflakeLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
