package bot

import (
	"fmt"
	"strings"
)

// MessageLimit caps outbound chunk sizes, kept under the platform's
// enforced maximum message length.
const MessageLimit = 2000

// Split breaks text into chunks each strictly shorter than limit, packing
// consecutive lines greedily and never breaking inside a line. Joining the
// chunks with newlines reproduces the input exactly. A single line that is
// itself >= limit cannot be packed; that returns an error naming the
// offending length instead of truncating or looping.
func Split(text string, limit int) ([]string, error) {
	if len(text) < limit {
		return []string{text}, nil
	}
	var chunks []string
	cur, started := "", false
	for _, line := range strings.Split(text, "\n") {
		if len(line) >= limit {
			return nil, fmt.Errorf("cannot split message: line of length %d exceeds chunk limit %d", len(line), limit)
		}
		if !started {
			cur, started = line, true
			continue
		}
		if len(cur)+1+len(line) < limit {
			cur += "\n" + line
			continue
		}
		chunks = append(chunks, cur)
		cur = line
	}
	if started {
		chunks = append(chunks, cur)
	}
	return chunks, nil
}
