package battleutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"
)

// ParseTimeLimit turns challenge input like "45m", "24h", or natural
// language ("tomorrow at 6pm", "in 2 hours") into a per-round time limit.
func ParseTimeLimit(input string, clock Clock) (time.Duration, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, fmt.Errorf("empty time limit")
	}

	if d, err := time.ParseDuration(trimmed); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("time limit must be positive: %s", input)
		}
		return d, nil
	}

	w := when.New(nil)
	w.Add(en.All...)

	now := clock.Now()
	r, err := w.Parse(trimmed, now)
	if err != nil {
		return 0, fmt.Errorf("failed to parse time limit %q: %w", input, err)
	}
	if r == nil {
		return 0, fmt.Errorf("unrecognized time limit: %q", input)
	}

	d := r.Time.Sub(now)
	if d <= 0 {
		return 0, fmt.Errorf("time limit %q is in the past", input)
	}
	return d, nil
}
