package autosend

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/companion/internal/core"
)

// QuietHours is a daily window, bounds included, during which nothing is
// sent. The zero value never matches.
type QuietHours struct {
	start, end int
	enabled    bool
}

// ParseQuietHours reads HH:MM bounds. Either bound empty disables the window.
func ParseQuietHours(start, end string) (QuietHours, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return QuietHours{}, nil
	}
	s, err := minuteOfDay(start)
	if err != nil {
		return QuietHours{}, err
	}
	e, err := minuteOfDay(end)
	if err != nil {
		return QuietHours{}, err
	}
	return QuietHours{start: s, end: e, enabled: true}, nil
}

func minuteOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether t falls in the window. A window whose start is
// after its end wraps past midnight.
func (q QuietHours) Contains(t time.Time) bool {
	if !q.enabled {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	if q.start <= q.end {
		return q.start <= m && m <= q.end
	}
	return m >= q.start || m <= q.end
}

// ParseTargets reads transport:chat pairs into sender metadata for system
// messages.
func ParseTargets(pairs []string) ([]core.SenderMeta, error) {
	targets := make([]core.SenderMeta, 0, len(pairs))
	for _, pair := range pairs {
		transport, chatID, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || transport == "" || chatID == "" {
			return nil, fmt.Errorf("invalid autosend target %q, want transport:chat", pair)
		}
		targets = append(targets, core.SenderMeta{
			Transport:  transport,
			ChatID:     chatID,
			SenderName: core.SystemSender,
			Username:   core.SystemSender,
		})
	}
	return targets, nil
}
