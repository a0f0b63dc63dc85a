package ledger

import (
	"fmt"
	"strings"
)

// Interval is the recurrence period of a recurring template.
type Interval string

const (
	Daily   Interval = "daily"
	Weekly  Interval = "weekly"
	Monthly Interval = "monthly"
	Yearly  Interval = "yearly"
)

func (i Interval) String() string { return string(i) }

// ParseInterval accepts the interval names and their short forms.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(s) {
	case "daily", "day":
		return Daily, nil
	case "weekly", "week":
		return Weekly, nil
	case "monthly", "month":
		return Monthly, nil
	case "yearly", "year":
		return Yearly, nil
	default:
		return "", fmt.Errorf("unknown interval %q", s)
	}
}
