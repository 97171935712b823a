package quota

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage format of Record.LastScanDate.
const DateLayout = "2006-01-02"

// Unlimited is reported as scans remaining for users without a daily cap.
const Unlimited = -1

// Record is the per-user daily scan counter.
type Record struct {
	UserID         string `json:"user_id"`
	Paid           bool   `json:"is_paid"`
	ScansUsedToday int    `json:"scans_used_today"`
	LastScanDate   string `json:"last_scan_date,omitempty"`
}

// UsedOn returns the usage that counts against day. A record last touched on
// another day counts as zero.
func (r Record) UsedOn(day string) int {
	if r.LastScanDate != day {
		return 0
	}
	return r.ScansUsedToday
}

// Day formats t as a calendar date in loc.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// Policy decides who may scan and how much.
type Policy struct {
	DailyFreeLimit    int
	DisableLimits     bool
	UnlimitedPrefixes []string
}

// IsUnlimited reports whether rec bypasses the daily cap.
//
// Paid is a placeholder flag set only through the admin API; it is not
// backed by any verified entitlement source.
func (p Policy) IsUnlimited(rec Record) bool {
	if p.DisableLimits || rec.Paid {
		return true
	}
	for _, prefix := range p.UnlimitedPrefixes {
		if prefix != "" && strings.HasPrefix(rec.UserID, prefix) {
			return true
		}
	}
	return false
}

// Allows reports whether rec may start another scan on day.
func (p Policy) Allows(rec Record, day string) bool {
	if p.IsUnlimited(rec) {
		return true
	}
	return rec.UsedOn(day) < p.DailyFreeLimit
}

// Remaining returns scans left on day, or Unlimited.
func (p Policy) Remaining(rec Record, day string) int {
	if p.IsUnlimited(rec) {
		return Unlimited
	}
	left := p.DailyFreeLimit - rec.UsedOn(day)
	if left < 0 {
		return 0
	}
	return left
}

// LimitError is returned when the free daily allowance is used up.
type LimitError struct {
	UserID string
	Limit  int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("daily scan limit of %d reached for user %s", e.Limit, e.UserID)
}

// Message is the user-facing explanation.
func (e *LimitError) Message() string {
	noun := "scan"
	if e.Limit != 1 {
		noun = "scans"
	}
	return fmt.Sprintf("You have used your %d free %s for today. Upgrade to get unlimited scans.", e.Limit, noun)
}
