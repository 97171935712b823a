package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Allows(t *testing.T) {
	p := Policy{DailyFreeLimit: 1, UnlimitedPrefixes: []string{"admin_", "dev_"}}
	today := "2026-03-10"

	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"new user", Record{UserID: "u1"}, true},
		{"used today", Record{UserID: "u1", ScansUsedToday: 1, LastScanDate: today}, false},
		{"used yesterday", Record{UserID: "u1", ScansUsedToday: 1, LastScanDate: "2026-03-09"}, true},
		{"over limit today", Record{UserID: "u1", ScansUsedToday: 3, LastScanDate: today}, false},
		{"paid", Record{UserID: "u1", Paid: true, ScansUsedToday: 5, LastScanDate: today}, true},
		{"admin prefix", Record{UserID: "admin_bob", ScansUsedToday: 9, LastScanDate: today}, true},
		{"dev prefix", Record{UserID: "dev_x", ScansUsedToday: 9, LastScanDate: today}, true},
		{"prefix must lead", Record{UserID: "x_admin_", ScansUsedToday: 1, LastScanDate: today}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Allows(tt.rec, today))
		})
	}
}

func TestPolicy_DisableLimits(t *testing.T) {
	p := Policy{DailyFreeLimit: 1, DisableLimits: true}
	rec := Record{UserID: "u1", ScansUsedToday: 10, LastScanDate: "2026-03-10"}
	assert.True(t, p.Allows(rec, "2026-03-10"))
	assert.Equal(t, Unlimited, p.Remaining(rec, "2026-03-10"))
}

func TestPolicy_Remaining(t *testing.T) {
	p := Policy{DailyFreeLimit: 3}
	day := "2026-03-10"

	assert.Equal(t, 3, p.Remaining(Record{UserID: "u"}, day))
	assert.Equal(t, 1, p.Remaining(Record{UserID: "u", ScansUsedToday: 2, LastScanDate: day}, day))
	assert.Equal(t, 0, p.Remaining(Record{UserID: "u", ScansUsedToday: 7, LastScanDate: day}, day))
	assert.Equal(t, 3, p.Remaining(Record{UserID: "u", ScansUsedToday: 7, LastScanDate: "2026-03-01"}, day))
}

func TestPolicy_ZeroLimitDeniesFreeUsers(t *testing.T) {
	p := Policy{DailyFreeLimit: 0}
	assert.False(t, p.Allows(Record{UserID: "u"}, "2026-03-10"))
}

func TestDay_UsesLocation(t *testing.T) {
	ts := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-10", Day(ts, nil))

	tokyo := time.FixedZone("UTC+9", 9*3600)
	assert.Equal(t, "2026-03-11", Day(ts, tokyo))
}

func TestLimitError_Message(t *testing.T) {
	err := &LimitError{UserID: "u1", Limit: 1}
	assert.Equal(t, "You have used your 1 free scan for today. Upgrade to get unlimited scans.", err.Message())
	assert.Contains(t, err.Error(), "u1")

	err = &LimitError{UserID: "u1", Limit: 3}
	assert.Contains(t, err.Message(), "3 free scans")
}
