package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDailyActivity(t *testing.T) {
	day := func(d, h int) IOC {
		return IOC{DetectedAt: time.Date(2026, 10, d, h, 0, 0, 0, time.UTC)}
	}
	iocs := []IOC{day(15, 9), day(15, 1), day(14, 23), day(12, 0), day(3, 12), day(1, 8)}

	assert.Equal(t, []DailyCount{
		{Date: "2026-10-01", Count: 1},
		{Date: "2026-10-03", Count: 1},
		{Date: "2026-10-12", Count: 1},
		{Date: "2026-10-14", Count: 1},
		{Date: "2026-10-15", Count: 2},
	}, DailyActivity(iocs, 7))

	assert.Equal(t, []DailyCount{
		{Date: "2026-10-14", Count: 1},
		{Date: "2026-10-15", Count: 2},
	}, DailyActivity(iocs, 2))
}

func TestDailyActivity_UsesUTCDate(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	// 22:00 EST on the 14th is the 15th in UTC.
	got := DailyActivity([]IOC{{DetectedAt: time.Date(2026, 10, 14, 22, 0, 0, 0, est)}}, 7)
	assert.Equal(t, []DailyCount{{Date: "2026-10-15", Count: 1}}, got)
}

func TestDailyActivity_Empty(t *testing.T) {
	assert.Empty(t, DailyActivity(nil, 7))
}
