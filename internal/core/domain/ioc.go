package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type IOCType string

const (
	IPAddress IOCType = "ip"
	Domain    IOCType = "domain"
	URL       IOCType = "url"
)

// DefaultQueryLimit is used when a QueryFilter carries no positive limit.
const DefaultQueryLimit = 100

// IOCTypes lists every known type in display order.
var IOCTypes = []IOCType{IPAddress, Domain, URL}

// ParseIOCType accepts "ip", "domain" or "url" in any case. An empty string
// parses to the empty type, which filters mean "all types".
func ParseIOCType(s string) (IOCType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	for _, t := range IOCTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownIOCType, s)
}

// Source is where an IOC was observed. Every field is optional: transports
// that cannot resolve a chat or sender leave the pointer nil.
type Source struct {
	ChatID         *int64  `json:"chat_id,omitempty"`
	ChatTitle      *string `json:"chat_title,omitempty"`
	MessageID      *int64  `json:"message_id,omitempty"`
	MessageText    *string `json:"message_text,omitempty"`
	SenderID       *int64  `json:"sender_id,omitempty"`
	SenderUsername *string `json:"sender_username,omitempty"`
}

// ChatLabel returns the chat title, falling back to "ID:<chat id>".
func (s Source) ChatLabel() string {
	if s.ChatTitle != nil && *s.ChatTitle != "" {
		return *s.ChatTitle
	}
	if s.ChatID != nil {
		return fmt.Sprintf("ID:%d", *s.ChatID)
	}
	return "unknown"
}

// IOC is a stored occurrence. Records are written once and never updated.
type IOC struct {
	ID         int64     `json:"id"`
	Value      string    `json:"value"`
	Type       IOCType   `json:"type"`
	Source     Source    `json:"source"`
	DetectedAt time.Time `json:"detected_at"`
}

// Candidate is what the pipeline hands to the store. ID and DetectedAt are
// assigned by the store.
type Candidate struct {
	Value  string
	Type   IOCType
	Source Source
}

// InsertResult is the outcome of a store insert. Record is only populated
// when Inserted is true.
type InsertResult struct {
	Inserted bool
	Record   IOC
}

func (r InsertResult) Duplicate() bool {
	return !r.Inserted
}

type QueryFilter struct {
	Type  IOCType // empty means every type
	Limit int
}

// EffectiveLimit returns Limit, or DefaultQueryLimit when Limit is not positive.
func (f QueryFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultQueryLimit
	}
	return f.Limit
}

type Stats struct {
	Total    int64             `json:"total"`
	Distinct int64             `json:"distinct"`
	PerType  map[IOCType]int64 `json:"per_type"`
}

// NewStats returns Stats with a zero entry for every known type.
func NewStats() Stats {
	perType := make(map[IOCType]int64, len(IOCTypes))
	for _, t := range IOCTypes {
		perType[t] = 0
	}
	return Stats{PerType: perType}
}

// DailyCount is the number of IOCs detected on one UTC calendar day.
type DailyCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// DailyActivity groups iocs by UTC detection date and keeps the latest days
// dates that saw any activity, oldest first. Days without detections are
// skipped, not reported as zero.
func DailyActivity(iocs []IOC, days int) []DailyCount {
	counts := make(map[string]int)
	for _, ioc := range iocs {
		counts[ioc.DetectedAt.UTC().Format(time.DateOnly)]++
	}

	dates := make([]string, 0, len(counts))
	for date := range counts {
		dates = append(dates, date)
	}
	slices.Sort(dates)
	if days > 0 && len(dates) > days {
		dates = dates[len(dates)-days:]
	}

	out := make([]DailyCount, 0, len(dates))
	for _, date := range dates {
		out = append(out, DailyCount{Date: date, Count: counts[date]})
	}
	return out
}
