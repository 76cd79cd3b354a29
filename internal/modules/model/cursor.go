package model

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidCursor = errors.New("invalid history cursor")

const wireSecondsFormat = "2006-01-02 15:04:05"

// HistoryCursor selects messages strictly after a message id or a creation time.
// The zero value means "from the beginning".
type HistoryCursor struct {
	AfterID   uint64
	AfterTime time.Time
}

func (c HistoryCursor) IsZero() bool {
	return c.AfterID == 0 && c.AfterTime.IsZero()
}

// ParseCursor accepts a numeric message id or a timestamp in wire, RFC 3339 or RFC 3339 nano format.
// Timestamps without a zone are read as UTC. Whole-second wire timestamps are still accepted.
func ParseCursor(raw string) (HistoryCursor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return HistoryCursor{}, nil
	}
	if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return HistoryCursor{AfterID: id}, nil
	}
	for _, layout := range []string{WireTimeFormat, wireSecondsFormat, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return HistoryCursor{AfterTime: t.UTC()}, nil
		}
	}
	return HistoryCursor{}, ErrInvalidCursor
}
