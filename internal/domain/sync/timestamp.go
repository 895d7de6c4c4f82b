package sync

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout формат меток времени на проводе (миллисекунды)
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp разбирает ISO-8601. Время без зоны считается UTC
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidTimestamp)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Truncate(t), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Truncate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// FormatTimestamp форматирует время в UTC с миллисекундами
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Truncate приводит время к точности хранилища
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Clock источник серверного времени
type Clock func() time.Time

func systemClock() time.Time {
	return Truncate(time.Now())
}
