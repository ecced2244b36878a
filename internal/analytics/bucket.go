package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-day form used for every date the engine reads.
const DateLayout = "2006-01-02"

// Granularity selects the width of a time-series bucket.
type Granularity string

const (
	Week    Granularity = "week"
	Month   Granularity = "month"
	Quarter Granularity = "quarter"
	Year    Granularity = "year"
)

// ErrInvalidGranularity is returned for granularities outside week/month/quarter/year.
var ErrInvalidGranularity = errors.New("invalid granularity")

// ErrInvalidDate is returned when a date is not a YYYY-MM-DD calendar day.
var ErrInvalidDate = errors.New("invalid date")

// ParseGranularity normalises raw input into a Granularity.
func ParseGranularity(raw string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(raw)))
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, raw)
	}
	return g, nil
}

// Valid reports whether g is a supported granularity.
func (g Granularity) Valid() bool {
	switch g {
	case Week, Month, Quarter, Year:
		return true
	}
	return false
}

// ParseDate reads a YYYY-MM-DD string as a UTC calendar day.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return t, nil
}

// FormatDate renders a calendar day in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BucketStart returns the first day of the bucket containing t.
// Weeks start on Monday; Sunday belongs to the week that started six days earlier.
func BucketStart(t time.Time, g Granularity) time.Time {
	t = civil(t)
	y, m, _ := t.Date()
	switch g {
	case Week:
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		return t.AddDate(0, 0, -(weekday - 1))
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case Quarter:
		first := (int(m)-1)/3*3 + 1
		return time.Date(y, time.Month(first), 1, 0, 0, 0, 0, time.UTC)
	case Year:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// BucketKeyAndLabel returns the stable key and display label of the bucket containing t.
func BucketKeyAndLabel(t time.Time, g Granularity) (string, string) {
	start := BucketStart(t, g)
	var prefix, label string
	switch g {
	case Week:
		prefix, label = "W_", start.Format(DateLayout)
	case Month:
		prefix, label = "M_", start.Format("2006-01")
	case Quarter:
		prefix, label = "Q_", fmt.Sprintf("%04d-Q%d", start.Year(), (int(start.Month())-1)/3+1)
	case Year:
		prefix, label = "Y_", fmt.Sprintf("%04d", start.Year())
	default:
		prefix, label = "D_", start.Format(DateLayout)
	}
	return prefix + label, label
}

// NextBucket returns the start of the bucket following the one containing t.
func NextBucket(t time.Time, g Granularity) time.Time {
	start := BucketStart(t, g)
	switch g {
	case Week:
		return start.AddDate(0, 0, 7)
	case Month:
		return start.AddDate(0, 1, 0)
	case Quarter:
		return start.AddDate(0, 3, 0)
	case Year:
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 0, 1)
}

// Bucket is one contiguous interval of a time series.
type Bucket struct {
	Key   string    `json:"key"`
	Label string    `json:"label"`
	Start time.Time `json:"date"`
}

// GenerateBucketRange enumerates the buckets covering [from, to] without gaps.
// The result is empty when from is after to.
func GenerateBucketRange(g Granularity, from, to string) ([]Bucket, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGranularity, string(g))
	}
	fromDate, err := ParseDate(from)
	if err != nil {
		return nil, err
	}
	toDate, err := ParseDate(to)
	if err != nil {
		return nil, err
	}

	buckets := make([]Bucket, 0)
	if fromDate.After(toDate) {
		return buckets, nil
	}

	for cursor := BucketStart(fromDate, g); !cursor.After(toDate); cursor = NextBucket(cursor, g) {
		key, label := BucketKeyAndLabel(cursor, g)
		buckets = append(buckets, Bucket{Key: key, Label: label, Start: cursor})
	}
	return buckets, nil
}
