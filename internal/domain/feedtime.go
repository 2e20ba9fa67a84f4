package domain

import (
	"fmt"
	"time"
)

// FeedTimeLayout is the layout of sunrise and sunset in the feed.
const FeedTimeLayout = "2006-01-02T15:04:05"

// FormatError reports a feed timestamp that does not match FeedTimeLayout.
type FormatError struct {
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid feed time %q: %v", e.Value, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ToEpoch converts a naive feed timestamp to Unix seconds, reading it as
// wall-clock time in time.Local.
func ToEpoch(text string) (int64, error) {
	return ToEpochIn(text, time.Local)
}

// ToEpochIn is ToEpoch with an explicit location.
func ToEpochIn(text string, loc *time.Location) (int64, error) {
	t, err := time.ParseInLocation(FeedTimeLayout, text, loc)
	if err != nil {
		return 0, &FormatError{Value: text, Err: err}
	}
	return t.Unix(), nil
}
