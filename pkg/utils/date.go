package utils

import (
	"fmt"
	"sync"
	"time"
)

var (
	locMu     sync.RWMutex
	locations = map[string]*time.Location{}
)

// LoadLocation is time.LoadLocation with a process wide cache.
func LoadLocation(name string) (*time.Location, error) {
	locMu.RLock()
	loc, ok := locations[name]
	locMu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}

	locMu.Lock()
	locations[name] = loc
	locMu.Unlock()
	return loc, nil
}

// TimeNowIn returns the current time in the named location, falling back to UTC.
func TimeNowIn(name string) time.Time {
	loc, err := LoadLocation(name)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Now().In(loc)
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q: %w", value, err)
	}
	return t.Hour(), t.Minute(), nil
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func PrettyDate(date time.Time) string {
	return date.Format("02 Jan 2006 - 15:04 MST")
}
