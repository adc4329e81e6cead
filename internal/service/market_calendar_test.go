package service

import (
	"testing"
	"time"

	"golang-autotrader/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalendar(t *testing.T, extra ...config.Holiday) MarketCalendar {
	t.Helper()
	cal, err := NewMarketCalendar(config.Market{
		TimeZone:      "America/New_York",
		OpenTime:      "09:30",
		CloseTime:     "16:00",
		ExtraHolidays: extra,
	})
	require.NoError(t, err)
	return cal
}

func utc(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestMarketCalendar_IsOpen(t *testing.T) {
	cal := newTestCalendar(t)

	tests := []struct {
		name   string
		now    time.Time
		open   bool
		reason string
	}{
		{"regular session", utc(2024, time.July, 3, 14, 0), true, "market open"},
		{"saturday", utc(2024, time.July, 6, 15, 0), false, "weekend"},
		{"sunday", utc(2024, time.July, 7, 15, 0), false, "weekend"},
		{"before open in winter", utc(2024, time.March, 8, 13, 30), false, "before market open"},
		{"open right after dst switch", utc(2024, time.March, 11, 13, 30), true, "market open"},
		{"last minute of session", utc(2024, time.July, 3, 19, 59), true, "market open"},
		{"closing bell", utc(2024, time.July, 3, 20, 0), false, "after market close"},
		{"independence day", utc(2024, time.July, 4, 15, 0), false, "holiday (Independence Day)"},
		{"good friday", utc(2024, time.March, 29, 15, 0), false, "holiday (Good Friday)"},
		{"thanksgiving", utc(2024, time.November, 28, 15, 0), false, "holiday (Thanksgiving Day)"},
		{"saturday holiday observed friday", utc(2026, time.July, 3, 15, 0), false, "holiday (Independence Day)"},
		{"sunday christmas observed monday", utc(2022, time.December, 26, 15, 0), false, "holiday (Christmas Day)"},
		{"juneteenth not observed before 2022", utc(2021, time.June, 18, 15, 0), true, "market open"},
		{"new year on saturday not moved back", utc(2021, time.December, 31, 15, 0), true, "market open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, reason := cal.IsOpen(tt.now, "America/New_York")
			assert.Equal(t, tt.open, open)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestMarketCalendar_DefaultsToConfiguredZone(t *testing.T) {
	cal := newTestCalendar(t)

	open, reason := cal.IsOpen(utc(2024, time.July, 3, 14, 0), "")
	assert.True(t, open)
	assert.Equal(t, "market open", reason)
}

func TestMarketCalendar_InvalidTimezone(t *testing.T) {
	cal := newTestCalendar(t)

	open, reason := cal.IsOpen(utc(2024, time.July, 3, 14, 0), "Mars/Olympus")
	assert.False(t, open)
	assert.Equal(t, "invalid timezone Mars/Olympus", reason)
}

func TestMarketCalendar_ExtraHolidays(t *testing.T) {
	cal := newTestCalendar(t, config.Holiday{Date: "2025-01-09", Name: "National Day of Mourning"})

	open, reason := cal.IsOpen(utc(2025, time.January, 9, 15, 0), "America/New_York")
	assert.False(t, open)
	assert.Equal(t, "holiday (National Day of Mourning)", reason)
}

func TestMarketCalendar_RejectsBadConfig(t *testing.T) {
	_, err := NewMarketCalendar(config.Market{TimeZone: "America/New_York", OpenTime: "9am", CloseTime: "16:00"})
	assert.Error(t, err)

	_, err = NewMarketCalendar(config.Market{TimeZone: "America/New_York", OpenTime: "16:00", CloseTime: "09:30"})
	assert.Error(t, err)

	_, err = NewMarketCalendar(config.Market{TimeZone: "Nowhere/Land", OpenTime: "09:30", CloseTime: "16:00"})
	assert.Error(t, err)
}

func TestMarketCalendar_Holiday(t *testing.T) {
	cal := newTestCalendar(t, config.Holiday{Date: "2024-07-04", Name: "Exchange closure"})

	want := map[string]string{
		"2024-01-01": "New Year's Day",
		"2024-01-15": "Martin Luther King Jr. Day",
		"2024-02-19": "Washington's Birthday",
		"2024-03-29": "Good Friday",
		"2024-05-27": "Memorial Day",
		"2024-06-19": "Juneteenth",
		"2024-07-04": "Exchange closure",
		"2024-09-02": "Labor Day",
		"2024-11-28": "Thanksgiving Day",
		"2024-12-25": "Christmas Day",
	}

	got := map[string]string{}
	for d := utc(2024, time.January, 1, 12, 0); d.Year() == 2024; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if name, ok := cal.Holiday(d); ok {
			got[d.Format("2006-01-02")] = name
		}
	}
	assert.Equal(t, want, got)
}

func TestMarketCalendar_ObservedDates(t *testing.T) {
	cal := newTestCalendar(t)

	tests := []struct {
		name string
		date time.Time
		want string
		ok   bool
	}{
		{"sunday new year observed monday", utc(2023, time.January, 2, 12, 0), "New Year's Day", true},
		{"saturday juneteenth observed friday", utc(2027, time.June, 18, 12, 0), "Juneteenth", true},
		{"saturday christmas observed friday", utc(2021, time.December, 24, 12, 0), "Christmas Day", true},
		{"ordinary weekday", utc(2024, time.July, 5, 12, 0), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, ok := cal.Holiday(tt.date)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestMarketCalendar_ExtraHolidayOnlyThatYear(t *testing.T) {
	cal := newTestCalendar(t, config.Holiday{Date: "2025-01-09"})

	name, ok := cal.Holiday(utc(2025, time.January, 9, 12, 0))
	assert.True(t, ok)
	assert.Equal(t, "market closure", name)

	_, ok = cal.Holiday(utc(2026, time.January, 9, 12, 0))
	assert.False(t, ok)
}
