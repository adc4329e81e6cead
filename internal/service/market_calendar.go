package service

import (
	"fmt"
	"time"

	"golang-autotrader/config"
	"golang-autotrader/pkg/utils"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/aa"
	"github.com/rickar/cal/v2/us"
)

const (
	reasonWeekend     = "weekend"
	reasonBeforeOpen  = "before market open"
	reasonAfterClose  = "after market close"
	reasonMarketOpen  = "market open"
	holidayDateLayout = "2006-01-02"
)

// MarketCalendar answers whether the exchange is trading at a given instant.
type MarketCalendar interface {
	IsOpen(now time.Time, timezone string) (bool, string)
	Holiday(date time.Time) (string, bool)
}

type marketCalendar struct {
	defaultTZ string
	openMin   int
	closeMin  int
	holidays  *cal.BusinessCalendar
}

func NewMarketCalendar(cfg config.Market) (MarketCalendar, error) {
	openH, openM, err := utils.ParseClock(cfg.OpenTime)
	if err != nil {
		return nil, fmt.Errorf("market open time: %w", err)
	}
	closeH, closeM, err := utils.ParseClock(cfg.CloseTime)
	if err != nil {
		return nil, fmt.Errorf("market close time: %w", err)
	}
	if closeH*60+closeM <= openH*60+openM {
		return nil, fmt.Errorf("market close %s must be after open %s", cfg.CloseTime, cfg.OpenTime)
	}
	if _, err := utils.LoadLocation(cfg.TimeZone); err != nil {
		return nil, fmt.Errorf("market time zone %q: %w", cfg.TimeZone, err)
	}

	bc := cal.NewBusinessCalendar()
	// one-off closures first so their names win on a shared date
	for _, h := range cfg.ExtraHolidays {
		d, err := time.Parse(holidayDateLayout, h.Date)
		if err != nil {
			return nil, fmt.Errorf("extra holiday %q: %w", h.Date, err)
		}
		name := h.Name
		if name == "" {
			name = "market closure"
		}
		bc.AddHoliday(oneOffClosure(name, d))
	}
	bc.AddHoliday(nyseHolidays()...)

	return &marketCalendar{
		defaultTZ: cfg.TimeZone,
		openMin:   openH*60 + openM,
		closeMin:  closeH*60 + closeM,
		holidays:  bc,
	}, nil
}

// IsOpen evaluates now in timezone (the configured zone when empty). Checks run
// weekend, holiday, then session hours, and the first hit decides the reason.
func (c *marketCalendar) IsOpen(now time.Time, timezone string) (bool, string) {
	if timezone == "" {
		timezone = c.defaultTZ
	}
	loc, err := utils.LoadLocation(timezone)
	if err != nil {
		return false, "invalid timezone " + timezone
	}
	local := now.In(loc)

	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false, reasonWeekend
	}
	if name, ok := c.Holiday(local); ok {
		return false, fmt.Sprintf("holiday (%s)", name)
	}

	minute := local.Hour()*60 + local.Minute()
	switch {
	case minute < c.openMin:
		return false, reasonBeforeOpen
	case minute >= c.closeMin:
		return false, reasonAfterClose
	}
	return true, reasonMarketOpen
}

// Holiday reports whether the calendar date of date is a full-day closure.
func (c *marketCalendar) Holiday(date time.Time) (string, bool) {
	_, observed, h := c.holidays.IsHoliday(date)
	if !observed || h == nil {
		return "", false
	}
	return h.Name, true
}

// nyseHolidays are the exchange's full-day closures. Saturday holidays move to
// Friday and Sunday holidays to Monday, except New Year's Day which is never
// observed in the prior year.
func nyseHolidays() []*cal.Holiday {
	weekendAlt := []cal.AltDay{
		{Day: time.Saturday, Offset: -1},
		{Day: time.Sunday, Offset: 1},
	}
	return []*cal.Holiday{
		us.NewYear.Clone(&cal.Holiday{Name: "New Year's Day", Observed: []cal.AltDay{{Day: time.Sunday, Offset: 1}}}),
		us.MlkDay.Clone(&cal.Holiday{Name: "Martin Luther King Jr. Day"}),
		us.PresidentsDay.Clone(&cal.Holiday{Name: "Washington's Birthday"}),
		aa.GoodFriday.Clone(&cal.Holiday{Name: "Good Friday"}),
		us.MemorialDay.Clone(&cal.Holiday{Name: "Memorial Day"}),
		us.Juneteenth.Clone(&cal.Holiday{Name: "Juneteenth", StartYear: 2022, Observed: weekendAlt}),
		us.IndependenceDay.Clone(&cal.Holiday{Name: "Independence Day", Observed: weekendAlt}),
		us.LaborDay.Clone(&cal.Holiday{Name: "Labor Day"}),
		us.ThanksgivingDay.Clone(&cal.Holiday{Name: "Thanksgiving Day"}),
		us.ChristmasDay.Clone(&cal.Holiday{Name: "Christmas Day", Observed: weekendAlt}),
	}
}

// oneOffClosure is a closure on a single date, such as a day of mourning.
func oneOffClosure(name string, d time.Time) *cal.Holiday {
	return &cal.Holiday{
		Name:      name,
		Month:     d.Month(),
		Day:       d.Day(),
		StartYear: d.Year(),
		EndYear:   d.Year(),
		Func:      cal.CalcDayOfMonth,
	}
}
