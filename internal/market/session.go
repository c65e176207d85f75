// Package market answers NYSE calendar questions: business days and the
// regular trading session.
package market

import (
	"time"

	"github.com/scmhub/calendar"
)

const (
	dateLayout = "2006-01-02"

	openMinute  = 9*60 + 30
	closeMinute = 16 * 60
)

// Session checks trading days and hours in the exchange time zone.
type Session struct {
	location *time.Location
	nyse     *calendar.Calendar
}

// NewSession creates a Session for timezone, falling back to UTC when the
// zone cannot be loaded.
func NewSession(timezone string) *Session {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Session{
		location: loc,
		nyse:     calendar.XNYS(),
	}
}

// NewYorkSession is the session for the NYSE's home time zone.
func NewYorkSession() *Session {
	return NewSession("America/New_York")
}

// IsMarketDay checks if t falls on a trading day (not weekend/holiday).
func (s *Session) IsMarketDay(t time.Time) bool {
	local := t.In(s.location)
	// Noon avoids date slips around midnight in other zones
	noon := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, s.location)
	return s.nyse.IsBusinessDay(noon)
}

// IsMarketDate is IsMarketDay for a YYYY-MM-DD string.
func (s *Session) IsMarketDate(date string) bool {
	t, err := time.ParseInLocation(dateLayout, date, s.location)
	if err != nil {
		return false
	}
	return s.IsMarketDay(t)
}

// IsOpen reports whether t is inside the regular session of a trading day.
func (s *Session) IsOpen(t time.Time) bool {
	if !s.IsMarketDay(t) {
		return false
	}
	local := t.In(s.location)
	minute := local.Hour()*60 + local.Minute()
	return minute >= openMinute && minute < closeMinute
}

// TodayDate returns today's date in YYYY-MM-DD format in the session's zone.
func (s *Session) TodayDate() string {
	return time.Now().In(s.location).Format(dateLayout)
}

// Location returns the session's time zone.
func (s *Session) Location() *time.Location {
	return s.location
}
