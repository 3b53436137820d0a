package dashboard

import (
	"net/url"
	"strconv"
	"time"
)

var monthNames = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// Period is a calendar month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// CurrentPeriod returns the month containing now.
func CurrentPeriod(now time.Time) Period {
	return Period{Year: now.Year(), Month: int(now.Month())}
}

// YearRange returns the selectable years: three back and one ahead.
func YearRange(now time.Time) []int {
	years := make([]int, 0, 5)
	for y := now.Year() - 3; y <= now.Year()+1; y++ {
		years = append(years, y)
	}
	return years
}

// Valid reports whether p is selectable at now.
func (p Period) Valid(now time.Time) bool {
	if p.Month < 1 || p.Month > 12 {
		return false
	}
	return p.Year >= now.Year()-3 && p.Year <= now.Year()+1
}

// MonthName is the Spanish name of the month.
func (p Period) MonthName() string {
	return MonthName(p.Month)
}

// MonthName names month m in Spanish, or "" when out of range.
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return monthNames[m-1]
}

// Query encodes the period for the backend and for links.
func (p Period) Query() url.Values {
	return url.Values{
		"year":  {strconv.Itoa(p.Year)},
		"month": {strconv.Itoa(p.Month)},
	}
}

// ParsePeriod reads year and month from q. Each missing or invalid value falls back to
// the matching field of def. The second result reports whether q named a period.
func ParsePeriod(q url.Values, def Period, now time.Time) (Period, bool) {
	explicit := q.Has("year") || q.Has("month")
	p := def
	if y, err := strconv.Atoi(q.Get("year")); err == nil {
		p.Year = y
	}
	if m, err := strconv.Atoi(q.Get("month")); err == nil {
		p.Month = m
	}
	if p.Month < 1 || p.Month > 12 {
		p.Month = def.Month
	}
	if !(Period{Year: p.Year, Month: 1}).Valid(now) {
		p.Year = def.Year
	}
	if !p.Valid(now) {
		p = CurrentPeriod(now)
	}
	return p, explicit
}

// MonthOption is one entry of the month selector.
type MonthOption struct {
	Value int
	Name  string
}

// MonthOptions lists the twelve months in order.
func MonthOptions() []MonthOption {
	out := make([]MonthOption, 0, 12)
	for i, name := range monthNames {
		out = append(out, MonthOption{Value: i + 1, Name: name})
	}
	return out
}
