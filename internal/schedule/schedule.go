// Package schedule manages the bakery roster: employee order, monthly
// day-offs, per-day special positions and the daily schedule view.
package schedule

import "time"

const dateLayout = "2006-01-02"

type Employee struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	DefaultPosition *string `json:"default_position"`
	Order           int     `json:"-"`
}

// EmployeeInput carries the editable fields of an employee.
type EmployeeInput struct {
	Name            string
	DefaultPosition *string
}

type EmployeeName struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type OrderEntry struct {
	Order int    `json:"order"`
	Name  string `json:"name"`
}

// DayOff is one day-off joined with its employee.
type DayOff struct {
	EmployeeID    int64  `json:"employee_id"`
	EmployeeOrder int    `json:"employee_order"`
	Name          string `json:"name"`
	Date          string `json:"date"`
	Order         int    `json:"order"`
}

type EmployeeMonthDayOffs struct {
	EmployeeID int64    `json:"employee_id"`
	Year       int      `json:"year"`
	Month      int      `json:"month"`
	Dates      []string `json:"dates"`
}

// Position is a special position held on one date.
type Position struct {
	Date     string `json:"date"`
	Position string `json:"position"`
}

type EmployeeMonthPositions struct {
	EmployeeID int64      `json:"employee_id"`
	Year       int        `json:"year"`
	Month      int        `json:"month"`
	Positions  []Position `json:"positions"`
}

// PositionRow is one stored special position joined with its employee.
type PositionRow struct {
	EmployeeID    int64      `json:"employee_id"`
	EmployeeOrder int        `json:"employee_order"`
	Name          string     `json:"name"`
	Positions     []Position `json:"positions"`
}

// Assignment is a special position keyed by employee for a single day.
type Assignment struct {
	EmployeeID int64
	Position   string
}

type Part struct {
	PartName  string   `json:"part_name"`
	Employees []string `json:"employees"`
}

type DaySchedule struct {
	Date         string `json:"date"`
	Total        int    `json:"total"`
	EmployeePart []Part `json:"employee_part"`
	Partner      string `json:"partner"`
	NextDayOff   string `json:"next_dayoff"`
}

// DateRange is the half-open interval [From, To) of civil dates.
type DateRange struct {
	From time.Time
	To   time.Time
}

// MonthRange returns the dates of the given month.
func MonthRange(year, month int) (DateRange, error) {
	if year < 1 || month < 1 || month > 12 {
		return DateRange{}, ErrInvalidDate
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return DateRange{From: from, To: from.AddDate(0, 1, 0)}, nil
}

// Contains reports whether d falls inside r.
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.From) && d.Before(r.To)
}

// Days lists every date in r.
func (r DateRange) Days() []time.Time {
	var out []time.Time
	for d := r.From; d.Before(r.To); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// ParseDate parses an ISO date ("2025-03-01").
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// FormatDate renders a civil date as ISO.
func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}
