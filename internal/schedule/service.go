package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Options names the parts shown in the daily view and the people it reports
// on.
type Options struct {
	Parts           []string
	PartnerPart     string
	DefaultPartner  string
	TrackedEmployee string
}

type Service struct {
	store Store
	opts  Options
}

func NewService(store Store, opts Options) *Service {
	return &Service{store: store, opts: opts}
}

// CreateEmployee appends a new employee at the end of the roster.
func (s *Service) CreateEmployee(ctx context.Context, in EmployeeInput) (*Employee, error) {
	maxOrder, ok, err := s.store.MaxEmployeeOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster order: %w", err)
	}
	e := &Employee{Name: in.Name, DefaultPosition: in.DefaultPosition}
	if ok {
		e.Order = maxOrder + 1
	}
	if err := s.store.InsertEmployee(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create employee: %w", err)
	}
	return e, nil
}

func (s *Service) ListEmployees(ctx context.Context) ([]Employee, error) {
	return s.store.ListEmployees(ctx)
}

func (s *Service) ListNames(ctx context.Context) ([]EmployeeName, error) {
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]EmployeeName, 0, len(employees))
	for _, e := range employees {
		names = append(names, EmployeeName{ID: e.ID, Name: e.Name})
	}
	return names, nil
}

func (s *Service) GetEmployee(ctx context.Context, id int64) (*Employee, error) {
	return s.store.GetEmployee(ctx, id)
}

func (s *Service) UpdateEmployee(ctx context.Context, id int64, in EmployeeInput) (*Employee, error) {
	return s.store.UpdateEmployee(ctx, id, in)
}

// Reorder sets each employee's order to the index of their name in names.
// names must contain exactly the current employees' names.
func (s *Service) Reorder(ctx context.Context, names []string) ([]OrderEntry, error) {
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}

	current := make(map[string]bool, len(employees))
	for _, e := range employees {
		current[e.Name] = true
	}
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}

	var mismatch OrderMismatchError
	for n := range current {
		if _, ok := index[n]; !ok {
			mismatch.Missing = append(mismatch.Missing, n)
		}
	}
	for n := range index {
		if !current[n] {
			mismatch.Extra = append(mismatch.Extra, n)
		}
	}
	if len(mismatch.Missing) > 0 || len(mismatch.Extra) > 0 {
		sort.Strings(mismatch.Missing)
		sort.Strings(mismatch.Extra)
		return nil, &mismatch
	}

	orders := make(map[int64]int, len(employees))
	for i := range employees {
		employees[i].Order = index[employees[i].Name]
		orders[employees[i].ID] = employees[i].Order
	}
	if err := s.store.SetEmployeeOrders(ctx, orders); err != nil {
		return nil, fmt.Errorf("failed to save roster order: %w", err)
	}
	return orderEntries(employees), nil
}

func (s *Service) CurrentOrder(ctx context.Context) ([]OrderEntry, error) {
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	return orderEntries(employees), nil
}

func orderEntries(employees []Employee) []OrderEntry {
	sorted := append([]Employee(nil), employees...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	out := make([]OrderEntry, 0, len(sorted))
	for _, e := range sorted {
		out = append(out, OrderEntry{Order: e.Order, Name: e.Name})
	}
	return out
}

func (s *Service) EmployeeDayOffs(ctx context.Context, employeeID int64, year, month int) (*EmployeeMonthDayOffs, error) {
	r, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	dates, err := s.store.ListDayOffs(ctx, employeeID, r)
	if err != nil {
		return nil, err
	}
	out := &EmployeeMonthDayOffs{EmployeeID: employeeID, Year: year, Month: month, Dates: make([]string, 0, len(dates))}
	for _, d := range dates {
		out.Dates = append(out.Dates, FormatDate(d))
	}
	return out, nil
}

// ReplaceMonthDayOffs makes dates the employee's day-offs for the month.
// Day-offs are numbered from 1 in date order.
func (s *Service) ReplaceMonthDayOffs(ctx context.Context, employeeID int64, year, month int, dates []string) error {
	r, err := MonthRange(year, month)
	if err != nil {
		return err
	}
	seen := make(map[time.Time]bool, len(dates))
	days := make([]time.Time, 0, len(dates))
	for _, raw := range dates {
		d, err := ParseDate(raw)
		if err != nil {
			return fmt.Errorf("%w: %q", err, raw)
		}
		if !r.Contains(d) {
			return fmt.Errorf("%w: %s is outside %04d-%02d", ErrInvalidDate, raw, year, month)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	if _, err := s.store.GetEmployee(ctx, employeeID); err != nil {
		return err
	}
	return s.store.ReplaceDayOffs(ctx, employeeID, r, days)
}

func (s *Service) MonthDayOffs(ctx context.Context, year, month int) ([]DayOff, error) {
	r, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	return s.store.MonthDayOffs(ctx, r)
}

// WorkIntersection returns the dates of the month on which neither the named
// employees nor the tracked employee are off.
func (s *Service) WorkIntersection(ctx context.Context, year, month int, names []string) ([]string, error) {
	r, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	who := append(append([]string(nil), names...), s.opts.TrackedEmployee)
	off, err := s.store.DayOffDates(ctx, who, r)
	if err != nil {
		return nil, err
	}
	offSet := make(map[time.Time]bool, len(off))
	for _, d := range off {
		offSet[d] = true
	}
	out := []string{}
	for _, d := range r.Days() {
		if !offSet[d] {
			out = append(out, FormatDate(d))
		}
	}
	return out, nil
}

func (s *Service) EmployeePositions(ctx context.Context, employeeID int64, year, month int) (*EmployeeMonthPositions, error) {
	r, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	positions, err := s.store.ListPositions(ctx, employeeID, r)
	if err != nil {
		return nil, err
	}
	if positions == nil {
		positions = []Position{}
	}
	return &EmployeeMonthPositions{EmployeeID: employeeID, Year: year, Month: month, Positions: positions}, nil
}

// ReplaceMonthPositions makes positions the employee's special positions for
// the month. A date listed twice keeps its last position.
func (s *Service) ReplaceMonthPositions(ctx context.Context, employeeID int64, year, month int, positions []Position) error {
	r, err := MonthRange(year, month)
	if err != nil {
		return err
	}
	byDate := make(map[string]string, len(positions))
	for _, p := range positions {
		d, err := ParseDate(p.Date)
		if err != nil {
			return fmt.Errorf("%w: %q", err, p.Date)
		}
		if !r.Contains(d) {
			return fmt.Errorf("%w: %s is outside %04d-%02d", ErrInvalidDate, p.Date, year, month)
		}
		byDate[FormatDate(d)] = p.Position
	}
	out := make([]Position, 0, len(byDate))
	for date, pos := range byDate {
		out = append(out, Position{Date: date, Position: pos})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	if _, err := s.store.GetEmployee(ctx, employeeID); err != nil {
		return err
	}
	return s.store.ReplacePositions(ctx, employeeID, r, out)
}

func (s *Service) MonthPositions(ctx context.Context, year, month int) ([]PositionRow, error) {
	r, err := MonthRange(year, month)
	if err != nil {
		return nil, err
	}
	return s.store.MonthPositions(ctx, r)
}

// DaySchedule builds the view for one date: headcount, who works which
// part, the partner and the tracked employee's next day-off.
func (s *Service) DaySchedule(ctx context.Context, date string) (*DaySchedule, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	offIDs, err := s.store.EmployeesOffOn(ctx, day)
	if err != nil {
		return nil, err
	}
	assignments, err := s.store.PositionsOn(ctx, day)
	if err != nil {
		return nil, err
	}

	off := make(map[int64]bool, len(offIDs))
	for _, id := range offIDs {
		off[id] = true
	}
	working := 0
	for _, e := range employees {
		if !off[e.ID] {
			working++
		}
	}

	special := make(map[int64]string, len(assignments))
	for _, a := range assignments {
		special[a.EmployeeID] = a.Position
	}
	members := make(map[string][]string, len(s.opts.Parts))
	for _, p := range s.opts.Parts {
		members[p] = []string{}
	}
	byID := make(map[int64]Employee, len(employees))
	for _, e := range employees {
		byID[e.ID] = e
		part, ok := special[e.ID]
		if !ok {
			if e.DefaultPosition == nil {
				continue
			}
			part = *e.DefaultPosition
		}
		if list, known := members[part]; known {
			members[part] = append(list, e.Name)
		}
	}
	parts := make([]Part, 0, len(s.opts.Parts))
	for _, p := range s.opts.Parts {
		parts = append(parts, Part{PartName: p, Employees: members[p]})
	}

	partner := s.opts.DefaultPartner
	for _, a := range assignments {
		if a.Position != s.opts.PartnerPart {
			continue
		}
		if e, ok := byID[a.EmployeeID]; ok {
			partner = e.Name
		}
		break
	}

	next, err := s.nextDayOff(ctx, day, off)
	if err != nil {
		return nil, err
	}

	return &DaySchedule{
		Date:         date,
		Total:        working,
		EmployeePart: parts,
		Partner:      partner,
		NextDayOff:   next,
	}, nil
}

func (s *Service) nextDayOff(ctx context.Context, day time.Time, off map[int64]bool) (string, error) {
	tracked, err := s.store.FindEmployeeByName(ctx, s.opts.TrackedEmployee)
	if errors.Is(err, ErrEmployeeNotFound) {
		return s.opts.TrackedEmployee + " 정보를 찾을 수 없습니다.", nil
	}
	if err != nil {
		return "", err
	}
	next, ok, err := s.store.NextDayOff(ctx, tracked.ID, day)
	if err != nil {
		return "", err
	}
	switch {
	case !ok:
		return "남은 휴일이 없습니다.", nil
	case off[tracked.ID]:
		return "휴일", nil
	default:
		return fmt.Sprintf("%d일 남음", int(next.Sub(day).Hours()/24)), nil
	}
}
