package schedule

import (
	"context"
	"time"
)

// Store persists employees, day-offs and special positions. Lookups by ID
// return ErrEmployeeNotFound when nothing matches.
type Store interface {
	// MaxEmployeeOrder returns ok=false when there are no employees.
	MaxEmployeeOrder(ctx context.Context) (order int, ok bool, err error)
	InsertEmployee(ctx context.Context, e *Employee) error
	ListEmployees(ctx context.Context) ([]Employee, error)
	GetEmployee(ctx context.Context, id int64) (*Employee, error)
	FindEmployeeByName(ctx context.Context, name string) (*Employee, error)
	UpdateEmployee(ctx context.Context, id int64, in EmployeeInput) (*Employee, error)
	SetEmployeeOrders(ctx context.Context, orders map[int64]int) error

	// ListDayOffs returns an employee's day-offs in r by day-off order.
	ListDayOffs(ctx context.Context, employeeID int64, r DateRange) ([]time.Time, error)
	// ReplaceDayOffs makes dates the employee's day-offs in r, numbering
	// them 1..n in the given order, in one transaction.
	ReplaceDayOffs(ctx context.Context, employeeID int64, r DateRange, dates []time.Time) error
	MonthDayOffs(ctx context.Context, r DateRange) ([]DayOff, error)
	DayOffDates(ctx context.Context, names []string, r DateRange) ([]time.Time, error)
	EmployeesOffOn(ctx context.Context, day time.Time) ([]int64, error)
	// NextDayOff returns the earliest day-off strictly after day.
	NextDayOff(ctx context.Context, employeeID int64, after time.Time) (next time.Time, ok bool, err error)

	ListPositions(ctx context.Context, employeeID int64, r DateRange) ([]Position, error)
	// ReplacePositions makes positions the employee's special positions in
	// r, in one transaction.
	ReplacePositions(ctx context.Context, employeeID int64, r DateRange, positions []Position) error
	MonthPositions(ctx context.Context, r DateRange) ([]PositionRow, error)
	PositionsOn(ctx context.Context, day time.Time) ([]Assignment, error)
}
