package schedule

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmployeeNotFound is returned when no employee matches the lookup.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrInvalidDate is returned for unparseable dates, impossible months and
	// dates outside the month being replaced.
	ErrInvalidDate = errors.New("invalid date")
)

// OrderMismatchError is returned when a new roster order does not name
// exactly the current employees.
type OrderMismatchError struct {
	Missing []string
	Extra   []string
}

func (e *OrderMismatchError) Error() string {
	return fmt.Sprintf("누락={%s}, 추가={%s}", strings.Join(e.Missing, ", "), strings.Join(e.Extra, ", "))
}
