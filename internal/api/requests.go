package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type employeeRequest struct {
	Name            string  `json:"name" validate:"required"`
	DefaultPosition *string `json:"default_position"`
}

type orderRequest struct {
	Order []string `json:"order" validate:"required,dive,required"`
}

type monthRequest struct {
	Year  int `json:"year" validate:"gte=2000,lte=2100"`
	Month int `json:"month" validate:"gte=1,lte=12"`
}

type workIntersectionRequest struct {
	Year  int      `json:"year" validate:"gte=2000,lte=2100"`
	Month int      `json:"month" validate:"gte=1,lte=12"`
	Names []string `json:"names" validate:"dive,required"`
}

type monthDayOffsRequest struct {
	EmployeeID int64    `json:"employee_id" validate:"gt=0"`
	Year       int      `json:"year" validate:"gte=2000,lte=2100"`
	Month      int      `json:"month" validate:"gte=1,lte=12"`
	Dates      []string `json:"dates" validate:"dive,datetime=2006-01-02"`
}

type positionItem struct {
	Date     string `json:"date" validate:"datetime=2006-01-02"`
	Position string `json:"position" validate:"required"`
}

type monthPositionsRequest struct {
	EmployeeID int64          `json:"employee_id" validate:"gt=0"`
	Year       int            `json:"year" validate:"gte=2000,lte=2100"`
	Month      int            `json:"month" validate:"gte=1,lte=12"`
	Positions  []positionItem `json:"positions" validate:"dive"`
}

// decodeBody reads a JSON body into dst and validates it.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return validate.Struct(dst)
}

func pathInt(r *http.Request, name, rule string) (int64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s: %q", errBadRequest, name, raw)
	}
	if err := validate.Var(v, rule); err != nil {
		return 0, fmt.Errorf("%w: invalid %s: %q", errBadRequest, name, raw)
	}
	return v, nil
}

// pathMonth reads the employee_id, year and month path parameters.
func pathMonth(r *http.Request) (id int64, year, month int, err error) {
	if id, err = pathInt(r, "employee_id", "gt=0"); err != nil {
		return 0, 0, 0, err
	}
	y, err := pathInt(r, "year", "gte=2000,lte=2100")
	if err != nil {
		return 0, 0, 0, err
	}
	m, err := pathInt(r, "month", "gte=1,lte=12")
	if err != nil {
		return 0, 0, 0, err
	}
	return id, int(y), int(m), nil
}
