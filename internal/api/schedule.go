package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"commute-api/internal/schedule"
)

const (
	msgEmployeeCreated  = "직원이 성공적으로 추가되었습니다."
	msgDayOffsUpdated   = "해당 직원의 한 달 휴무가 업데이트되었습니다."
	msgPositionsUpdated = "해당 직원의 한 달 포지션이 업데이트되었습니다."
)

// ScheduleService is satisfied by *schedule.Service.
type ScheduleService interface {
	CreateEmployee(ctx context.Context, in schedule.EmployeeInput) (*schedule.Employee, error)
	ListEmployees(ctx context.Context) ([]schedule.Employee, error)
	ListNames(ctx context.Context) ([]schedule.EmployeeName, error)
	GetEmployee(ctx context.Context, id int64) (*schedule.Employee, error)
	UpdateEmployee(ctx context.Context, id int64, in schedule.EmployeeInput) (*schedule.Employee, error)
	Reorder(ctx context.Context, names []string) ([]schedule.OrderEntry, error)
	CurrentOrder(ctx context.Context) ([]schedule.OrderEntry, error)
	EmployeeDayOffs(ctx context.Context, employeeID int64, year, month int) (*schedule.EmployeeMonthDayOffs, error)
	ReplaceMonthDayOffs(ctx context.Context, employeeID int64, year, month int, dates []string) error
	MonthDayOffs(ctx context.Context, year, month int) ([]schedule.DayOff, error)
	WorkIntersection(ctx context.Context, year, month int, names []string) ([]string, error)
	EmployeePositions(ctx context.Context, employeeID int64, year, month int) (*schedule.EmployeeMonthPositions, error)
	ReplaceMonthPositions(ctx context.Context, employeeID int64, year, month int, positions []schedule.Position) error
	MonthPositions(ctx context.Context, year, month int) ([]schedule.PositionRow, error)
	DaySchedule(ctx context.Context, date string) (*schedule.DaySchedule, error)
}

type scheduleHandler struct {
	service ScheduleService
}

func newScheduleHandler(service ScheduleService) *scheduleHandler {
	return &scheduleHandler{service: service}
}

func (h *scheduleHandler) employeeRoutes(r chi.Router) {
	r.Post("/", h.createEmployee)
	r.Get("/", h.listEmployees)
	r.Get("/names", h.listNames)
	r.Put("/order", h.reorder)
	r.Get("/order", h.currentOrder)
	r.Get("/schedules/{date}", h.daySchedule)
	r.Get("/{employee_id}", h.getEmployee)
	r.Put("/{employee_id}", h.updateEmployee)
}

func (h *scheduleHandler) dayOffRoutes(r chi.Router) {
	r.Get("/dayoff-month/{employee_id}/{year}/{month}", h.employeeDayOffs)
	r.Post("/dayoff-month", h.replaceDayOffs)
	r.Post("/month", h.monthDayOffs)
	r.Post("/work-intersection", h.workIntersection)
}

func (h *scheduleHandler) positionRoutes(r chi.Router) {
	r.Get("/position-month/{employee_id}/{year}/{month}", h.employeePositions)
	r.Post("/position-month", h.replacePositions)
	r.Post("/month", h.monthPositions)
}

func (h *scheduleHandler) createEmployee(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	in := schedule.EmployeeInput{Name: req.Name, DefaultPosition: req.DefaultPosition}
	if _, err := h.service.CreateEmployee(r.Context(), in); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageBody{Message: msgEmployeeCreated})
}

func (h *scheduleHandler) listEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.ListEmployees(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"employees": nonNil(employees)})
}

func (h *scheduleHandler) listNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.ListNames(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"employees_names": nonNil(names)})
}

func (h *scheduleHandler) reorder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	order, err := h.service.Reorder(r.Context(), req.Order)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"new_order": nonNil(order)})
}

func (h *scheduleHandler) currentOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.CurrentOrder(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"new_order": nonNil(order)})
}

func (h *scheduleHandler) getEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "employee_id", "gt=0")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	employee, err := h.service.GetEmployee(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"employee": employee})
}

func (h *scheduleHandler) updateEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "employee_id", "gt=0")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	var req employeeRequest
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	in := schedule.EmployeeInput{Name: req.Name, DefaultPosition: req.DefaultPosition}
	employee, err := h.service.UpdateEmployee(r.Context(), id, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"employee": employee})
}

func (h *scheduleHandler) daySchedule(w http.ResponseWriter, r *http.Request) {
	day, err := h.service.DaySchedule(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (h *scheduleHandler) employeeDayOffs(w http.ResponseWriter, r *http.Request) {
	id, year, month, err := pathMonth(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	offs, err := h.service.EmployeeDayOffs(r.Context(), id, year, month)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offs)
}

func (h *scheduleHandler) replaceDayOffs(w http.ResponseWriter, r *http.Request) {
	var req monthDayOffsRequest
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := h.service.ReplaceMonthDayOffs(r.Context(), req.EmployeeID, req.Year, req.Month, req.Dates); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msgDayOffsUpdated})
}

func (h *scheduleHandler) monthDayOffs(w http.ResponseWriter, r *http.Request) {
	var req monthRequest
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	offs, err := h.service.MonthDayOffs(r.Context(), req.Year, req.Month)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dayoffs": nonNil(offs)})
}

func (h *scheduleHandler) workIntersection(w http.ResponseWriter, r *http.Request) {
	var req workIntersectionRequest
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	dates, err := h.service.WorkIntersection(r.Context(), req.Year, req.Month, req.Names)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": nonNil(dates)})
}

func (h *scheduleHandler) employeePositions(w http.ResponseWriter, r *http.Request) {
	id, year, month, err := pathMonth(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	positions, err := h.service.EmployeePositions(r.Context(), id, year, month)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (h *scheduleHandler) replacePositions(w http.ResponseWriter, r *http.Request) {
	var req monthPositionsRequest
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	positions := make([]schedule.Position, 0, len(req.Positions))
	for _, p := range req.Positions {
		positions = append(positions, schedule.Position{Date: p.Date, Position: p.Position})
	}
	if err := h.service.ReplaceMonthPositions(r.Context(), req.EmployeeID, req.Year, req.Month, positions); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msgPositionsUpdated})
}

func (h *scheduleHandler) monthPositions(w http.ResponseWriter, r *http.Request) {
	var req monthRequest
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	rows, err := h.service.MonthPositions(r.Context(), req.Year, req.Month)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": nonNil(rows)})
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
