package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"commute-api/internal/schedule"
)

const pgForeignKeyViolation = "23503"

// ScheduleStore implements schedule.Store on PostgreSQL.
type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

var _ schedule.Store = (*ScheduleStore)(nil)

// mapWriteErr turns a foreign key failure on employee_id into
// schedule.ErrEmployeeNotFound.
func mapWriteErr(err error, what string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return schedule.ErrEmployeeNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

func isoDates(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, schedule.FormatDate(d))
	}
	return out
}

func (s *ScheduleStore) MaxEmployeeOrder(ctx context.Context) (int, bool, error) {
	var maxOrder sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(sort_order) FROM employees`).Scan(&maxOrder); err != nil {
		return 0, false, fmt.Errorf("query max order: %w", err)
	}
	return int(maxOrder.Int64), maxOrder.Valid, nil
}

func (s *ScheduleStore) InsertEmployee(ctx context.Context, e *schedule.Employee) error {
	q := `INSERT INTO employees (name, default_position, sort_order) VALUES ($1, $2, $3) RETURNING id`
	if err := s.db.QueryRowContext(ctx, q, e.Name, e.DefaultPosition, e.Order).Scan(&e.ID); err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

const employeeColumns = `id, name, default_position, sort_order`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*schedule.Employee, error) {
	var e schedule.Employee
	var pos sql.NullString
	if err := row.Scan(&e.ID, &e.Name, &pos, &e.Order); err != nil {
		return nil, err
	}
	if pos.Valid {
		e.DefaultPosition = &pos.String
	}
	return &e, nil
}

func (s *ScheduleStore) ListEmployees(ctx context.Context) ([]schedule.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	employees := []schedule.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *e)
	}
	return employees, rows.Err()
}

func (s *ScheduleStore) GetEmployee(ctx context.Context, id int64) (*schedule.Employee, error) {
	e, err := scanEmployee(s.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return e, nil
}

func (s *ScheduleStore) FindEmployeeByName(ctx context.Context, name string) (*schedule.Employee, error) {
	q := `SELECT ` + employeeColumns + ` FROM employees WHERE name = $1 ORDER BY id LIMIT 1`
	e, err := scanEmployee(s.db.QueryRowContext(ctx, q, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find employee by name: %w", err)
	}
	return e, nil
}

func (s *ScheduleStore) UpdateEmployee(ctx context.Context, id int64, in schedule.EmployeeInput) (*schedule.Employee, error) {
	q := `UPDATE employees SET name = $2, default_position = $3 WHERE id = $1 RETURNING ` + employeeColumns
	e, err := scanEmployee(s.db.QueryRowContext(ctx, q, id, in.Name, in.DefaultPosition))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update employee: %w", err)
	}
	return e, nil
}

func (s *ScheduleStore) SetEmployeeOrders(ctx context.Context, orders map[int64]int) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		for id, order := range orders {
			if _, err := tx.ExecContext(ctx, `UPDATE employees SET sort_order = $2 WHERE id = $1`, id, order); err != nil {
				return fmt.Errorf("update order of %d: %w", id, err)
			}
		}
		return nil
	})
}

func (s *ScheduleStore) queryDates(ctx context.Context, q string, args ...any) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dates := []time.Time{}
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (s *ScheduleStore) ListDayOffs(ctx context.Context, employeeID int64, r schedule.DateRange) ([]time.Time, error) {
	q := `SELECT date FROM day_offs WHERE employee_id = $1 AND date >= $2 AND date < $3 ORDER BY day_order, date`
	dates, err := s.queryDates(ctx, q, employeeID, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("query day-offs: %w", err)
	}
	return dates, nil
}

func (s *ScheduleStore) ReplaceDayOffs(ctx context.Context, employeeID int64, r schedule.DateRange, dates []time.Time) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		del := `DELETE FROM day_offs
			WHERE employee_id = $1 AND date >= $2 AND date < $3 AND NOT (date = ANY($4::date[]))`
		if _, err := tx.ExecContext(ctx, del, employeeID, r.From, r.To, pq.Array(isoDates(dates))); err != nil {
			return fmt.Errorf("delete day-offs: %w", err)
		}
		ins := `INSERT INTO day_offs (employee_id, date, day_order) VALUES ($1, $2, $3)
			ON CONFLICT (employee_id, date) DO UPDATE SET day_order = EXCLUDED.day_order`
		for i, d := range dates {
			if _, err := tx.ExecContext(ctx, ins, employeeID, d, i+1); err != nil {
				return mapWriteErr(err, "upsert day-off")
			}
		}
		return nil
	})
}

func (s *ScheduleStore) MonthDayOffs(ctx context.Context, r schedule.DateRange) ([]schedule.DayOff, error) {
	q := `SELECT d.employee_id, e.sort_order, e.name, d.date, d.day_order
		FROM day_offs d JOIN employees e ON e.id = d.employee_id
		WHERE d.date >= $1 AND d.date < $2
		ORDER BY d.day_order, e.sort_order, d.date`
	rows, err := s.db.QueryContext(ctx, q, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("query month day-offs: %w", err)
	}
	defer rows.Close()

	out := []schedule.DayOff{}
	for rows.Next() {
		var d schedule.DayOff
		var date time.Time
		if err := rows.Scan(&d.EmployeeID, &d.EmployeeOrder, &d.Name, &date, &d.Order); err != nil {
			return nil, err
		}
		d.Date = schedule.FormatDate(date)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *ScheduleStore) DayOffDates(ctx context.Context, names []string, r schedule.DateRange) ([]time.Time, error) {
	q := `SELECT d.date FROM day_offs d JOIN employees e ON e.id = d.employee_id
		WHERE e.name = ANY($1) AND d.date >= $2 AND d.date < $3`
	dates, err := s.queryDates(ctx, q, pq.Array(names), r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("query day-offs by name: %w", err)
	}
	return dates, nil
}

func (s *ScheduleStore) EmployeesOffOn(ctx context.Context, day time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT employee_id FROM day_offs WHERE date = $1`, day)
	if err != nil {
		return nil, fmt.Errorf("query day-offs on %s: %w", schedule.FormatDate(day), err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *ScheduleStore) NextDayOff(ctx context.Context, employeeID int64, after time.Time) (time.Time, bool, error) {
	q := `SELECT date FROM day_offs WHERE employee_id = $1 AND date > $2 ORDER BY date LIMIT 1`
	var d time.Time
	err := s.db.QueryRowContext(ctx, q, employeeID, after).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query next day-off: %w", err)
	}
	return d, true, nil
}

func (s *ScheduleStore) ListPositions(ctx context.Context, employeeID int64, r schedule.DateRange) ([]schedule.Position, error) {
	q := `SELECT date, position FROM special_positions
		WHERE employee_id = $1 AND date >= $2 AND date < $3 ORDER BY date`
	rows, err := s.db.QueryContext(ctx, q, employeeID, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	out := []schedule.Position{}
	for rows.Next() {
		var date time.Time
		var p schedule.Position
		if err := rows.Scan(&date, &p.Position); err != nil {
			return nil, err
		}
		p.Date = schedule.FormatDate(date)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *ScheduleStore) ReplacePositions(ctx context.Context, employeeID int64, r schedule.DateRange, positions []schedule.Position) error {
	dates := make([]string, 0, len(positions))
	for _, p := range positions {
		dates = append(dates, p.Date)
	}
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		del := `DELETE FROM special_positions
			WHERE employee_id = $1 AND date >= $2 AND date < $3 AND NOT (date = ANY($4::date[]))`
		if _, err := tx.ExecContext(ctx, del, employeeID, r.From, r.To, pq.Array(dates)); err != nil {
			return fmt.Errorf("delete positions: %w", err)
		}
		ins := `INSERT INTO special_positions (employee_id, date, position) VALUES ($1, $2::date, $3)
			ON CONFLICT (employee_id, date) DO UPDATE SET position = EXCLUDED.position`
		for _, p := range positions {
			if _, err := tx.ExecContext(ctx, ins, employeeID, p.Date, p.Position); err != nil {
				return mapWriteErr(err, "upsert position")
			}
		}
		return nil
	})
}

func (s *ScheduleStore) MonthPositions(ctx context.Context, r schedule.DateRange) ([]schedule.PositionRow, error) {
	q := `SELECT p.employee_id, e.sort_order, e.name, p.date, p.position
		FROM special_positions p JOIN employees e ON e.id = p.employee_id
		WHERE p.date >= $1 AND p.date < $2
		ORDER BY p.date, e.sort_order`
	rows, err := s.db.QueryContext(ctx, q, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("query month positions: %w", err)
	}
	defer rows.Close()

	out := []schedule.PositionRow{}
	for rows.Next() {
		var row schedule.PositionRow
		var date time.Time
		var pos string
		if err := rows.Scan(&row.EmployeeID, &row.EmployeeOrder, &row.Name, &date, &pos); err != nil {
			return nil, err
		}
		row.Positions = []schedule.Position{{Date: schedule.FormatDate(date), Position: pos}}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *ScheduleStore) PositionsOn(ctx context.Context, day time.Time) ([]schedule.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT employee_id, position FROM special_positions WHERE date = $1 ORDER BY id`, day)
	if err != nil {
		return nil, fmt.Errorf("query positions on %s: %w", schedule.FormatDate(day), err)
	}
	defer rows.Close()

	out := []schedule.Assignment{}
	for rows.Next() {
		var a schedule.Assignment
		if err := rows.Scan(&a.EmployeeID, &a.Position); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
