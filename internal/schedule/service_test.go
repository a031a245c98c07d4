package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) MaxEmployeeOrder(ctx context.Context) (int, bool, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockStore) InsertEmployee(ctx context.Context, e *Employee) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockStore) ListEmployees(ctx context.Context) ([]Employee, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Employee), args.Error(1)
}

func (m *MockStore) GetEmployee(ctx context.Context, id int64) (*Employee, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Employee), args.Error(1)
}

func (m *MockStore) FindEmployeeByName(ctx context.Context, name string) (*Employee, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Employee), args.Error(1)
}

func (m *MockStore) UpdateEmployee(ctx context.Context, id int64, in EmployeeInput) (*Employee, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Employee), args.Error(1)
}

func (m *MockStore) SetEmployeeOrders(ctx context.Context, orders map[int64]int) error {
	args := m.Called(ctx, orders)
	return args.Error(0)
}

func (m *MockStore) ListDayOffs(ctx context.Context, employeeID int64, r DateRange) ([]time.Time, error) {
	args := m.Called(ctx, employeeID, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}

func (m *MockStore) ReplaceDayOffs(ctx context.Context, employeeID int64, r DateRange, dates []time.Time) error {
	args := m.Called(ctx, employeeID, r, dates)
	return args.Error(0)
}

func (m *MockStore) MonthDayOffs(ctx context.Context, r DateRange) ([]DayOff, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DayOff), args.Error(1)
}

func (m *MockStore) DayOffDates(ctx context.Context, names []string, r DateRange) ([]time.Time, error) {
	args := m.Called(ctx, names, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}

func (m *MockStore) EmployeesOffOn(ctx context.Context, day time.Time) ([]int64, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockStore) NextDayOff(ctx context.Context, employeeID int64, after time.Time) (time.Time, bool, error) {
	args := m.Called(ctx, employeeID, after)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

func (m *MockStore) ListPositions(ctx context.Context, employeeID int64, r DateRange) ([]Position, error) {
	args := m.Called(ctx, employeeID, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Position), args.Error(1)
}

func (m *MockStore) ReplacePositions(ctx context.Context, employeeID int64, r DateRange, positions []Position) error {
	args := m.Called(ctx, employeeID, r, positions)
	return args.Error(0)
}

func (m *MockStore) MonthPositions(ctx context.Context, r DateRange) ([]PositionRow, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]PositionRow), args.Error(1)
}

func (m *MockStore) PositionsOn(ctx context.Context, day time.Time) ([]Assignment, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Assignment), args.Error(1)
}

var testOptions = Options{
	Parts:           []string{"샌드위치", "오븐", "반죽", "빵", "시야기", "케이크"},
	PartnerPart:     "시야기",
	DefaultPartner:  "김지윤",
	TrackedEmployee: "유루디아",
}

func day(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func strp(s string) *string { return &s }

func TestCreateEmployee_OrderFollowsMax(t *testing.T) {
	tests := []struct {
		name      string
		max       int
		ok        bool
		wantOrder int
	}{
		{"empty roster", 0, false, 0},
		{"single employee at zero", 0, true, 1},
		{"after existing", 4, true, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			store.On("MaxEmployeeOrder", mock.Anything).Return(tt.max, tt.ok, nil)
			store.On("InsertEmployee", mock.Anything, mock.MatchedBy(func(e *Employee) bool {
				return e.Name == "박서준" && e.Order == tt.wantOrder && *e.DefaultPosition == "오븐"
			})).Return(nil)

			e, err := NewService(store, testOptions).CreateEmployee(context.Background(), EmployeeInput{Name: "박서준", DefaultPosition: strp("오븐")})

			require.NoError(t, err)
			assert.Equal(t, tt.wantOrder, e.Order)
			store.AssertExpectations(t)
		})
	}
}

func TestCreateEmployee_StoreError(t *testing.T) {
	store := new(MockStore)
	store.On("MaxEmployeeOrder", mock.Anything).Return(0, false, errors.New("db down"))

	_, err := NewService(store, testOptions).CreateEmployee(context.Background(), EmployeeInput{Name: "x"})

	assert.Error(t, err)
	store.AssertNotCalled(t, "InsertEmployee", mock.Anything, mock.Anything)
}

func TestListNames(t *testing.T) {
	store := new(MockStore)
	store.On("ListEmployees", mock.Anything).Return([]Employee{{ID: 2, Name: "가"}, {ID: 1, Name: "나"}}, nil)

	names, err := NewService(store, testOptions).ListNames(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []EmployeeName{{ID: 2, Name: "가"}, {ID: 1, Name: "나"}}, names)
}

func TestReorder(t *testing.T) {
	store := new(MockStore)
	store.On("ListEmployees", mock.Anything).Return([]Employee{
		{ID: 1, Name: "가", Order: 0},
		{ID: 2, Name: "나", Order: 1},
		{ID: 3, Name: "다", Order: 2},
	}, nil)
	store.On("SetEmployeeOrders", mock.Anything, map[int64]int{1: 2, 2: 0, 3: 1}).Return(nil)

	got, err := NewService(store, testOptions).Reorder(context.Background(), []string{"나", "다", "가"})

	require.NoError(t, err)
	assert.Equal(t, []OrderEntry{{0, "나"}, {1, "다"}, {2, "가"}}, got)
	store.AssertExpectations(t)
}

func TestReorder_Mismatch(t *testing.T) {
	store := new(MockStore)
	store.On("ListEmployees", mock.Anything).Return([]Employee{
		{ID: 1, Name: "가"},
		{ID: 2, Name: "나"},
	}, nil)

	_, err := NewService(store, testOptions).Reorder(context.Background(), []string{"가", "라"})

	var mismatch *OrderMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"나"}, mismatch.Missing)
	assert.Equal(t, []string{"라"}, mismatch.Extra)
	assert.Equal(t, "누락={나}, 추가={라}", mismatch.Error())
	store.AssertNotCalled(t, "SetEmployeeOrders", mock.Anything, mock.Anything)
}

func TestCurrentOrder_SortsByOrder(t *testing.T) {
	store := new(MockStore)
	store.On("ListEmployees", mock.Anything).Return([]Employee{
		{ID: 1, Name: "가", Order: 3},
		{ID: 2, Name: "나", Order: 1},
	}, nil)

	got, err := NewService(store, testOptions).CurrentOrder(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []OrderEntry{{1, "나"}, {3, "가"}}, got)
}

func TestEmployeeDayOffs(t *testing.T) {
	store := new(MockStore)
	r, _ := MonthRange(2025, 3)
	store.On("ListDayOffs", mock.Anything, int64(7), r).Return([]time.Time{day("2025-03-04"), day("2025-03-11")}, nil)

	got, err := NewService(store, testOptions).EmployeeDayOffs(context.Background(), 7, 2025, 3)

	require.NoError(t, err)
	assert.Equal(t, &EmployeeMonthDayOffs{EmployeeID: 7, Year: 2025, Month: 3, Dates: []string{"2025-03-04", "2025-03-11"}}, got)
}

func TestReplaceMonthDayOffs_SortsAndDedupes(t *testing.T) {
	store := new(MockStore)
	r, _ := MonthRange(2025, 3)
	store.On("GetEmployee", mock.Anything, int64(7)).Return(&Employee{ID: 7}, nil)
	store.On("ReplaceDayOffs", mock.Anything, int64(7), r,
		[]time.Time{day("2025-03-02"), day("2025-03-15"), day("2025-03-30")}).Return(nil)

	err := NewService(store, testOptions).ReplaceMonthDayOffs(context.Background(), 7, 2025, 3,
		[]string{"2025-03-30", "2025-03-02", "2025-03-15", "2025-03-02"})

	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestReplaceMonthDayOffs_RejectsOtherMonths(t *testing.T) {
	store := new(MockStore)

	err := NewService(store, testOptions).ReplaceMonthDayOffs(context.Background(), 7, 2025, 3, []string{"2025-04-01"})

	assert.ErrorIs(t, err, ErrInvalidDate)
	store.AssertNotCalled(t, "ReplaceDayOffs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReplaceMonthDayOffs_UnknownEmployee(t *testing.T) {
	store := new(MockStore)
	store.On("GetEmployee", mock.Anything, int64(9)).Return(nil, ErrEmployeeNotFound)

	err := NewService(store, testOptions).ReplaceMonthDayOffs(context.Background(), 9, 2025, 3, nil)

	assert.ErrorIs(t, err, ErrEmployeeNotFound)
}

func TestMonthRange_Invalid(t *testing.T) {
	_, err := MonthRange(2025, 13)
	assert.ErrorIs(t, err, ErrInvalidDate)
	_, err = MonthRange(2025, 0)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestMonthRange_Days(t *testing.T) {
	feb, err := MonthRange(2024, 2)
	require.NoError(t, err)
	assert.Len(t, feb.Days(), 29)
	dec, err := MonthRange(2025, 12)
	require.NoError(t, err)
	assert.Equal(t, day("2026-01-01"), dec.To)
}

func TestWorkIntersection_AddsTrackedEmployee(t *testing.T) {
	store := new(MockStore)
	r, _ := MonthRange(2025, 2)
	store.On("DayOffDates", mock.Anything, []string{"가", "나", "유루디아"}, r).
		Return([]time.Time{day("2025-02-03"), day("2025-02-10"), day("2025-02-03")}, nil)

	got, err := NewService(store, testOptions).WorkIntersection(context.Background(), 2025, 2, []string{"가", "나"})

	require.NoError(t, err)
	assert.Len(t, got, 26)
	assert.NotContains(t, got, "2025-02-03")
	assert.NotContains(t, got, "2025-02-10")
	assert.Equal(t, "2025-02-01", got[0])
	assert.Equal(t, "2025-02-28", got[len(got)-1])
}

func TestReplaceMonthPositions_LastWins(t *testing.T) {
	store := new(MockStore)
	r, _ := MonthRange(2025, 3)
	store.On("GetEmployee", mock.Anything, int64(3)).Return(&Employee{ID: 3}, nil)
	store.On("ReplacePositions", mock.Anything, int64(3), r, []Position{
		{Date: "2025-03-01", Position: "오븐"},
		{Date: "2025-03-05", Position: "시야기"},
	}).Return(nil)

	err := NewService(store, testOptions).ReplaceMonthPositions(context.Background(), 3, 2025, 3, []Position{
		{Date: "2025-03-05", Position: "빵"},
		{Date: "2025-03-01", Position: "오븐"},
		{Date: "2025-03-05", Position: "시야기"},
	})

	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestEmployeePositions_EmptyIsList(t *testing.T) {
	store := new(MockStore)
	r, _ := MonthRange(2025, 3)
	store.On("ListPositions", mock.Anything, int64(3), r).Return(nil, nil)

	got, err := NewService(store, testOptions).EmployeePositions(context.Background(), 3, 2025, 3)

	require.NoError(t, err)
	assert.NotNil(t, got.Positions)
	assert.Empty(t, got.Positions)
}

func scheduleStore(t *testing.T, date string) *MockStore {
	t.Helper()
	d := day(date)
	store := new(MockStore)
	store.On("ListEmployees", mock.Anything).Return([]Employee{
		{ID: 1, Name: "유루디아", DefaultPosition: strp("빵"), Order: 0},
		{ID: 2, Name: "김지윤", DefaultPosition: strp("시야기"), Order: 1},
		{ID: 3, Name: "박서준", DefaultPosition: strp("오븐"), Order: 2},
		{ID: 4, Name: "이하늘", DefaultPosition: nil, Order: 3},
		{ID: 5, Name: "최유리", DefaultPosition: strp("포장"), Order: 4},
	}, nil)
	store.On("PositionsOn", mock.Anything, d).Return([]Assignment{
		{EmployeeID: 3, Position: "시야기"},
		{EmployeeID: 4, Position: "케이크"},
	}, nil)
	return store
}

func TestDaySchedule(t *testing.T) {
	store := scheduleStore(t, "2025-03-05")
	d := day("2025-03-05")
	store.On("EmployeesOffOn", mock.Anything, d).Return([]int64{2}, nil)
	store.On("FindEmployeeByName", mock.Anything, "유루디아").Return(&Employee{ID: 1, Name: "유루디아"}, nil)
	store.On("NextDayOff", mock.Anything, int64(1), d).Return(day("2025-03-09"), true, nil)

	got, err := NewService(store, testOptions).DaySchedule(context.Background(), "2025-03-05")

	require.NoError(t, err)
	assert.Equal(t, "2025-03-05", got.Date)
	assert.Equal(t, 4, got.Total)
	assert.Equal(t, "박서준", got.Partner)
	assert.Equal(t, "4일 남음", got.NextDayOff)
	assert.Equal(t, []Part{
		{PartName: "샌드위치", Employees: []string{}},
		{PartName: "오븐", Employees: []string{}},
		{PartName: "반죽", Employees: []string{}},
		{PartName: "빵", Employees: []string{"유루디아"}},
		{PartName: "시야기", Employees: []string{"김지윤", "박서준"}},
		{PartName: "케이크", Employees: []string{"이하늘"}},
	}, got.EmployeePart)
}

func TestDaySchedule_TrackedEmployeeOff(t *testing.T) {
	store := scheduleStore(t, "2025-03-09")
	d := day("2025-03-09")
	store.On("EmployeesOffOn", mock.Anything, d).Return([]int64{1}, nil)
	store.On("FindEmployeeByName", mock.Anything, "유루디아").Return(&Employee{ID: 1}, nil)
	store.On("NextDayOff", mock.Anything, int64(1), d).Return(day("2025-03-16"), true, nil)

	got, err := NewService(store, testOptions).DaySchedule(context.Background(), "2025-03-09")

	require.NoError(t, err)
	assert.Equal(t, "휴일", got.NextDayOff)
}

func TestDaySchedule_NoRemainingDayOffs(t *testing.T) {
	store := scheduleStore(t, "2025-03-30")
	d := day("2025-03-30")
	store.On("EmployeesOffOn", mock.Anything, d).Return([]int64{}, nil)
	store.On("FindEmployeeByName", mock.Anything, "유루디아").Return(&Employee{ID: 1}, nil)
	store.On("NextDayOff", mock.Anything, int64(1), d).Return(time.Time{}, false, nil)

	got, err := NewService(store, testOptions).DaySchedule(context.Background(), "2025-03-30")

	require.NoError(t, err)
	assert.Equal(t, "남은 휴일이 없습니다.", got.NextDayOff)
}

func TestDaySchedule_TrackedEmployeeMissing(t *testing.T) {
	store := scheduleStore(t, "2025-03-05")
	d := day("2025-03-05")
	store.On("EmployeesOffOn", mock.Anything, d).Return([]int64{}, nil)
	store.On("FindEmployeeByName", mock.Anything, "유루디아").Return(nil, ErrEmployeeNotFound)

	got, err := NewService(store, testOptions).DaySchedule(context.Background(), "2025-03-05")

	require.NoError(t, err)
	assert.Equal(t, "유루디아 정보를 찾을 수 없습니다.", got.NextDayOff)
	assert.Equal(t, 5, got.Total)
}

func TestDaySchedule_DefaultPartner(t *testing.T) {
	d := day("2025-03-05")
	store := new(MockStore)
	store.On("ListEmployees", mock.Anything).Return([]Employee{}, nil)
	store.On("EmployeesOffOn", mock.Anything, d).Return([]int64{}, nil)
	store.On("PositionsOn", mock.Anything, d).Return([]Assignment{{EmployeeID: 99, Position: "시야기"}}, nil)
	store.On("FindEmployeeByName", mock.Anything, "유루디아").Return(nil, ErrEmployeeNotFound)

	got, err := NewService(store, testOptions).DaySchedule(context.Background(), "2025-03-05")

	require.NoError(t, err)
	assert.Equal(t, "김지윤", got.Partner)
	assert.Equal(t, 0, got.Total)
}

func TestDaySchedule_InvalidDate(t *testing.T) {
	_, err := NewService(new(MockStore), testOptions).DaySchedule(context.Background(), "2025-3-5")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
