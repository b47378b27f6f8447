package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

type fakeSettings struct {
	mu        sync.Mutex
	settings  domain.Settings
	getErr    error
	claimErr  error
	completed []string
}

func (f *fakeSettings) GetOrCreateSettings(ctx context.Context) (*domain.Settings, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.settings
	return &s, nil
}

func (f *fakeSettings) TryClaimRunDate(ctx context.Context, settingsID int64, date string) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	// 日期格式固定为 YYYY-MM-DD，字符串比较即日期比较
	if f.settings.LastAutomatedRunDate != nil && *f.settings.LastAutomatedRunDate >= date {
		return false, nil
	}
	f.settings.LastAutomatedRunDate = &date
	return true, nil
}

func (f *fakeSettings) MarkRunCompleted(ctx context.Context, settingsID int64, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, date)
	f.settings.LastCompletedRunDate = &date
	return nil
}

type fakeCalendar struct {
	entries []domain.CalendarEntry
	calls   int
}

func (f *fakeCalendar) FindOverlappingCalendarEntries(ctx context.Context, types []domain.CalendarEntryType, start, end time.Time) ([]domain.CalendarEntry, error) {
	f.calls++
	var out []domain.CalendarEntry
	for _, e := range f.entries {
		for _, typ := range types {
			if e.Type == typ && e.IsLive() && e.Overlaps(start, end) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

type fakeUsers struct {
	users []*domain.User
	err   error
}

func (f *fakeUsers) FindActiveUsers(ctx context.Context) ([]*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	records   []domain.AttendanceRecord
	absent    map[int64]int32
	createErr error
}

func newFakeLedger(existing ...domain.AttendanceRecord) *fakeLedger {
	return &fakeLedger{records: existing, absent: map[int64]int32{}}
}

func (f *fakeLedger) AttendanceExistsFor(ctx context.Context, userID int64, start, end time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.UserID == userID && !r.CreatedAt.Before(start) && !r.CreatedAt.After(end) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) CreateAttendanceRecord(ctx context.Context, record *domain.AttendanceRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	record.ID = int64(len(f.records) + 1)
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeLedger) IncrementAbsentCounter(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.absent[userID]++
	return nil
}

func (f *fakeLedger) statusOf(userID int64) []domain.AttendanceStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AttendanceStatus
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r.Status)
		}
	}
	return out
}

func shiftPtr(s domain.Shift) *domain.Shift { return &s }

type fixture struct {
	settings *fakeSettings
	calendar *fakeCalendar
	users    *fakeUsers
	ledger   *fakeLedger
	job      *Job
	loc      *time.Location
}

// 当前时间固定为卡拉奇时间 2026-01-06 00:30，目标日期为周一 2026-01-05
func newFixture(t *testing.T, users []*domain.User, entries []domain.CalendarEntry, existing ...domain.AttendanceRecord) *fixture {
	t.Helper()

	loc, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)

	f := &fixture{
		settings: &fakeSettings{settings: domain.Settings{
			ID:            1,
			Timezone:      "Asia/Karachi",
			ShiftDefaults: domain.DefaultShiftDefaults(),
		}},
		calendar: &fakeCalendar{entries: entries},
		users:    &fakeUsers{users: users},
		ledger:   newFakeLedger(existing...),
		loc:      loc,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.job = NewJob(f.settings, f.calendar, f.users, f.ledger, logger, domain.ShiftMorning)
	f.job.now = func() time.Time { return time.Date(2026, 1, 6, 0, 30, 0, 0, loc) }

	return f
}

func TestRun_MarksAbsentOnWorkingDay(t *testing.T) {
	users := []*domain.User{
		{ID: 1, Shift: shiftPtr(domain.ShiftEvening), WorkingDays: []int32{1, 2, 3}},
		{ID: 2, WorkingDays: []int32{6}},
	}
	f := newFixture(t, users, nil)

	result, err := f.job.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.Skipped)
	assert.Equal(t, "2026-01-05", result.TargetDate)
	assert.Equal(t, 2, result.ParsedUsers)
	assert.Equal(t, 1, result.MarkedAbsent)
	assert.Equal(t, 1, result.NonWorking)
	assert.NotEmpty(t, result.RunID)
	assert.Empty(t, result.Decisions)

	assert.Equal(t, []domain.AttendanceStatus{domain.AttendanceStatusAbsent}, f.ledger.statusOf(1))
	assert.Empty(t, f.ledger.statusOf(2))
	assert.Equal(t, int32(1), f.ledger.absent[1])

	rec := f.ledger.records[0]
	assert.Equal(t, domain.ShiftEvening, rec.Shift)
	assert.True(t, rec.HoursWorked.IsZero())
	assert.Nil(t, rec.CheckInTime)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, f.loc), rec.CreatedAt)

	require.NotNil(t, f.settings.settings.LastAutomatedRunDate)
	assert.Equal(t, "2026-01-05", *f.settings.settings.LastAutomatedRunDate)
	assert.Equal(t, []string{"2026-01-05"}, f.settings.completed)
}

func TestRun_HolidayMarksEveryoneWithoutRecord(t *testing.T) {
	users := []*domain.User{
		{ID: 1, WorkingDays: []int32{1}},
		{ID: 2, WorkingDays: []int32{6}},
		{ID: 3},
	}
	holiday := domain.CalendarEntry{
		ID:        10,
		Title:     "Kashmir Day",
		Type:      domain.CalendarEntryHoliday,
		StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		IsFullDay: true,
	}
	existing := domain.AttendanceRecord{
		ID:        99,
		UserID:    3,
		Status:    domain.AttendanceStatusPresent,
		CreatedAt: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	}
	f := newFixture(t, users, []domain.CalendarEntry{holiday}, existing)

	result, err := f.job.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.MarkedHoliday)
	assert.Equal(t, 1, result.SkippedExisting)
	assert.Equal(t, 0, result.MarkedAbsent)

	assert.Equal(t, []domain.AttendanceStatus{domain.AttendanceStatusHoliday}, f.ledger.statusOf(1))
	assert.Equal(t, []domain.AttendanceStatus{domain.AttendanceStatusHoliday}, f.ledger.statusOf(2))
	assert.Equal(t, []domain.AttendanceStatus{domain.AttendanceStatusPresent}, f.ledger.statusOf(3))
	assert.Empty(t, f.ledger.absent)
}

func TestRun_ForcedWorkingDay(t *testing.T) {
	users := []*domain.User{{ID: 1, WorkingDays: []int32{6}}}
	entry := domain.CalendarEntry{
		Type:      domain.CalendarEntryWorkingDay,
		StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	f := newFixture(t, users, []domain.CalendarEntry{entry})

	result, err := f.job.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.MarkedAbsent)
}

func TestRun_SecondLiveRunIsSkipped(t *testing.T) {
	users := []*domain.User{{ID: 1}}
	f := newFixture(t, users, nil)

	first, err := f.job.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.False(t, first.Skipped)

	second, err := f.job.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.True(t, second.Skipped)
	assert.Equal(t, 0, second.ParsedUsers)

	assert.Len(t, f.ledger.records, 1)
	assert.Equal(t, int32(1), f.ledger.absent[1])
	assert.Equal(t, 1, f.calendar.calls)
}

func TestRun_ConcurrentLiveRunsWriteOnce(t *testing.T) {
	users := []*domain.User{{ID: 1}, {ID: 2}, {ID: 3}}
	f := newFixture(t, users, nil)

	const runs = 8
	var wg sync.WaitGroup
	results := make([]*domain.ReconciliationResult, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := f.job.Run(context.Background(), Options{})
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	executed := 0
	for _, r := range results {
		require.NotNil(t, r)
		if !r.Skipped {
			executed++
		}
	}
	assert.Equal(t, 1, executed)
	assert.Len(t, f.ledger.records, 3)
	for _, id := range []int64{1, 2, 3} {
		assert.Equal(t, int32(1), f.ledger.absent[id])
	}
}

func TestRun_OlderExplicitDateCannotReopenClaimedDay(t *testing.T) {
	f := newFixture(t, []*domain.User{{ID: 1}}, nil)

	first, err := f.job.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.False(t, first.Skipped)
	assert.Equal(t, 1, first.MarkedAbsent)

	// 2026-01-02 是周五，正式对账较早的日期不能把标记往回拨
	older, err := f.job.Run(context.Background(), Options{TargetDate: "2026-01-02"})
	require.NoError(t, err)
	assert.True(t, older.Skipped)
	assert.Contains(t, older.Message, "2026-01-05")
	require.NotNil(t, f.settings.settings.LastAutomatedRunDate)
	assert.Equal(t, "2026-01-05", *f.settings.settings.LastAutomatedRunDate)

	// 之后对昨天的重试仍然被跳过，新加入的用户也不会被补记
	f.users.users = append(f.users.users, &domain.User{ID: 2})
	retry, err := f.job.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.True(t, retry.Skipped)

	assert.Len(t, f.ledger.records, 1)
	assert.Equal(t, int32(1), f.ledger.absent[1])
	assert.Zero(t, f.ledger.absent[2])
}

func TestRun_NewerExplicitDateAdvancesMarker(t *testing.T) {
	f := newFixture(t, []*domain.User{{ID: 1}}, nil)
	date := "2026-01-02"
	f.settings.settings.LastAutomatedRunDate = &date

	result, err := f.job.Run(context.Background(), Options{TargetDate: "2026-01-05"})
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, "2026-01-05", *f.settings.settings.LastAutomatedRunDate)
}

func TestRun_ErrorKeepsTargetDate(t *testing.T) {
	f := newFixture(t, []*domain.User{{ID: 1}}, nil)
	f.ledger.createErr = errors.New("insert failed")

	result, err := f.job.Run(context.Background(), Options{})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "2026-01-05", result.TargetDate)
	assert.False(t, result.Success)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	users := []*domain.User{
		{ID: 1},
		{ID: 2, WorkingDays: []int32{0}},
	}
	f := newFixture(t, users, nil)

	result, err := f.job.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.MarkedAbsent)
	assert.Equal(t, 1, result.NonWorking)
	require.Len(t, result.Decisions, 2)
	assert.Equal(t, domain.ReconciliationActionMarkAbsent, result.Decisions[0].Action)
	assert.Equal(t, domain.ReconciliationActionSkipNonWorking, result.Decisions[1].Action)

	assert.Empty(t, f.ledger.records)
	assert.Empty(t, f.ledger.absent)
	assert.Nil(t, f.settings.settings.LastAutomatedRunDate)
	assert.Empty(t, f.settings.completed)

	// dry run 之后真正的执行不受影响
	live, err := f.job.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.False(t, live.Skipped)
	assert.Len(t, f.ledger.records, 1)
}

func TestRun_DryRunIgnoresClaimMarker(t *testing.T) {
	f := newFixture(t, []*domain.User{{ID: 1}}, nil)
	date := "2026-01-05"
	f.settings.settings.LastAutomatedRunDate = &date

	result, err := f.job.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.MarkedAbsent)
}

func TestRun_ExplicitTargetDate(t *testing.T) {
	f := newFixture(t, []*domain.User{{ID: 1}}, nil)

	result, err := f.job.Run(context.Background(), Options{TargetDate: "2026-01-10"})
	require.NoError(t, err)
	assert.Equal(t, "2026-01-10", result.TargetDate)
	assert.Equal(t, 1, result.NonWorking)
	assert.Empty(t, f.ledger.records)
}

func TestRun_InvalidTargetDate(t *testing.T) {
	f := newFixture(t, []*domain.User{{ID: 1}}, nil)

	_, err := f.job.Run(context.Background(), Options{TargetDate: "05/01/2026"})
	assert.Error(t, err)
	assert.Nil(t, f.settings.settings.LastAutomatedRunDate)
}

func TestRun_InvalidTimezone(t *testing.T) {
	f := newFixture(t, []*domain.User{{ID: 1}}, nil)
	f.settings.settings.Timezone = "Mars/Olympus"

	_, err := f.job.Run(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Empty(t, f.ledger.records)
}

func TestRun_SettingsUnavailable(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.settings.getErr = errors.New("connection refused")

	_, err := f.job.Run(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestRun_ClaimErrorAborts(t *testing.T) {
	f := newFixture(t, []*domain.User{{ID: 1}}, nil)
	f.settings.claimErr = errors.New("deadlock detected")

	_, err := f.job.Run(context.Background(), Options{})
	assert.Error(t, err)
	assert.Empty(t, f.ledger.records)
}

func TestRun_LedgerErrorAborts(t *testing.T) {
	f := newFixture(t, []*domain.User{{ID: 1}, {ID: 2}}, nil)
	f.ledger.createErr = errors.New("insert failed")

	_, err := f.job.Run(context.Background(), Options{})
	assert.Error(t, err)
	assert.Empty(t, f.settings.completed)
	// 认领已经生效，同一天不会被重复执行
	require.NotNil(t, f.settings.settings.LastAutomatedRunDate)
}

func TestRun_UserDirectoryErrorAborts(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.users.err = errors.New("timeout")

	_, err := f.job.Run(context.Background(), Options{})
	assert.Error(t, err)
}

func TestRun_MalformedScheduleAborts(t *testing.T) {
	f := newFixture(t, []*domain.User{{ID: 1, WorkingDays: []int32{8}}}, nil)

	_, err := f.job.Run(context.Background(), Options{})
	assert.Error(t, err)
}

func TestRun_UsesFallbackShiftWhenUserHasNone(t *testing.T) {
	f := newFixture(t, []*domain.User{{ID: 1}}, nil)

	_, err := f.job.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, f.ledger.records, 1)
	assert.Equal(t, domain.ShiftMorning, f.ledger.records[0].Shift)
}
