// Package reconcile 实现每日考勤对账任务：为前一天没有任何考勤记录的用户补记缺勤或节假日。
//
// 同一个目标日期最多只会有一次非 dry run 的执行，互斥依赖于设置表上的条件更新
// （目标日期晚于 lastAutomatedRunDate 时才更新），无论触发来自定时任务、手动调用还是重试。
// 标记只会前进，因此不晚于标记的日期无法再以正式模式执行。
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/workday"
)

var ErrInvalidSettings = errors.New("考勤设置不可用")

type SettingsStore interface {
	GetOrCreateSettings(ctx context.Context) (*domain.Settings, error)
	// TryClaimRunDate 仅当 lastAutomatedRunDate 为空或早于 date 时将其更新为 date，返回是否更新成功
	TryClaimRunDate(ctx context.Context, settingsID int64, date string) (bool, error)
	MarkRunCompleted(ctx context.Context, settingsID int64, date string) error
}

type CalendarStore interface {
	FindOverlappingCalendarEntries(ctx context.Context, types []domain.CalendarEntryType, start, end time.Time) ([]domain.CalendarEntry, error)
}

type UserDirectory interface {
	FindActiveUsers(ctx context.Context) ([]*domain.User, error)
}

type AttendanceLedger interface {
	AttendanceExistsFor(ctx context.Context, userID int64, start, end time.Time) (bool, error)
	CreateAttendanceRecord(ctx context.Context, record *domain.AttendanceRecord) error
	IncrementAbsentCounter(ctx context.Context, userID int64) error
}

type Options struct {
	DryRun bool
	// TargetDate 形如 2006-01-02，为空时取部署时区的昨天
	TargetDate string
}

type Job struct {
	settings      SettingsStore
	calendar      CalendarStore
	users         UserDirectory
	ledger        AttendanceLedger
	logger        *slog.Logger
	fallbackShift domain.Shift

	now func() time.Time
}

func NewJob(settings SettingsStore, calendar CalendarStore, users UserDirectory, ledger AttendanceLedger, logger *slog.Logger, fallbackShift domain.Shift) *Job {
	return &Job{
		settings:      settings,
		calendar:      calendar,
		users:         users,
		ledger:        ledger,
		logger:        logger,
		fallbackShift: fallbackShift,
		now:           time.Now,
	}
}

// Run 执行一次对账。出错时仍然返回已经填写的部分结果（至少包含 RunID，算出目标日期后还包含 TargetDate）
func (j *Job) Run(ctx context.Context, opts Options) (*domain.ReconciliationResult, error) {
	result := &domain.ReconciliationResult{
		RunID:     uuid.NewString(),
		DryRun:    opts.DryRun,
		StartedAt: j.now(),
	}
	logger := j.logger.With("runID", result.RunID, "dryRun", opts.DryRun)

	settings, err := j.settings.GetOrCreateSettings(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return result, fmt.Errorf("%w: 时区 %q: %w", ErrInvalidSettings, settings.Timezone, err)
	}

	// 任务在零点之后运行，对账的是刚刚结束的那一天
	day := workday.Yesterday(j.now(), loc)
	if opts.TargetDate != "" {
		day, err = workday.ParseDay(opts.TargetDate, loc)
		if err != nil {
			return result, err
		}
	}
	result.TargetDate = day.Date

	if !opts.DryRun {
		claimed, err := j.settings.TryClaimRunDate(ctx, settings.ID, day.Date)
		if err != nil {
			return result, fmt.Errorf("认领对账日期 %s 失败: %w", day.Date, err)
		}
		if !claimed {
			result.Success = true
			result.Skipped = true
			result.Message = "该日期的考勤对账已经执行过"
			// 用本次读到的标记区分原因，标记可能已被并发的执行推进，这里只影响提示
			if marker := settings.LastAutomatedRunDate; marker != nil && day.Date < *marker {
				result.Message = fmt.Sprintf("只能对晚于 %s 的日期执行正式对账", *marker)
			}
			logger.Warn("目标日期未能认领，跳过", "targetDate", day.Date, "reason", result.Message)
			result.FinishedAt = j.now()
			return result, nil
		}
	}

	logger.Info("开始考勤对账", "targetDate", day.Date, "timezone", settings.Timezone)

	overrides, err := j.calendar.FindOverlappingCalendarEntries(ctx, []domain.CalendarEntryType{domain.CalendarEntryHoliday, domain.CalendarEntryWorkingDay}, day.Start, day.End)
	if err != nil {
		return result, fmt.Errorf("获取日历条目失败: %w", err)
	}

	users, err := j.users.FindActiveUsers(ctx)
	if err != nil {
		return result, fmt.Errorf("获取用户列表失败: %w", err)
	}

	for _, user := range users {
		result.ParsedUsers++

		decision, err := j.reconcileUser(ctx, day, user, settings, overrides, opts.DryRun)
		if err != nil {
			return result, fmt.Errorf("处理用户 %d 失败: %w", user.ID, err)
		}

		switch decision.Action {
		case domain.ReconciliationActionMarkAbsent:
			result.MarkedAbsent++
		case domain.ReconciliationActionMarkHoliday:
			result.MarkedHoliday++
		case domain.ReconciliationActionSkipExisting:
			result.SkippedExisting++
		case domain.ReconciliationActionSkipNonWorking:
			result.NonWorking++
		}

		if opts.DryRun {
			result.Decisions = append(result.Decisions, decision)
			logger.Info("[DRY RUN] 对账决策", "userID", user.ID, "action", decision.Action, "reason", decision.Reason)
		}
	}

	if !opts.DryRun {
		// 完成标记只用于观察，失败不影响本次结果
		if err := j.settings.MarkRunCompleted(ctx, settings.ID, day.Date); err != nil {
			logger.Warn("无法写入对账完成标记", "targetDate", day.Date, "error", err)
		}
	}

	result.Success = true
	result.Message = "考勤对账完成"
	result.FinishedAt = j.now()

	logger.Info("考勤对账完成",
		"targetDate", day.Date,
		"parsedUsers", result.ParsedUsers,
		"markedAbsent", result.MarkedAbsent,
		"markedHoliday", result.MarkedHoliday,
		"skippedExisting", result.SkippedExisting,
		"nonWorking", result.NonWorking,
	)

	return result, nil
}

func (j *Job) reconcileUser(ctx context.Context, day workday.Day, user *domain.User, settings *domain.Settings, overrides []domain.CalendarEntry, dryRun bool) (domain.ReconciliationDecision, error) {
	decision := domain.ReconciliationDecision{UserID: user.ID}

	// 已经有记录（例如当天正常签到）的用户一律不动
	exists, err := j.ledger.AttendanceExistsFor(ctx, user.ID, day.Start, day.End)
	if err != nil {
		return decision, err
	}
	if exists {
		decision.Action = domain.ReconciliationActionSkipExisting
		decision.Reason = "已存在考勤记录"
		return decision, nil
	}

	verdict, err := workday.Resolve(day, user, settings.ShiftDefaults, overrides)
	if err != nil {
		return decision, err
	}
	decision.Reason = string(verdict.Reason)

	var status domain.AttendanceStatus
	switch verdict.Obligation {
	case workday.Holiday:
		decision.Action = domain.ReconciliationActionMarkHoliday
		status = domain.AttendanceStatusHoliday
	case workday.Working:
		decision.Action = domain.ReconciliationActionMarkAbsent
		status = domain.AttendanceStatusAbsent
	default:
		decision.Action = domain.ReconciliationActionSkipNonWorking
		return decision, nil
	}

	if dryRun {
		return decision, nil
	}

	record := &domain.AttendanceRecord{
		UserID:      user.ID,
		Shift:       j.shiftOf(user),
		Status:      status,
		HoursWorked: decimal.Zero,
		CreatedAt:   day.Start,
	}
	if err := j.ledger.CreateAttendanceRecord(ctx, record); err != nil {
		return decision, err
	}

	if status == domain.AttendanceStatusAbsent {
		if err := j.ledger.IncrementAbsentCounter(ctx, user.ID); err != nil {
			return decision, err
		}
	}

	j.logger.Info("已补记考勤", "userID", user.ID, "status", status, "targetDate", day.Date)

	return decision, nil
}

func (j *Job) shiftOf(user *domain.User) domain.Shift {
	if user.Shift != nil && *user.Shift != "" {
		return *user.Shift
	}
	return j.fallbackShift
}
