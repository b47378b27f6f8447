// Package workday 判断某个用户在某一天是否需要出勤
package workday

import (
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

type Obligation int

const (
	NonWorking Obligation = iota
	Working
	Holiday
)

func (o Obligation) String() string {
	switch o {
	case Working:
		return "working"
	case Holiday:
		return "holiday"
	default:
		return "non-working"
	}
}

type Reason string

const (
	ReasonHoliday          Reason = "holiday"
	ReasonForcedWorkingDay Reason = "forced_working_day"
	ReasonUserSchedule     Reason = "user_schedule"
	ReasonShiftDefault     Reason = "shift_default"
	ReasonFallbackDefault  Reason = "fallback_default"
)

type Verdict struct {
	Obligation Obligation
	Reason     Reason
	// Entry 为覆盖了默认排班的日历条目，没有则为 nil
	Entry *domain.CalendarEntry
}

// ScheduleFor 按 用户自定义 -> 班次默认 -> 周一到周五 的顺序决定用户的工作日
func ScheduleFor(user *domain.User, shiftDefaults map[domain.Shift][]int32) ([]int32, Reason, error) {
	days, reason := user.WorkingDays, ReasonUserSchedule
	if len(days) == 0 {
		days, reason = nil, ReasonShiftDefault
		if user.Shift != nil {
			days = shiftDefaults[*user.Shift]
		}
	}
	if len(days) == 0 {
		days, reason = domain.DefaultWorkingDays, ReasonFallbackDefault
	}

	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, "", fmt.Errorf("用户 %d 的工作日 %d 不合法", user.ID, d)
		}
	}

	return days, reason, nil
}

// Resolve 计算用户在 day 这一天的出勤义务
//
// 优先级：节假日 > 调休上班日 > 用户自身的工作日安排。
// 节假日对所有人生效，调休上班日可以覆盖个人的休息日，但不能覆盖节假日。
func Resolve(day Day, user *domain.User, shiftDefaults map[domain.Shift][]int32, overrides []domain.CalendarEntry) (Verdict, error) {
	if entry := findOverride(day, overrides, domain.CalendarEntryHoliday); entry != nil {
		return Verdict{Obligation: Holiday, Reason: ReasonHoliday, Entry: entry}, nil
	}

	if entry := findOverride(day, overrides, domain.CalendarEntryWorkingDay); entry != nil {
		return Verdict{Obligation: Working, Reason: ReasonForcedWorkingDay, Entry: entry}, nil
	}

	days, reason, err := ScheduleFor(user, shiftDefaults)
	if err != nil {
		return Verdict{}, err
	}

	if slices.Contains(days, int32(day.Weekday())) {
		return Verdict{Obligation: Working, Reason: reason}, nil
	}
	return Verdict{Obligation: NonWorking, Reason: reason}, nil
}

func findOverride(day Day, overrides []domain.CalendarEntry, typ domain.CalendarEntryType) *domain.CalendarEntry {
	for i := range overrides {
		entry := &overrides[i]
		// 查询时已经过滤过一次，这里再检查一遍软删除
		if entry.Type != typ || !entry.IsLive() {
			continue
		}
		if entry.Overlaps(day.Start, day.End) {
			return entry
		}
	}
	return nil
}
