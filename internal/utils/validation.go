package utils

import (
	"fmt"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

func ValidateCalendarEntryRange(entry *domain.CalendarEntry) error {
	if entry.EndDate.Before(entry.StartDate) {
		return fmt.Errorf("结束日期不能早于开始日期")
	}
	return nil
}

// ValidateWorkingDays 检查工作日取值在 0（周日）到 6（周六）之间且没有重复
func ValidateWorkingDays(days []int32) error {
	seen := make([]bool, 7)
	for _, day := range days {
		if day < 0 || day > 6 {
			return fmt.Errorf("无效的工作日 %d，取值范围为 0~6", day)
		}
		if seen[day] {
			return fmt.Errorf("工作日 %d 重复", day)
		}
		seen[day] = true
	}
	return nil
}

func ValidateShiftDefaults(shiftDefaults map[domain.Shift][]int32) error {
	for shift, days := range shiftDefaults {
		if !slices.Contains([]domain.Shift{domain.ShiftMorning, domain.ShiftEvening}, shift) {
			return fmt.Errorf("未知的班次 %q", shift)
		}
		if err := ValidateWorkingDays(days); err != nil {
			return fmt.Errorf("班次 %s: %w", shift, err)
		}
	}
	return nil
}

func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return fmt.Errorf("时区不能为空")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("无效的时区 %q", timezone)
	}
	return nil
}
