package workday

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const clockLayout = "15:04"

// ShiftWindow 是班次在一天中的上下班时间，用距离当天零点的时长表示
type ShiftWindow struct {
	Start time.Duration
	End   time.Duration
}

// ParseShiftWindow 解析 HH:MM 格式的上下班时间，下班时间必须晚于上班时间
func ParseShiftWindow(start, end string) (ShiftWindow, error) {
	s, err := parseClock(start)
	if err != nil {
		return ShiftWindow{}, err
	}
	e, err := parseClock(end)
	if err != nil {
		return ShiftWindow{}, err
	}
	if e <= s {
		return ShiftWindow{}, fmt.Errorf("下班时间 %s 必须晚于上班时间 %s", end, start)
	}
	return ShiftWindow{Start: s, End: e}, nil
}

func parseClock(v string) (time.Duration, error) {
	t, err := time.Parse(clockLayout, v)
	if err != nil {
		return 0, fmt.Errorf("无效的时间 %q，应为 HH:MM 格式", v)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

func (w ShiftWindow) StartClock() string { return formatClock(w.Start) }
func (w ShiftWindow) EndClock() string   { return formatClock(w.End) }

// Bounds 返回班次在 day 当天的上下班时刻，按墙上时间计算
func (w ShiftWindow) Bounds(day Day) (time.Time, time.Time) {
	return clockOn(day, w.Start), clockOn(day, w.End)
}

func clockOn(day Day, offset time.Duration) time.Time {
	y, m, d := day.Start.Date()
	return time.Date(y, m, d, int(offset/time.Hour), int(offset%time.Hour/time.Minute), 0, 0, day.Start.Location())
}

// IsLate 判断签到时间是否超过了上班时间加宽限
func (w ShiftWindow) IsLate(day Day, checkIn time.Time, grace time.Duration) bool {
	start, _ := w.Bounds(day)
	return checkIn.After(start.Add(grace))
}

func (w ShiftWindow) IsEarlyLeave(day Day, checkOut time.Time) bool {
	_, end := w.Bounds(day)
	return checkOut.Before(end)
}

// HoursWorked 按整分钟折算工时，保留两位小数，签退不晚于签到时为 0
func HoursWorked(checkIn, checkOut time.Time) decimal.Decimal {
	if !checkOut.After(checkIn) {
		return decimal.Zero
	}
	minutes := int64(checkOut.Sub(checkIn) / time.Minute)
	return decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60)).Round(2)
}
