package workday

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Day 表示部署时区中的一个自然日
type Day struct {
	Date  string
	Start time.Time
	// End 为当天最后一微秒，数据库的时间精度是微秒，再精确会被进位到第二天
	End time.Time
}

func newDay(year int, month time.Month, day int, loc *time.Location) Day {
	// 零点被夏令时跳过的时区里 time.Date 会把开始时间规范化到 01:00，
	// 结束时间必须取下一天的开始时间往前一微秒，不能用开始时间加一天
	start := time.Date(year, month, day, 0, 0, 0, 0, loc)
	next := time.Date(year, month, day+1, 0, 0, 0, 0, loc)
	return Day{
		Date:  start.Format(DateLayout),
		Start: start,
		End:   next.Add(-time.Microsecond),
	}
}

// DayOf 返回 t 在 loc 时区下所在的那一天
func DayOf(t time.Time, loc *time.Location) Day {
	local := t.In(loc)
	return newDay(local.Year(), local.Month(), local.Day(), loc)
}

// Yesterday 返回 now 在 loc 时区下的前一天
func Yesterday(now time.Time, loc *time.Location) Day {
	local := now.In(loc)
	return newDay(local.Year(), local.Month(), local.Day()-1, loc)
}

func ParseDay(date string, loc *time.Location) (Day, error) {
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return Day{}, fmt.Errorf("无效的日期 %q: %w", date, err)
	}
	return newDay(t.Year(), t.Month(), t.Day(), loc), nil
}

func (d Day) Weekday() time.Weekday {
	return d.Start.Weekday()
}
