package domain

import "time"

// 0 = 周日，与 time.Weekday 保持一致
var DefaultWorkingDays = []int32{1, 2, 3, 4, 5}

type Settings struct {
	ID            int64             `json:"id"`
	Timezone      string            `json:"timezone"`
	ShiftDefaults map[Shift][]int32 `json:"shiftDefaults"`
	// LastAutomatedRunDate 是自动对账的锁标记，只能通过条件更新修改
	LastAutomatedRunDate *string   `json:"lastAutomatedRunDate"`
	LastCompletedRunDate *string   `json:"lastCompletedRunDate"`
	UpdatedAt            time.Time `json:"updatedAt"`
	Version              int32     `json:"-"`
}

func DefaultShiftDefaults() map[Shift][]int32 {
	return map[Shift][]int32{
		ShiftMorning: append([]int32(nil), DefaultWorkingDays...),
		ShiftEvening: append([]int32(nil), DefaultWorkingDays...),
	}
}

// PendingCompletion 表示某天已被认领但对账没有跑完
func (s *Settings) PendingCompletion() bool {
	if s.LastAutomatedRunDate == nil {
		return false
	}
	return s.LastCompletedRunDate == nil || *s.LastCompletedRunDate != *s.LastAutomatedRunDate
}
