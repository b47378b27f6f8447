package domain

import "time"

type CalendarEntryType string

const (
	CalendarEntryHoliday    CalendarEntryType = "Holiday"
	CalendarEntryEvent      CalendarEntryType = "Event"
	CalendarEntryMeeting    CalendarEntryType = "Meeting"
	CalendarEntryWorkingDay CalendarEntryType = "Working Day"
	CalendarEntryOther      CalendarEntryType = "Other"
)

type CalendarEntry struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Type        CalendarEntryType `json:"type"`
	StartDate   time.Time         `json:"startDate"`
	EndDate     time.Time         `json:"endDate"`
	IsFullDay   bool              `json:"isFullDay"`
	CreatedBy   *int64            `json:"createdBy"`
	DeletedAt   *time.Time        `json:"deletedAt,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	Version     int32             `json:"-"`
}

func (e *CalendarEntry) IsLive() bool {
	return e.DeletedAt == nil
}

// Overlaps 判断条目的闭区间 [StartDate, EndDate] 是否与 [start, end] 相交
func (e *CalendarEntry) Overlaps(start, end time.Time) bool {
	return !e.StartDate.After(end) && !e.EndDate.Before(start)
}
