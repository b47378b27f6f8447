package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "Present"
	AttendanceStatusAbsent  AttendanceStatus = "Absent"
	AttendanceStatusHoliday AttendanceStatus = "Holiday"
	AttendanceStatusLate    AttendanceStatus = "Late"
	AttendanceStatusLeave   AttendanceStatus = "Leave"
)

type AttendanceRecord struct {
	ID           int64            `json:"id"`
	UserID       int64            `json:"userID"`
	UserFullName string           `json:"userFullName,omitempty"`
	Shift        Shift            `json:"shift"`
	Status       AttendanceStatus `json:"status"`
	CheckInTime  *time.Time       `json:"checkInTime"`
	CheckOutTime *time.Time       `json:"checkOutTime"`
	HoursWorked  decimal.Decimal  `json:"hoursWorked"`
	IsLate       bool             `json:"isLate"`
	IsEarlyLeave bool             `json:"isEarlyLeave"`
	// CreatedAt 固定为考勤日期当天的开始时间，而不是写入时间
	CreatedAt time.Time `json:"createdAt"`
}
