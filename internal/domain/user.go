package domain

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleIncubatee  Role = "incubatee"
)

type Shift string

const (
	ShiftMorning Shift = "Morning"
	ShiftEvening Shift = "Evening"
)

func ParseShift(s string) (Shift, error) {
	switch shift := Shift(s); shift {
	case ShiftMorning, ShiftEvening:
		return shift, nil
	default:
		return "", fmt.Errorf("未知的班次 %q", s)
	}
}

type AttendanceStats struct {
	Present int32 `json:"present"`
	Absent  int32 `json:"absent"`
	Late    int32 `json:"late"`
	Leaves  int32 `json:"leaves"`
}

type User struct {
	ID              int64           `json:"id"`
	Username        string          `json:"username"`
	PasswordHash    string          `json:"-"`
	FullName        string          `json:"fullName"`
	Email           string          `json:"email"`
	Role            Role            `json:"role"`
	Shift           *Shift          `json:"shift"`
	WorkingDays     []int32         `json:"workingDays"` // 为空时使用班次的默认工作日
	AttendanceStats AttendanceStats `json:"attendanceStats"`
	DeletedAt       *time.Time      `json:"deletedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	Version         int32           `json:"-"`
}
