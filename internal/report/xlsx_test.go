package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
	"github.com/xuri/excelize/v2"
)

func TestWriteAttendanceWorkbook(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)

	day := time.Date(2026, 1, 5, 0, 0, 0, 0, loc)
	checkIn := day.Add(9 * time.Hour)
	checkOut := day.Add(17*time.Hour + 30*time.Minute)
	records := []*domain.AttendanceRecord{
		{
			UserID:       1,
			UserFullName: "张三",
			Shift:        domain.ShiftMorning,
			Status:       domain.AttendanceStatusPresent,
			CheckInTime:  &checkIn,
			CheckOutTime: &checkOut,
			HoursWorked:  decimal.RequireFromString("8.5"),
			CreatedAt:    day,
		},
		{
			UserID:       2,
			UserFullName: "李四",
			Shift:        domain.ShiftEvening,
			Status:       domain.AttendanceStatusAbsent,
			HoursWorked:  decimal.Zero,
			CreatedAt:    day,
		},
	}

	buf := new(bytes.Buffer)
	require.NoError(t, WriteAttendanceWorkbook(buf, records, loc))

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(attendanceSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "日期", rows[0][0])
	assert.Equal(t, []string{"2026-01-05", "1", "张三", "Morning", "Present", "09:00", "17:30", "8.50", "否", "否"}, rows[1])
	assert.Equal(t, "Absent", rows[2][4])
	assert.Equal(t, "-", rows[2][5])
	assert.Equal(t, "0.00", rows[2][7])
}
