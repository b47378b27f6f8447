package report

import (
	"io"
	"time"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
	"github.com/xuri/excelize/v2"
)

const attendanceSheet = "考勤记录"

var attendanceHeader = []any{"日期", "用户ID", "姓名", "班次", "状态", "签到时间", "签退时间", "工时", "迟到", "早退"}

// WriteAttendanceWorkbook 将考勤记录导出为 xlsx，日期和时间按 loc 显示
func WriteAttendanceWorkbook(w io.Writer, records []*domain.AttendanceRecord, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(attendanceSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(attendanceSheet, "A1", &attendanceHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(attendanceSheet, "A1", "J1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(attendanceSheet, "A", "A", 12); err != nil {
		return err
	}
	if err := f.SetColWidth(attendanceSheet, "F", "G", 10); err != nil {
		return err
	}

	for i, record := range records {
		row := []any{
			record.CreatedAt.In(loc).Format("2006-01-02"),
			record.UserID,
			record.UserFullName,
			string(record.Shift),
			string(record.Status),
			clock(record.CheckInTime, loc),
			clock(record.CheckOutTime, loc),
			record.HoursWorked.StringFixed(2),
			yesNo(record.IsLate),
			yesNo(record.IsEarlyLeave),
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(attendanceSheet, cell, &row); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func clock(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format("15:04")
}

func yesNo(b bool) string {
	if b {
		return "是"
	}
	return "否"
}
