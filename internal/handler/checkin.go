package handler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/repository"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/workday"
)

func (h *Handler) shiftFor(user *domain.User) domain.Shift {
	if user.Shift != nil {
		return *user.Shift
	}
	return h.fallbackShift
}

func (h *Handler) windowFor(shift domain.Shift) workday.ShiftWindow {
	if w, ok := h.shiftWindows[shift]; ok {
		return w
	}
	return h.shiftWindows[h.fallbackShift]
}

// today 返回部署时区下的当前时间和今天
func (h *Handler) today(ctx context.Context) (time.Time, workday.Day, error) {
	loc, err := h.location(ctx)
	if err != nil {
		return time.Time{}, workday.Day{}, err
	}
	now := h.now().In(loc)
	return now, workday.DayOf(now, loc), nil
}

// CheckIn 为用户登记今天的签到，超过上班时间加宽限的记为迟到
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	now, day, err := h.today(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	exists, err := h.store.AttendanceExistsFor(r.Context(), user.ID, day.Start, day.End)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if exists {
		h.errorResponse(w, r, "今天已经有考勤记录，不能重复签到")
		return
	}

	shift := h.shiftFor(user)
	late := h.windowFor(shift).IsLate(day, now, h.lateGrace)
	status := domain.AttendanceStatusPresent
	if late {
		status = domain.AttendanceStatusLate
	}

	record := &domain.AttendanceRecord{
		UserID:       user.ID,
		UserFullName: user.FullName,
		Shift:        shift,
		Status:       status,
		CheckInTime:  &now,
		HoursWorked:  decimal.Zero,
		IsLate:       late,
		CreatedAt:    day.Start,
	}
	if err := h.store.RecordAttendance(r.Context(), record); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	slog.Info("用户已签到", "userID", user.ID, "shift", shift, "late", late)

	msg := "签到成功"
	if late {
		msg = "签到成功，本次已迟到"
	}
	h.successResponse(w, r, msg, record)
}

// CheckOut 为今天已签到的记录登记签退，并计算工时和是否早退
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	now, day, err := h.today(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	record, err := h.store.GetOpenAttendanceRecord(r.Context(), user.ID, day.Start, day.End)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "今天还没有签到或已经签退")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	record.UserFullName = user.FullName
	record.CheckOutTime = &now
	record.HoursWorked = workday.HoursWorked(*record.CheckInTime, now)
	record.IsEarlyLeave = h.windowFor(record.Shift).IsEarlyLeave(day, now)

	if err := h.store.CheckOutAttendance(r.Context(), record); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "今天已经签退过了")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	slog.Info("用户已签退", "userID", user.ID, "hoursWorked", record.HoursWorked, "earlyLeave", record.IsEarlyLeave)

	msg := "签退成功"
	if record.IsEarlyLeave {
		msg = "签退成功，本次属于早退"
	}
	h.successResponse(w, r, msg, record)
}

// RecordLeave 为用户登记某天的请假，该日期已有任何考勤记录时拒绝
func (h *Handler) RecordLeave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user := r.Context().Value(UserInfoCtx).(*domain.User)

	loc, err := h.location(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	day, err := workday.ParseDay(req.Date, loc)
	if err != nil {
		h.errorResponse(w, r, "日期格式应为 YYYY-MM-DD")
		return
	}

	exists, err := h.store.AttendanceExistsFor(r.Context(), user.ID, day.Start, day.End)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if exists {
		h.errorResponse(w, r, "该日期已经有考勤记录")
		return
	}

	record := &domain.AttendanceRecord{
		UserID:       user.ID,
		UserFullName: user.FullName,
		Shift:        h.shiftFor(user),
		Status:       domain.AttendanceStatusLeave,
		HoursWorked:  decimal.Zero,
		CreatedAt:    day.Start,
	}
	if err := h.store.RecordAttendance(r.Context(), record); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	slog.Info("已登记请假", "userID", user.ID, "date", day.Date)
	h.successResponse(w, r, "请假登记成功", record)
}

// GetTodayAttendance 返回今天的考勤记录以及还没有任何记录的在职用户
func (h *Handler) GetTodayAttendance(w http.ResponseWriter, r *http.Request) {
	_, day, err := h.today(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	records, err := h.store.ListAttendanceRecords(r.Context(), repository.AttendanceRecordFilter{From: day.Start, To: day.End})
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	users, err := h.store.FindActiveUsers(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	recorded := make(map[int64]bool, len(records))
	for _, record := range records {
		recorded[record.UserID] = true
	}
	missing := []*domain.User{}
	for _, user := range users {
		if !recorded[user.ID] {
			missing = append(missing, user)
		}
	}

	h.successResponse(w, r, "获取今日考勤成功", struct {
		Date         string                     `json:"date"`
		Records      []*domain.AttendanceRecord `json:"records"`
		NotCheckedIn []*domain.User             `json:"notCheckedIn"`
	}{
		Date:         day.Date,
		Records:      records,
		NotCheckedIn: missing,
	})
}

func (h *Handler) GetUserTodayAttendance(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	_, day, err := h.today(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	records, err := h.store.ListAttendanceRecords(r.Context(), repository.AttendanceRecordFilter{UserID: &user.ID, From: day.Start, To: day.End})
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	var record *domain.AttendanceRecord
	if len(records) > 0 {
		record = records[len(records)-1]
	}
	h.successResponse(w, r, "获取今日考勤成功", struct {
		Date   string                   `json:"date"`
		Record *domain.AttendanceRecord `json:"record"`
	}{
		Date:   day.Date,
		Record: record,
	})
}

type shiftInfo struct {
	Shift       domain.Shift `json:"shift"`
	Start       string       `json:"start"`
	End         string       `json:"end"`
	WorkingDays []int32      `json:"workingDays"`
}

// GetShiftInfo 返回各班次的上下班时间和默认工作日
func (h *Handler) GetShiftInfo(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetOrCreateSettings(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	shifts := []shiftInfo{}
	for _, shift := range []domain.Shift{domain.ShiftMorning, domain.ShiftEvening} {
		window := h.shiftWindows[shift]
		shifts = append(shifts, shiftInfo{
			Shift:       shift,
			Start:       window.StartClock(),
			End:         window.EndClock(),
			WorkingDays: settings.ShiftDefaults[shift],
		})
	}

	h.successResponse(w, r, "获取班次信息成功", struct {
		Shifts           []shiftInfo  `json:"shifts"`
		FallbackShift    domain.Shift `json:"fallbackShift"`
		LateGraceMinutes int          `json:"lateGraceMinutes"`
	}{
		Shifts:           shifts,
		FallbackShift:    h.fallbackShift,
		LateGraceMinutes: int(h.lateGrace / time.Minute),
	})
}
