package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/report"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/repository"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/workday"
)

const maxRecordRangeDays = 366

// recordFilter 解析 userID、from、to 查询参数，from 和 to 为闭区间的日期
func (h *Handler) recordFilter(r *http.Request) (repository.AttendanceRecordFilter, *time.Location, error) {
	filter := repository.AttendanceRecordFilter{}
	query := r.URL.Query()

	loc, err := h.location(r.Context())
	if err != nil {
		return filter, nil, err
	}

	if v := query.Get("userID"); v != "" {
		userID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, nil, errors.New("用户ID无效")
		}
		filter.UserID = &userID
	}

	from, err := workday.ParseDay(query.Get("from"), loc)
	if err != nil {
		return filter, nil, errors.New("from 应为 YYYY-MM-DD 格式的日期")
	}
	to, err := workday.ParseDay(query.Get("to"), loc)
	if err != nil {
		return filter, nil, errors.New("to 应为 YYYY-MM-DD 格式的日期")
	}
	if to.Start.Before(from.Start) {
		return filter, nil, errors.New("to 不能早于 from")
	}
	if to.Start.Sub(from.Start) > maxRecordRangeDays*24*time.Hour {
		return filter, nil, fmt.Errorf("查询范围不能超过 %d 天", maxRecordRangeDays)
	}

	filter.From = from.Start
	filter.To = to.End
	return filter, loc, nil
}

func (h *Handler) GetAttendanceRecords(w http.ResponseWriter, r *http.Request) {
	filter, _, err := h.recordFilter(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	records, err := h.store.ListAttendanceRecords(r.Context(), filter)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取考勤记录成功", records)
}

func (h *Handler) ExportAttendanceRecords(w http.ResponseWriter, r *http.Request) {
	filter, loc, err := h.recordFilter(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	records, err := h.store.ListAttendanceRecords(r.Context(), filter)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	filename := fmt.Sprintf("attendance_%s_%s.xlsx", r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if err := report.WriteAttendanceWorkbook(w, records, loc); err != nil {
		// 响应头已经写出，只能记录日志
		h.logInternalServerError(r, err)
	}
}

// GetObligation 预览某个用户在某天的考勤义务，不写入任何数据
func (h *Handler) GetObligation(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	userID, err := strconv.ParseInt(query.Get("userID"), 10, 64)
	if err != nil {
		h.errorResponse(w, r, "用户ID无效")
		return
	}

	settings, err := h.store.GetOrCreateSettings(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	day := workday.Yesterday(time.Now(), loc)
	if v := query.Get("date"); v != "" {
		if day, err = workday.ParseDay(v, loc); err != nil {
			h.errorResponse(w, r, "日期格式应为 YYYY-MM-DD")
			return
		}
	}

	user, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "用户不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	overrides, err := h.store.FindOverlappingCalendarEntries(r.Context(), []domain.CalendarEntryType{domain.CalendarEntryHoliday, domain.CalendarEntryWorkingDay}, day.Start, day.End)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	verdict, err := workday.Resolve(day, user, settings.ShiftDefaults, overrides)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	h.successResponse(w, r, "获取考勤义务成功", struct {
		UserID     int64                 `json:"userID"`
		Date       string                `json:"date"`
		Obligation string                `json:"obligation"`
		Reason     workday.Reason        `json:"reason"`
		Entry      *domain.CalendarEntry `json:"entry"`
	}{
		UserID:     user.ID,
		Date:       day.Date,
		Obligation: verdict.Obligation.String(),
		Reason:     verdict.Reason,
		Entry:      verdict.Entry,
	})
}
