package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/repository"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/utils"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/workday"
)

const maxICSUploadSize = 5 << 20

// location 返回考勤设置中的时区，日期参数都按这个时区解释
func (h *Handler) location(ctx context.Context) (*time.Location, error) {
	settings, err := h.store.GetOrCreateSettings(ctx)
	if err != nil {
		return nil, err
	}
	return time.LoadLocation(settings.Timezone)
}

// parseBound 解析 YYYY-MM-DD 或 RFC3339，纯日期取当天的开始或结束
func parseBound(value string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if day, err := workday.ParseDay(value, loc); err == nil {
		if endOfDay {
			return day.End, nil
		}
		return day.Start, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("无效的时间 %q，应为 YYYY-MM-DD 或 RFC3339 格式", value)
	}
	return t, nil
}

func (h *Handler) GetCalendarEntries(w http.ResponseWriter, r *http.Request) {
	loc, err := h.location(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	filter := repository.CalendarEntryFilter{}
	query := r.URL.Query()

	if v := query.Get("start"); v != "" {
		start, err := parseBound(v, loc, false)
		if err != nil {
			h.badRequest(w, r, err)
			return
		}
		filter.Start = &start
	}
	if v := query.Get("end"); v != "" {
		end, err := parseBound(v, loc, true)
		if err != nil {
			h.badRequest(w, r, err)
			return
		}
		filter.End = &end
	}
	if v := query.Get("type"); v != "" && v != "all" {
		typ := domain.CalendarEntryType(v)
		filter.Type = &typ
	}

	entries, err := h.store.ListCalendarEntries(r.Context(), filter)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取日历条目成功", entries)
}

func (h *Handler) GetCalendarEntry(w http.ResponseWriter, r *http.Request) {
	entry := r.Context().Value(CalendarEntryCtx).(*domain.CalendarEntry)
	h.successResponse(w, r, "获取日历条目成功", entry)
}

func (h *Handler) CreateCalendarEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title" validate:"required,max=200"`
		Description string `json:"description" validate:"max=2000"`
		Type        string `json:"type" validate:"required,oneof=Holiday Event Meeting 'Working Day' Other"`
		StartDate   string `json:"startDate" validate:"required"`
		EndDate     string `json:"endDate" validate:"required"`
		IsFullDay   *bool  `json:"isFullDay"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	loc, err := h.location(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	entry := &domain.CalendarEntry{
		Title:       req.Title,
		Description: req.Description,
		Type:        domain.CalendarEntryType(req.Type),
		IsFullDay:   req.IsFullDay == nil || *req.IsFullDay,
		CreatedBy:   h.currentUserID(r),
	}
	if entry.StartDate, err = parseBound(req.StartDate, loc, false); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if entry.EndDate, err = parseBound(req.EndDate, loc, true); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := utils.ValidateCalendarEntryRange(entry); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.store.CreateCalendarEntry(r.Context(), entry); err != nil {
		h.calendarWriteFailed(w, r, err)
		return
	}

	h.successResponse(w, r, "创建日历条目成功", entry)
}

func (h *Handler) UpdateCalendarEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
		Description *string `json:"description" validate:"omitempty,max=2000"`
		Type        *string `json:"type" validate:"omitempty,oneof=Holiday Event Meeting 'Working Day' Other"`
		StartDate   *string `json:"startDate"`
		EndDate     *string `json:"endDate"`
		IsFullDay   *bool   `json:"isFullDay"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	loc, err := h.location(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	entry := r.Context().Value(CalendarEntryCtx).(*domain.CalendarEntry)

	if req.Title != nil {
		entry.Title = *req.Title
	}
	if req.Description != nil {
		entry.Description = *req.Description
	}
	if req.Type != nil {
		entry.Type = domain.CalendarEntryType(*req.Type)
	}
	if req.IsFullDay != nil {
		entry.IsFullDay = *req.IsFullDay
	}
	if req.StartDate != nil {
		if entry.StartDate, err = parseBound(*req.StartDate, loc, false); err != nil {
			h.badRequest(w, r, err)
			return
		}
	}
	if req.EndDate != nil {
		if entry.EndDate, err = parseBound(*req.EndDate, loc, true); err != nil {
			h.badRequest(w, r, err)
			return
		}
	}
	if err := utils.ValidateCalendarEntryRange(entry); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.store.UpdateCalendarEntry(r.Context(), entry); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "更新日历条目失败，请重试")
		default:
			h.calendarWriteFailed(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新日历条目成功", entry)
}

func (h *Handler) DeleteCalendarEntry(w http.ResponseWriter, r *http.Request) {
	entry := r.Context().Value(CalendarEntryCtx).(*domain.CalendarEntry)

	if err := h.store.SoftDeleteCalendarEntry(r.Context(), entry.ID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "日历条目不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "删除日历条目成功", nil)
}

// ImportCalendarICS 支持 multipart 的 file 字段或直接以请求体上传 ICS，type 参数默认为 Holiday
func (h *Handler) ImportCalendarICS(w http.ResponseWriter, r *http.Request) {
	entryType := domain.CalendarEntryType(r.URL.Query().Get("type"))
	switch entryType {
	case "":
		entryType = domain.CalendarEntryHoliday
	case domain.CalendarEntryHoliday, domain.CalendarEntryWorkingDay, domain.CalendarEntryEvent, domain.CalendarEntryMeeting, domain.CalendarEntryOther:
	default:
		h.errorResponse(w, r, "无效的日历条目类型")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxICSUploadSize)

	var body io.Reader = r.Body
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		body = file
	}

	loc, err := h.location(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	entries, err := utils.ParseCalendarICS(body, entryType, loc, h.currentUserID(r))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	imported, err := h.store.ImportCalendarEntries(r.Context(), entries)
	if err != nil {
		h.calendarWriteFailed(w, r, err)
		return
	}

	h.successResponse(w, r, "导入日历成功", map[string]int{
		"parsed":   len(entries),
		"imported": imported,
	})
}

func (h *Handler) calendarWriteFailed(w http.ResponseWriter, r *http.Request, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		switch pgErr.ConstraintName {
		case "calendar_entries_date_range_check":
			h.badRequest(w, r, errors.New("结束日期不能早于开始日期"))
		case "calendar_entries_type_check":
			h.badRequest(w, r, errors.New("无效的日历条目类型"))
		default:
			h.internalServerError(w, r, err)
		}
	default:
		h.internalServerError(w, r, err)
	}
}
