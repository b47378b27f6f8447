package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/utils"
)

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetOrCreateSettings(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取考勤设置成功", settings)
}

// UpdateSettings 修改时区和班次默认工作日，lastAutomatedRunDate 不允许通过接口修改
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Timezone      *string                  `json:"timezone"`
		ShiftDefaults map[domain.Shift][]int32 `json:"shiftDefaults"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Timezone != nil {
		if err := utils.ValidateTimezone(*req.Timezone); err != nil {
			h.badRequest(w, r, err)
			return
		}
	}
	if err := utils.ValidateShiftDefaults(req.ShiftDefaults); err != nil {
		h.badRequest(w, r, err)
		return
	}

	settings, err := h.store.GetOrCreateSettings(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if req.Timezone != nil {
		settings.Timezone = *req.Timezone
	}
	if settings.ShiftDefaults == nil {
		settings.ShiftDefaults = map[domain.Shift][]int32{}
	}
	for shift, days := range req.ShiftDefaults {
		settings.ShiftDefaults[shift] = days
	}

	if err := h.store.UpdateSettings(r.Context(), settings); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "更新考勤设置失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新考勤设置成功", settings)
}
