package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/utils"
)

func (h *Handler) GetActiveUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.FindActiveUsers(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取用户列表成功", users)
}

func (h *Handler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	h.successResponse(w, r, "获取用户信息成功", user)
}

// UpdateUserSchedule 修改用户的班次和个人工作日，workingDays 传空数组表示清除个人工作日
func (h *Handler) UpdateUserSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Shift       *string  `json:"shift" validate:"omitempty,oneof=Morning Evening"`
		WorkingDays *[]int32 `json:"workingDays"`
		ClearShift  bool     `json:"clearShift"`
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

	switch {
	case req.ClearShift:
		user.Shift = nil
	case req.Shift != nil:
		shift := domain.Shift(*req.Shift)
		user.Shift = &shift
	}

	if req.WorkingDays != nil {
		if len(*req.WorkingDays) == 0 {
			user.WorkingDays = nil
		} else {
			if err := utils.ValidateWorkingDays(*req.WorkingDays); err != nil {
				h.badRequest(w, r, err)
				return
			}
			user.WorkingDays = *req.WorkingDays
		}
	}

	if err := h.store.UpdateUserSchedule(r.Context(), user); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "用户信息已被修改，请刷新后重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "修改用户排班成功", user)
}
