package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/reconcile"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/report"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/workday"
)

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "ok", nil)
}

func parseDryRun(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("dryRun")
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func (h *Handler) reconcileFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, reconcile.ErrInvalidSettings) {
		h.logInternalServerError(r, err)
		h.statusErrorResponse(w, r, http.StatusInternalServerError, "考勤设置无效，请检查时区配置")
		return
	}
	h.internalServerError(w, r, err)
}

// CronReconcile 直接返回对账结果，便于 serverless 平台记录
func (h *Handler) CronReconcile(w http.ResponseWriter, r *http.Request) {
	dryRun, err := parseDryRun(r)
	if err != nil {
		h.statusErrorResponse(w, r, http.StatusBadRequest, "dryRun 参数无效")
		return
	}

	result, err := h.reconciler.Run(r.Context(), reconcile.Options{DryRun: dryRun})
	if err != nil {
		h.reconcileFailed(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, result)
}

func (h *Handler) TriggerReconciliation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"`
		DryRun bool   `json:"dryRun"`
	}

	// 允许空请求体，此时对账昨天
	if err := h.readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.reconciler.Run(r.Context(), reconcile.Options{DryRun: req.DryRun, TargetDate: req.Date})
	if err != nil {
		h.reconcileFailed(w, r, err)
		return
	}

	msg := "考勤对账完成"
	if result.Skipped {
		msg = result.Message
	}
	h.successResponse(w, r, msg, result)
}

func (h *Handler) GetReconciliationStatus(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetOrCreateSettings(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	status := struct {
		Timezone             string  `json:"timezone"`
		LastAutomatedRunDate *string `json:"lastAutomatedRunDate"`
		LastCompletedRunDate *string `json:"lastCompletedRunDate"`
		PendingCompletion    bool    `json:"pendingCompletion"`
	}{
		Timezone:             settings.Timezone,
		LastAutomatedRunDate: settings.LastAutomatedRunDate,
		LastCompletedRunDate: settings.LastCompletedRunDate,
		PendingCompletion:    settings.PendingCompletion(),
	}

	h.successResponse(w, r, "获取对账状态成功", status)
}

func (h *Handler) GetReconciliationReport(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(workday.DateLayout, date); err != nil {
		h.errorResponse(w, r, "日期格式应为 YYYY-MM-DD")
		return
	}

	dryRun, err := parseDryRun(r)
	if err != nil {
		h.errorResponse(w, r, "dryRun 参数无效")
		return
	}

	result, err := h.reports.Get(r.Context(), date, dryRun)
	if err != nil {
		switch {
		case errors.Is(err, report.ErrReportNotFound):
			h.errorResponse(w, r, "该日期没有对账报告")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取对账报告成功", result)
}
