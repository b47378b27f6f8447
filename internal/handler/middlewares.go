package handler

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)
		slog.Info("已处理请求", "status", rw.StatusCode, "ip", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "duration", duration)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.internalServerError(w, r, fmt.Errorf("panic: %v", err))
				stackTrace := string(debug.Stack())
				fmt.Print(stackTrace) // 这里如果用 slog 的话会很乱
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := h.tokenFromRequest(r)
		if err != nil {
			h.statusErrorResponse(w, r, http.StatusUnauthorized, "用户未登录")
			return
		}

		claims, err := h.parseToken(tokenString)
		if err != nil {
			h.statusErrorResponse(w, r, http.StatusUnauthorized, "无效的令牌")
			return
		}

		// 将 claims 中的 role 和 sub 附在 context 中
		ctx := r.Context()
		ctx = context.WithValue(ctx, RoleCtxKey, claims.Role)
		ctx = context.WithValue(ctx, SubCtxKey, claims.Subject)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) RequiredRole(roles []domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roleCtx, _ := r.Context().Value(RoleCtxKey).(string)
			role := domain.Role(roleCtx)
			if !slices.Contains(roles, role) {
				h.statusErrorResponse(w, r, http.StatusForbidden, "权限不足")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// selfOrRole 放行操作自己数据的用户以及拥有指定角色的用户，必须放在 userInfo 之后
func (h *Handler) selfOrRole(roles []domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := r.Context().Value(UserInfoCtx).(*domain.User)
			if id := h.currentUserID(r); id != nil && *id == user.ID {
				next.ServeHTTP(w, r)
				return
			}

			roleCtx, _ := r.Context().Value(RoleCtxKey).(string)
			if !slices.Contains(roles, domain.Role(roleCtx)) {
				h.statusErrorResponse(w, r, http.StatusForbidden, "只能操作自己的考勤")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// cronAuth 校验 Authorization: Bearer <CRON_SECRET>，未配置密钥时整个入口不可用
func (h *Handler) cronAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := h.config.Cron.Secret
		if secret == "" {
			h.statusErrorResponse(w, r, http.StatusServiceUnavailable, "未配置 CRON_SECRET，定时任务入口已禁用")
			return
		}

		token, ok := bearerToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			h.statusErrorResponse(w, r, http.StatusUnauthorized, "未授权的定时任务调用")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) limitTrigger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.triggerLimiter.Allow() {
			h.statusErrorResponse(w, r, http.StatusTooManyRequests, "触发过于频繁，请稍后再试")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) currentUserID(r *http.Request) *int64 {
	sub, _ := r.Context().Value(SubCtxKey).(string)
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

func (h *Handler) userInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userIDParam := chi.URLParam(r, "id")
		userID, err := strconv.ParseInt(userIDParam, 10, 64)
		if err != nil {
			h.errorResponse(w, r, "用户ID无效")
			return
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

		ctx := context.WithValue(r.Context(), UserInfoCtx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) calendarEntry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entryIDParam := chi.URLParam(r, "id")
		entryID, err := strconv.ParseInt(entryIDParam, 10, 64)
		if err != nil {
			h.errorResponse(w, r, "日历条目ID无效")
			return
		}

		entry, err := h.store.GetCalendarEntryByID(r.Context(), entryID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.errorResponse(w, r, "日历条目不存在")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), CalendarEntryCtx, entry)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
