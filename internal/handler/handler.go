package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/config"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/reconcile"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/repository"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/workday"
	"golang.org/x/time/rate"
)

// Store 是 handler 用到的 repository 方法
type Store interface {
	GetOrCreateSettings(ctx context.Context) (*domain.Settings, error)
	UpdateSettings(ctx context.Context, settings *domain.Settings) error

	ListCalendarEntries(ctx context.Context, filter repository.CalendarEntryFilter) ([]domain.CalendarEntry, error)
	FindOverlappingCalendarEntries(ctx context.Context, types []domain.CalendarEntryType, start, end time.Time) ([]domain.CalendarEntry, error)
	GetCalendarEntryByID(ctx context.Context, id int64) (*domain.CalendarEntry, error)
	CreateCalendarEntry(ctx context.Context, entry *domain.CalendarEntry) error
	UpdateCalendarEntry(ctx context.Context, entry *domain.CalendarEntry) error
	SoftDeleteCalendarEntry(ctx context.Context, id int64) error
	ImportCalendarEntries(ctx context.Context, entries []domain.CalendarEntry) (int, error)

	FindActiveUsers(ctx context.Context) ([]*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateUserSchedule(ctx context.Context, user *domain.User) error

	ListAttendanceRecords(ctx context.Context, filter repository.AttendanceRecordFilter) ([]*domain.AttendanceRecord, error)
	AttendanceExistsFor(ctx context.Context, userID int64, start, end time.Time) (bool, error)
	RecordAttendance(ctx context.Context, record *domain.AttendanceRecord) error
	GetOpenAttendanceRecord(ctx context.Context, userID int64, start, end time.Time) (*domain.AttendanceRecord, error)
	CheckOutAttendance(ctx context.Context, record *domain.AttendanceRecord) error
}

type Reconciler interface {
	Run(ctx context.Context, opts reconcile.Options) (*domain.ReconciliationResult, error)
}

type ReportReader interface {
	Get(ctx context.Context, date string, dryRun bool) (*domain.ReconciliationResult, error)
}

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	store      Store
	reconciler Reconciler
	reports    ReportReader
	translator ut.Translator
	// 手动触发和 cron 触发共用一个限流器
	triggerLimiter *rate.Limiter

	shiftWindows  map[domain.Shift]workday.ShiftWindow
	fallbackShift domain.Shift
	lateGrace     time.Duration
	now           func() time.Time

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, store Store, reconciler Reconciler, reports ReportReader) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	windows, err := shiftWindows(cfg)
	if err != nil {
		return nil, err
	}
	fallbackShift, err := domain.ParseShift(cfg.Attendance.FallbackShift)
	if err != nil {
		return nil, err
	}

	return &Handler{
		validate:       validate,
		config:         cfg,
		store:          store,
		reconciler:     reconciler,
		reports:        reports,
		translator:     trans,
		triggerLimiter: rate.NewLimiter(rate.Limit(cfg.Attendance.TriggerRateLimit), cfg.Attendance.TriggerBurst),
		shiftWindows:   windows,
		fallbackShift:  fallbackShift,
		lateGrace:      time.Duration(cfg.Attendance.LateGraceMinutes) * time.Minute,
		now:            time.Now,

		Mux: chi.NewRouter(),
	}, nil
}

func shiftWindows(cfg *config.Config) (map[domain.Shift]workday.ShiftWindow, error) {
	morning, err := workday.ParseShiftWindow(cfg.Attendance.MorningStart, cfg.Attendance.MorningEnd)
	if err != nil {
		return nil, fmt.Errorf("早班时间配置错误: %w", err)
	}
	evening, err := workday.ParseShiftWindow(cfg.Attendance.EveningStart, cfg.Attendance.EveningEnd)
	if err != nil {
		return nil, fmt.Errorf("晚班时间配置错误: %w", err)
	}
	return map[domain.Shift]workday.ShiftWindow{
		domain.ShiftMorning: morning,
		domain.ShiftEvening: evening,
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h.Mux.Get("/healthz", h.Healthz)

	// serverless 平台的定时触发入口，使用 CRON_SECRET 校验
	h.Mux.Route("/cron/attendance", func(r chi.Router) {
		r.Use(h.cronAuth)
		r.Use(h.limitTrigger)
		r.Get("/", h.CronReconcile)
		r.Post("/", h.CronReconcile)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		readers := h.RequiredRole([]domain.Role{domain.RoleAdmin, domain.RoleInstructor})
		admins := h.RequiredRole([]domain.Role{domain.RoleAdmin})

		r.Route("/attendance", func(r chi.Router) {
			r.Route("/reconciliation", func(r chi.Router) {
				r.With(admins, h.limitTrigger).Post("/", h.TriggerReconciliation)
				r.With(readers).Get("/status", h.GetReconciliationStatus)
				r.With(readers).Get("/{date}", h.GetReconciliationReport)
			})
			r.Route("/settings", func(r chi.Router) {
				r.With(readers).Get("/", h.GetSettings)
				r.With(admins).Put("/", h.UpdateSettings)
			})
			r.With(readers).Get("/records", h.GetAttendanceRecords)
			r.With(readers).Get("/records/export", h.ExportAttendanceRecords)
			r.With(readers).Get("/obligation", h.GetObligation)

			r.Get("/shifts", h.GetShiftInfo)
			r.With(readers).Get("/today", h.GetTodayAttendance)
			r.With(h.userInfo, h.selfOrRole([]domain.Role{domain.RoleAdmin})).Post("/checkin/{id}", h.CheckIn)
			r.With(h.userInfo, h.selfOrRole([]domain.Role{domain.RoleAdmin})).Post("/checkout/{id}", h.CheckOut)
			r.With(h.userInfo, h.selfOrRole([]domain.Role{domain.RoleAdmin, domain.RoleInstructor})).Get("/today/{id}", h.GetUserTodayAttendance)
			r.With(admins, h.userInfo).Post("/leave/{id}", h.RecordLeave)
		})

		r.Route("/calendar", func(r chi.Router) {
			r.With(readers).Get("/", h.GetCalendarEntries)
			r.With(admins).Post("/", h.CreateCalendarEntry)
			r.With(admins).Post("/import-ics", h.ImportCalendarICS)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.calendarEntry)
				r.With(readers).Get("/", h.GetCalendarEntry)
				r.With(admins).Patch("/", h.UpdateCalendarEntry)
				r.With(admins).Delete("/", h.DeleteCalendarEntry)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.With(readers).Get("/", h.GetActiveUsers)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.With(readers).Get("/", h.GetUserInfo)
				r.With(admins).Patch("/schedule", h.UpdateUserSchedule)
			})
		})
	})
}
