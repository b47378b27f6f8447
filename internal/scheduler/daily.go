// Package scheduler 在部署时区的固定时间每天触发一次考勤对账。
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/reconcile"
)

type Reconciler interface {
	Run(ctx context.Context, opts reconcile.Options) (*domain.ReconciliationResult, error)
}

type SettingsProvider interface {
	GetOrCreateSettings(ctx context.Context) (*domain.Settings, error)
}

type DailyScheduler struct {
	reconciler  Reconciler
	settings    SettingsProvider
	hour        int
	minute      int
	fallbackLoc *time.Location
	logger      *slog.Logger

	now    func() time.Time
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// ParseRunAt 解析形如 00:30 的触发时间
func ParseRunAt(runAt string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", runAt)
	if err != nil {
		return 0, 0, fmt.Errorf("无效的触发时间 %q: %w", runAt, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NextRun 返回 now 之后 loc 时区下第一个 hour:minute
func NextRun(now time.Time, loc *time.Location, hour, minute int) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

func NewDailyScheduler(reconciler Reconciler, settings SettingsProvider, runAt, fallbackTimezone string, logger *slog.Logger) (*DailyScheduler, error) {
	hour, minute, err := ParseRunAt(runAt)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(fallbackTimezone)
	if err != nil {
		return nil, fmt.Errorf("无效的时区 %q: %w", fallbackTimezone, err)
	}

	return &DailyScheduler{
		reconciler:  reconciler,
		settings:    settings,
		hour:        hour,
		minute:      minute,
		fallbackLoc: loc,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Start 在后台运行调度循环，启动时会先补跑一次，重复执行由对账任务自身的锁排除
func (s *DailyScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("考勤对账调度器已启动", "runAt", fmt.Sprintf("%02d:%02d", s.hour, s.minute))
}

func (s *DailyScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.cancel = nil

	s.logger.Info("考勤对账调度器已停止")
}

func (s *DailyScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.trigger(ctx)

	for {
		next := NextRun(s.now(), s.location(ctx), s.hour, s.minute)
		s.logger.Info("下一次考勤对账时间", "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.trigger(ctx)
		}
	}
}

func (s *DailyScheduler) trigger(ctx context.Context) {
	result, err := s.reconciler.Run(ctx, reconcile.Options{})
	if err != nil {
		s.logger.Error("定时考勤对账失败", "error", err)
		return
	}
	if result.Skipped {
		s.logger.Info("定时考勤对账已由其他实例执行", "targetDate", result.TargetDate)
	}
}

// location 优先使用设置中的时区，管理员修改时区后下一轮自动生效
func (s *DailyScheduler) location(ctx context.Context) *time.Location {
	settings, err := s.settings.GetOrCreateSettings(ctx)
	if err != nil {
		s.logger.Warn("无法读取考勤设置，使用默认时区", "error", err)
		return s.fallbackLoc
	}

	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		s.logger.Warn("考勤设置中的时区无效，使用默认时区", "timezone", settings.Timezone, "error", err)
		return s.fallbackLoc
	}

	return loc
}
