package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

// Reporter 缓存对账结果并通知管理员，任何失败都只记录日志
type Reporter struct {
	cache     *Cache
	publisher *Publisher
	logger    *slog.Logger
	timeout   time.Duration
}

func NewReporter(cache *Cache, publisher *Publisher, logger *slog.Logger, timeout time.Duration) *Reporter {
	return &Reporter{
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
	}
}

func (r *Reporter) Succeeded(ctx context.Context, result *domain.ReconciliationResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.cache.Save(ctx, result); err != nil {
		r.logger.Error("无法缓存对账结果", "runID", result.RunID, "targetDate", result.TargetDate, "error", err)
	}

	// dry run 和被跳过的执行没有实际写入，不需要通知
	if result.DryRun || result.Skipped {
		return
	}

	if err := r.publisher.PublishReport(ctx, result); err != nil {
		r.logger.Error("无法发送对账报告", "runID", result.RunID, "targetDate", result.TargetDate, "error", err)
	}
}

func (r *Reporter) Failed(ctx context.Context, targetDate string, dryRun bool, runErr error) {
	if dryRun {
		return
	}
	if targetDate == "" {
		targetDate = "昨天"
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.publisher.PublishFailure(ctx, targetDate, runErr); err != nil {
		r.logger.Error("无法发送对账失败通知", "targetDate", targetDate, "error", err)
	}
}
