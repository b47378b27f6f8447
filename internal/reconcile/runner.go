package reconcile

import (
	"context"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

type Notifier interface {
	Succeeded(ctx context.Context, result *domain.ReconciliationResult)
	Failed(ctx context.Context, targetDate string, dryRun bool, err error)
}

// Runner 在 Job 之外补充结果通知，定时任务、HTTP 触发和命令行共用同一个 Runner
type Runner struct {
	job      *Job
	notifier Notifier
}

func NewRunner(job *Job, notifier Notifier) *Runner {
	return &Runner{
		job:      job,
		notifier: notifier,
	}
}

func (r *Runner) Run(ctx context.Context, opts Options) (*domain.ReconciliationResult, error) {
	result, err := r.job.Run(ctx, opts)
	if err != nil {
		// 默认目标日期要等读到时区之后才能确定，失败通知尽量带上实际日期
		targetDate := opts.TargetDate
		if result != nil && result.TargetDate != "" {
			targetDate = result.TargetDate
		}
		r.notifier.Failed(ctx, targetDate, opts.DryRun, err)
		return nil, err
	}

	r.notifier.Succeeded(ctx, result)
	return result, nil
}
