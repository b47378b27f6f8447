package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

type recordingNotifier struct {
	succeeded   []*domain.ReconciliationResult
	failed      []error
	failedDates []string
}

func (n *recordingNotifier) Succeeded(ctx context.Context, result *domain.ReconciliationResult) {
	n.succeeded = append(n.succeeded, result)
}

func (n *recordingNotifier) Failed(ctx context.Context, targetDate string, dryRun bool, err error) {
	n.failed = append(n.failed, err)
	n.failedDates = append(n.failedDates, targetDate)
}

func TestRunner_NotifiesSuccess(t *testing.T) {
	f := newFixture(t, []*domain.User{{ID: 1}}, nil)
	notifier := &recordingNotifier{}
	runner := NewRunner(f.job, notifier)

	result, err := runner.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, notifier.succeeded, 1)
	assert.Same(t, result, notifier.succeeded[0])
	assert.Empty(t, notifier.failed)
}

func TestRunner_NotifiesFailure(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.users.err = errors.New("timeout")
	notifier := &recordingNotifier{}
	runner := NewRunner(f.job, notifier)

	result, err := runner.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Len(t, notifier.failed, 1)
	assert.Empty(t, notifier.succeeded)
	// 没有显式指定日期时，失败通知使用计算出的昨天
	assert.Equal(t, []string{"2026-01-05"}, notifier.failedDates)
}

func TestRunner_FailureBeforeTargetDateIsKnown(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.settings.getErr = errors.New("connection refused")
	notifier := &recordingNotifier{}
	runner := NewRunner(f.job, notifier)

	_, err := runner.Run(context.Background(), Options{})
	require.ErrorIs(t, err, ErrInvalidSettings)
	assert.Equal(t, []string{""}, notifier.failedDates)
}
