package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReporter(t *testing.T) (*Reporter, redismock.ClientMock, *fakeChannel) {
	t.Helper()
	rdb, mock := redismock.NewClientMock()
	ch := &fakeChannel{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewReporter(NewCache(rdb, time.Hour), NewPublisher(ch, "email_queue", []string{"ops@example.com"}), logger, time.Second)
	return r, mock, ch
}

func TestReporter_SucceededCachesAndPublishes(t *testing.T) {
	r, mock, ch := newTestReporter(t)
	result := sampleResult()

	data, err := json.Marshal(result)
	require.NoError(t, err)
	mock.ExpectSet(CacheKey(result.TargetDate, false), string(data), time.Hour).SetVal("OK")

	r.Succeeded(context.Background(), result)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Len(t, ch.published, 1)
}

func TestReporter_DryRunIsCachedButNotMailed(t *testing.T) {
	r, mock, ch := newTestReporter(t)
	result := sampleResult()
	result.DryRun = true

	data, err := json.Marshal(result)
	require.NoError(t, err)
	mock.ExpectSet(CacheKey(result.TargetDate, true), string(data), time.Hour).SetVal("OK")

	r.Succeeded(context.Background(), result)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, ch.published)
}

func TestReporter_CacheFailureStillPublishes(t *testing.T) {
	r, mock, ch := newTestReporter(t)
	result := sampleResult()

	data, err := json.Marshal(result)
	require.NoError(t, err)
	mock.ExpectSet(CacheKey(result.TargetDate, false), string(data), time.Hour).SetErr(errors.New("redis down"))

	r.Succeeded(context.Background(), result)

	assert.Len(t, ch.published, 1)
}

func TestReporter_SkippedRunIsIgnored(t *testing.T) {
	r, mock, ch := newTestReporter(t)
	result := sampleResult()
	result.Skipped = true

	r.Succeeded(context.Background(), result)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, ch.published)
}

func TestReporter_Failed(t *testing.T) {
	r, _, ch := newTestReporter(t)

	r.Failed(context.Background(), "", false, errors.New("boom"))
	require.Len(t, ch.published, 1)
	assert.Contains(t, string(ch.published[0].msg.Body), "昨天")

	r.Failed(context.Background(), "2026-01-05", true, errors.New("boom"))
	assert.Len(t, ch.published, 1)
}
