package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

var ErrReportNotFound = errors.New("对账报告不存在")

// Cache 在 redis 中保存每个目标日期最近一次的对账结果
type Cache struct {
	rdb        redis.Cmdable
	expiration time.Duration
}

func NewCache(rdb redis.Cmdable, expiration time.Duration) *Cache {
	return &Cache{
		rdb:        rdb,
		expiration: expiration,
	}
}

func CacheKey(date string, dryRun bool) string {
	mode := "live"
	if dryRun {
		mode = "dry-run"
	}
	return fmt.Sprintf("attendance:reconciliation:%s:%s", date, mode)
}

// Save 保存对账结果，被跳过的执行不会覆盖真正执行的结果
func (c *Cache) Save(ctx context.Context, result *domain.ReconciliationResult) error {
	if result.Skipped {
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, CacheKey(result.TargetDate, result.DryRun), string(data), c.expiration).Err()
}

func (c *Cache) Get(ctx context.Context, date string, dryRun bool) (*domain.ReconciliationResult, error) {
	data, err := c.rdb.Get(ctx, CacheKey(date, dryRun)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}

	result := &domain.ReconciliationResult{}
	if err := json.Unmarshal([]byte(data), result); err != nil {
		return nil, err
	}

	return result, nil
}
