package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/config"
	"golang.org/x/sync/singleflight"
)

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB

	// 合并并发的设置初始化请求
	settingsGroup singleflight.Group
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

func (r *Repository) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
}
