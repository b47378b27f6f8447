package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

const settingsColumns = `
	id,
	timezone,
	shift_defaults,
	to_char(last_automated_run_date, 'YYYY-MM-DD'),
	to_char(last_completed_run_date, 'YYYY-MM-DD'),
	updated_at,
	version
`

func scanSettings(row interface{ Scan(dest ...any) error }) (*domain.Settings, error) {
	settings := &domain.Settings{}
	var shiftDefaults []byte

	dst := []any{
		&settings.ID,
		&settings.Timezone,
		&shiftDefaults,
		&settings.LastAutomatedRunDate,
		&settings.LastCompletedRunDate,
		&settings.UpdatedAt,
		&settings.Version,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(shiftDefaults, &settings.ShiftDefaults); err != nil {
		return nil, fmt.Errorf("无法解析班次默认工作日: %w", err)
	}

	return settings, nil
}

func (r *Repository) GetSettings(ctx context.Context) (*domain.Settings, error) {
	query := `SELECT ` + settingsColumns + ` FROM attendance_settings LIMIT 1`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return scanSettings(r.dbpool.QueryRowContext(ctx, query))
}

// GetOrCreateSettings 获取唯一的考勤设置，不存在时使用默认值创建
func (r *Repository) GetOrCreateSettings(ctx context.Context) (*domain.Settings, error) {
	v, err, _ := r.settingsGroup.Do("settings", func() (any, error) {
		settings, err := r.GetSettings(ctx)
		if err == nil {
			return settings, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		settings, err = r.createDefaultSettings(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			// 其他实例已经抢先创建
			return r.GetSettings(ctx)
		}
		return settings, err
	})
	if err != nil {
		return nil, err
	}

	// 同一次 singleflight 的调用方共享结果，需要各自拷贝一份
	shared := v.(*domain.Settings)
	settings := *shared
	settings.ShiftDefaults = make(map[domain.Shift][]int32, len(shared.ShiftDefaults))
	for shift, days := range shared.ShiftDefaults {
		settings.ShiftDefaults[shift] = append([]int32(nil), days...)
	}

	return &settings, nil
}

func (r *Repository) createDefaultSettings(ctx context.Context) (*domain.Settings, error) {
	shiftDefaults, err := json.Marshal(domain.DefaultShiftDefaults())
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO attendance_settings (timezone, shift_defaults)
		VALUES ($1, $2)
		ON CONFLICT (singleton) DO NOTHING
		RETURNING ` + settingsColumns

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return scanSettings(r.dbpool.QueryRowContext(ctx, query, r.cfg.Attendance.DefaultTimezone, shiftDefaults))
}

// TryClaimRunDate 原子地将 lastAutomatedRunDate 推进到 date，标记已经不早于 date 时返回 false
//
// 标记只前进不后退，否则较早日期的正式执行会让已经认领过的日期重新可以被认领
func (r *Repository) TryClaimRunDate(ctx context.Context, settingsID int64, date string) (bool, error) {
	query := `
		UPDATE attendance_settings
		SET
			last_automated_run_date = $1::date,
			updated_at = NOW(),
			version = version + 1
		WHERE id = $2 AND (last_automated_run_date IS NULL OR last_automated_run_date < $1::date)
		RETURNING version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var version int32
	if err := r.dbpool.QueryRowContext(ctx, query, date, settingsID).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (r *Repository) MarkRunCompleted(ctx context.Context, settingsID int64, date string) error {
	query := `
		UPDATE attendance_settings
		SET
			last_completed_run_date = $1::date,
			updated_at = NOW()
		WHERE id = $2
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, date, settingsID)
	return err
}

// UpdateSettings 只更新时区和班次默认值，锁标记只能通过 TryClaimRunDate 修改
func (r *Repository) UpdateSettings(ctx context.Context, settings *domain.Settings) error {
	shiftDefaults, err := json.Marshal(settings.ShiftDefaults)
	if err != nil {
		return err
	}

	query := `
		UPDATE attendance_settings
		SET
			timezone = $1,
			shift_defaults = $2,
			updated_at = NOW(),
			version = version + 1
		WHERE id = $3 AND version = $4
		RETURNING updated_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{settings.Timezone, shiftDefaults, settings.ID, settings.Version}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&settings.UpdatedAt, &settings.Version)
}
