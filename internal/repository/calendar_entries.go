package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

const calendarEntryColumns = `
	id,
	title,
	description,
	type,
	start_date,
	end_date,
	is_full_day,
	created_by,
	created_at,
	version
`

func scanCalendarEntry(row interface{ Scan(dest ...any) error }, entry *domain.CalendarEntry) error {
	dst := []any{
		&entry.ID,
		&entry.Title,
		&entry.Description,
		&entry.Type,
		&entry.StartDate,
		&entry.EndDate,
		&entry.IsFullDay,
		&entry.CreatedBy,
		&entry.CreatedAt,
		&entry.Version,
	}
	return row.Scan(dst...)
}

// FindOverlappingCalendarEntries 返回给定类型中与 [start, end] 相交且未被删除的日历条目
func (r *Repository) FindOverlappingCalendarEntries(ctx context.Context, types []domain.CalendarEntryType, start, end time.Time) ([]domain.CalendarEntry, error) {
	if len(types) == 0 {
		return []domain.CalendarEntry{}, nil
	}

	args := []any{start, end}
	placeholders := make([]string, 0, len(types))
	for _, typ := range types {
		args = append(args, typ)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := `
		SELECT ` + calendarEntryColumns + `
		FROM calendar_entries
		WHERE deleted_at IS NULL
			AND start_date <= $2
			AND end_date >= $1
			AND type IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY start_date
	`

	return r.queryCalendarEntries(ctx, query, args...)
}

type CalendarEntryFilter struct {
	Start *time.Time
	End   *time.Time
	Type  *domain.CalendarEntryType
}

func (r *Repository) ListCalendarEntries(ctx context.Context, filter CalendarEntryFilter) ([]domain.CalendarEntry, error) {
	conditions := []string{"deleted_at IS NULL"}
	args := []any{}

	if filter.Start != nil {
		args = append(args, *filter.Start)
		conditions = append(conditions, fmt.Sprintf("end_date >= $%d", len(args)))
	}
	if filter.End != nil {
		args = append(args, *filter.End)
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}

	query := `
		SELECT ` + calendarEntryColumns + `
		FROM calendar_entries
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY start_date
	`

	return r.queryCalendarEntries(ctx, query, args...)
}

func (r *Repository) queryCalendarEntries(ctx context.Context, query string, args ...any) ([]domain.CalendarEntry, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.CalendarEntry{}
	for rows.Next() {
		var entry domain.CalendarEntry
		if err := scanCalendarEntry(rows, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *Repository) GetCalendarEntryByID(ctx context.Context, id int64) (*domain.CalendarEntry, error) {
	query := `
		SELECT ` + calendarEntryColumns + `
		FROM calendar_entries
		WHERE id = $1 AND deleted_at IS NULL
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	entry := &domain.CalendarEntry{}
	if err := scanCalendarEntry(r.dbpool.QueryRowContext(ctx, query, id), entry); err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *Repository) CreateCalendarEntry(ctx context.Context, entry *domain.CalendarEntry) error {
	query := `
		INSERT INTO calendar_entries (title, description, type, start_date, end_date, is_full_day, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{entry.Title, entry.Description, entry.Type, entry.StartDate, entry.EndDate, entry.IsFullDay, entry.CreatedBy}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt, &entry.Version)
}

func (r *Repository) UpdateCalendarEntry(ctx context.Context, entry *domain.CalendarEntry) error {
	query := `
		UPDATE calendar_entries
		SET
			title = $1,
			description = $2,
			type = $3,
			start_date = $4,
			end_date = $5,
			is_full_day = $6,
			version = version + 1
		WHERE id = $7 AND version = $8 AND deleted_at IS NULL
		RETURNING version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{entry.Title, entry.Description, entry.Type, entry.StartDate, entry.EndDate, entry.IsFullDay, entry.ID, entry.Version}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&entry.Version)
}

// SoftDeleteCalendarEntry 软删除日历条目，条目不存在或已被删除时返回 sql.ErrNoRows
func (r *Repository) SoftDeleteCalendarEntry(ctx context.Context, id int64) error {
	query := `
		UPDATE calendar_entries
		SET deleted_at = NOW(), version = version + 1
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, query, id).Scan(&id)
}

// ImportCalendarEntries 在一个事务中批量插入日历条目，已存在相同标题、类型和开始时间的条目会被跳过
func (r *Repository) ImportCalendarEntries(ctx context.Context, entries []domain.CalendarEntry) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO calendar_entries (title, description, type, start_date, end_date, is_full_day, created_by)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE NOT EXISTS (
			SELECT 1 FROM calendar_entries
			WHERE title = $1 AND type = $3 AND start_date = $4 AND deleted_at IS NULL
		)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	imported := 0
	for _, entry := range entries {
		res, err := stmt.ExecContext(ctx, entry.Title, entry.Description, entry.Type, entry.StartDate, entry.EndDate, entry.IsFullDay, entry.CreatedBy)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		imported += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return imported, nil
}
