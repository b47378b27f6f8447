package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

// AttendanceExistsFor 判断用户在 [start, end] 内是否已经有任何考勤记录
func (r *Repository) AttendanceExistsFor(ctx context.Context, userID int64, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM attendance_records
			WHERE user_id = $1 AND created_at >= $2 AND created_at <= $3
		)
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	exists := false
	if err := r.dbpool.QueryRowContext(ctx, query, userID, start, end).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

const insertAttendanceRecordQuery = `
	INSERT INTO attendance_records (
		user_id,
		shift,
		status,
		check_in_time,
		check_out_time,
		hours_worked,
		is_late,
		is_early_leave,
		created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id
`

func attendanceRecordArgs(record *domain.AttendanceRecord) []any {
	return []any{
		record.UserID,
		record.Shift,
		record.Status,
		record.CheckInTime,
		record.CheckOutTime,
		record.HoursWorked,
		record.IsLate,
		record.IsEarlyLeave,
		record.CreatedAt,
	}
}

func (r *Repository) CreateAttendanceRecord(ctx context.Context, record *domain.AttendanceRecord) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, insertAttendanceRecordQuery, attendanceRecordArgs(record)...).Scan(&record.ID)
}

// statCounters 返回某种考勤状态需要累加的用户计数列，迟到同时算一次出勤
func statCounters(status domain.AttendanceStatus) []string {
	switch status {
	case domain.AttendanceStatusPresent:
		return []string{"present_count"}
	case domain.AttendanceStatusLate:
		return []string{"present_count", "late_count"}
	case domain.AttendanceStatusLeave:
		return []string{"leave_count"}
	case domain.AttendanceStatusAbsent:
		return []string{"absent_count"}
	default:
		return nil
	}
}

// RecordAttendance 在一个事务中写入考勤记录并累加用户的统计计数
func (r *Repository) RecordAttendance(ctx context.Context, record *domain.AttendanceRecord) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, insertAttendanceRecordQuery, attendanceRecordArgs(record)...).Scan(&record.ID); err != nil {
		return err
	}

	if counters := statCounters(record.Status); len(counters) > 0 {
		sets := make([]string, len(counters))
		for i, c := range counters {
			sets[i] = fmt.Sprintf("%s = %s + 1", c, c)
		}
		query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, record.UserID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetOpenAttendanceRecord 返回用户在 [start, end] 内已签到但未签退的记录，没有时返回 sql.ErrNoRows
func (r *Repository) GetOpenAttendanceRecord(ctx context.Context, userID int64, start, end time.Time) (*domain.AttendanceRecord, error) {
	query := `
		SELECT
			id,
			user_id,
			shift,
			status,
			check_in_time,
			check_out_time,
			hours_worked,
			is_late,
			is_early_leave,
			created_at
		FROM attendance_records
		WHERE user_id = $1 AND created_at >= $2 AND created_at <= $3
			AND check_in_time IS NOT NULL AND check_out_time IS NULL
		ORDER BY id DESC
		LIMIT 1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	record := &domain.AttendanceRecord{}
	dst := []any{
		&record.ID,
		&record.UserID,
		&record.Shift,
		&record.Status,
		&record.CheckInTime,
		&record.CheckOutTime,
		&record.HoursWorked,
		&record.IsLate,
		&record.IsEarlyLeave,
		&record.CreatedAt,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, userID, start, end).Scan(dst...); err != nil {
		return nil, err
	}

	return record, nil
}

// CheckOutAttendance 写入签退时间和工时，记录已经签退过时返回 sql.ErrNoRows
func (r *Repository) CheckOutAttendance(ctx context.Context, record *domain.AttendanceRecord) error {
	query := `
		UPDATE attendance_records
		SET check_out_time = $1, hours_worked = $2, is_early_leave = $3
		WHERE id = $4 AND check_out_time IS NULL
		RETURNING id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{record.CheckOutTime, record.HoursWorked, record.IsEarlyLeave, record.ID}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&record.ID)
}

func (r *Repository) IncrementAbsentCounter(ctx context.Context, userID int64) error {
	query := `
		UPDATE users SET absent_count = absent_count + 1 WHERE id = $1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, userID)
	return err
}

type AttendanceRecordFilter struct {
	UserID *int64
	From   time.Time
	To     time.Time
}

// ListAttendanceRecords 按时间顺序返回 [From, To] 内的考勤记录，附带用户姓名
func (r *Repository) ListAttendanceRecords(ctx context.Context, filter AttendanceRecordFilter) ([]*domain.AttendanceRecord, error) {
	conditions := []string{"ar.created_at >= $1", "ar.created_at <= $2"}
	args := []any{filter.From, filter.To}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("ar.user_id = $%d", len(args)))
	}

	query := `
		SELECT
			ar.id,
			ar.user_id,
			u.full_name,
			ar.shift,
			ar.status,
			ar.check_in_time,
			ar.check_out_time,
			ar.hours_worked,
			ar.is_late,
			ar.is_early_leave,
			ar.created_at
		FROM attendance_records ar
		JOIN users u ON u.id = ar.user_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY ar.created_at, ar.user_id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*domain.AttendanceRecord{}
	for rows.Next() {
		record := &domain.AttendanceRecord{}
		dst := []any{
			&record.ID,
			&record.UserID,
			&record.UserFullName,
			&record.Shift,
			&record.Status,
			&record.CheckInTime,
			&record.CheckOutTime,
			&record.HoursWorked,
			&record.IsLate,
			&record.IsEarlyLeave,
			&record.CreatedAt,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
