package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

const userColumns = `
	id,
	username,
	password_hash,
	full_name,
	email,
	role,
	shift,
	working_days,
	present_count,
	absent_count,
	late_count,
	leave_count,
	created_at,
	version
`

func scanUser(row interface{ Scan(dest ...any) error }) (*domain.User, error) {
	user := &domain.User{}
	var workingDays []byte

	dst := []any{
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.FullName,
		&user.Email,
		&user.Role,
		&user.Shift,
		&workingDays,
		&user.AttendanceStats.Present,
		&user.AttendanceStats.Absent,
		&user.AttendanceStats.Late,
		&user.AttendanceStats.Leaves,
		&user.CreatedAt,
		&user.Version,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	if len(workingDays) > 0 {
		if err := json.Unmarshal(workingDays, &user.WorkingDays); err != nil {
			return nil, fmt.Errorf("无法解析用户 %d 的工作日: %w", user.ID, err)
		}
	}

	return user, nil
}

func marshalWorkingDays(days []int32) ([]byte, error) {
	if days == nil {
		return nil, nil
	}
	return json.Marshal(days)
}

// FindActiveUsers 返回所有未被删除的用户
func (r *Repository) FindActiveUsers(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE deleted_at IS NULL
		ORDER BY id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return scanUser(r.dbpool.QueryRowContext(ctx, query, id))
}

func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	workingDays, err := marshalWorkingDays(user.WorkingDays)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (username, password_hash, full_name, email, role, shift, working_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{user.Username, user.PasswordHash, user.FullName, user.Email, user.Role, user.Shift, workingDays}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.CreatedAt, &user.Version)
}

// UpdateUserSchedule 更新用户的班次和个人工作日
func (r *Repository) UpdateUserSchedule(ctx context.Context, user *domain.User) error {
	workingDays, err := marshalWorkingDays(user.WorkingDays)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET
			shift = $1,
			working_days = $2,
			version = version + 1
		WHERE id = $3 AND version = $4 AND deleted_at IS NULL
		RETURNING version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{user.Shift, workingDays, user.ID, user.Version}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.Version)
}
