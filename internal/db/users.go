package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type User struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	LastFile  string
	UpdatedAt time.Time
}

// Upsert inserts the user or replaces its display fields. A nil lastFile keeps
// whatever path is already stored; the read-preserve happens inside a single
// statement so concurrent upserts for the same user cannot drop it.
func (d *DB) Upsert(ctx context.Context, u User, lastFile *string) error {
	var lf sql.NullString
	if lastFile != nil {
		lf = nullString(*lastFile)
	}
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO users(user_id,username,first_name,last_name,last_file,updated_at)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET
			username=excluded.username,
			first_name=excluded.first_name,
			last_name=excluded.last_name,
			last_file=COALESCE(excluded.last_file, users.last_file),
			updated_at=excluded.updated_at`,
		u.UserID, nullString(u.Username), nullString(u.FirstName), nullString(u.LastName), lf, d.timestamp())
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", u.UserID, err)
	}
	return nil
}

// GetLastFile returns the stored path; ok is false when the user is unknown or
// has never produced a file.
func (d *DB) GetLastFile(ctx context.Context, userID int64) (path string, ok bool, err error) {
	var lf sql.NullString
	err = d.sql.QueryRowContext(ctx, `SELECT last_file FROM users WHERE user_id=?`, userID).Scan(&lf)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get last file %d: %w", userID, err)
	}
	return lf.String, lf.Valid && lf.String != "", nil
}

// SetLastFile is a no-op for users without a record.
func (d *DB) SetLastFile(ctx context.Context, userID int64, path string) error {
	_, err := d.sql.ExecContext(ctx, `UPDATE users SET last_file=?, updated_at=? WHERE user_id=?`, path, d.timestamp(), userID)
	if err != nil {
		return fmt.Errorf("set last file %d: %w", userID, err)
	}
	return nil
}

func (d *DB) GetUser(ctx context.Context, userID int64) (User, error) {
	var (
		u                   User
		uname, first, last  sql.NullString
		lastFile, updatedAt sql.NullString
	)
	err := d.sql.QueryRowContext(ctx,
		`SELECT user_id,username,first_name,last_name,last_file,updated_at FROM users WHERE user_id=?`, userID).
		Scan(&u.UserID, &uname, &first, &last, &lastFile, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user %d: %w", userID, err)
	}
	u.Username = uname.String
	u.FirstName = first.String
	u.LastName = last.String
	u.LastFile = lastFile.String
	if updatedAt.Valid {
		u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt.String)
	}
	return u, nil
}

// AllUserIDs is unordered.
func (d *DB) AllUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT user_id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (d *DB) CountUsers(ctx context.Context) (int, error) {
	var c int
	if err := d.sql.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&c); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return c, nil
}
