package db

import (
	"context"
	"fmt"
	"strings"
)

// BackupTo writes a consistent snapshot of the database to dstPath using
// VACUUM INTO, which is safe while WAL mode is on.
func (d *DB) BackupTo(ctx context.Context, dstPath string) error {
	escaped := strings.ReplaceAll(dstPath, "'", "''")
	if _, err := d.sql.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s';", escaped)); err != nil {
		return fmt.Errorf("backup to %s: %w", dstPath, err)
	}
	return nil
}
