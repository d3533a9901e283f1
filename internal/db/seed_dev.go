package db

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

type SeedDevOptions struct {
	// ExitUser is the fixed principal the exterior camera authenticates as.
	ExitUser string
}

// SeedDev inserts a starter principal set so a fresh dev database can serve
// the gate flow immediately.  API keys are the MD5 of the principal ID,
// matching how the user-management surface derives them.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	if _, err := db.ExecContext(ctx, `
INSERT INTO principals(
  principal_id, display_name, api_key,
  date_from, date_to, hour_from, hour_to, flag,
  created_at_ms, updated_at_ms
) VALUES ('dev-admin', 'Dev Admin', ?, '0000-00-00', '0000-00-00', 0, 0, 'y', ?, ?)
ON CONFLICT(principal_id) DO UPDATE SET
  flag = 'y',
  updated_at_ms = excluded.updated_at_ms;
`, apiKeyFor("dev-admin"), now, now); err != nil {
		return fmt.Errorf("seed principal dev-admin: %w", err)
	}

	if opt.ExitUser != "" {
		if _, err := db.ExecContext(ctx, `
INSERT INTO principals(
  principal_id, display_name, api_key,
  date_from, date_to, hour_from, hour_to, flag,
  created_at_ms, updated_at_ms
) VALUES (?, 'Exit Camera', ?, '0000-00-00', '0000-00-00', 0, 0, 'y', ?, ?)
ON CONFLICT(principal_id) DO UPDATE SET
  flag = 'y',
  updated_at_ms = excluded.updated_at_ms;
`, opt.ExitUser, apiKeyFor(opt.ExitUser), now, now); err != nil {
			return fmt.Errorf("seed principal %s: %w", opt.ExitUser, err)
		}
	}

	return nil
}

func apiKeyFor(id string) string {
	sum := md5.Sum([]byte(id))
	return hex.EncodeToString(sum[:])
}
