package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var migrationNameRe = regexp.MustCompile(`[^a-z0-9_]+`)

// CreateSQLMigration writes an empty goose migration at
// <dir>/<YYYYMMDDHHMMSS>_<name>.sql and returns its path. The template
// satisfies ValidateDir so a freshly created file passes -cmd=validate.
func CreateSQLMigration(dir string, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}

	safe := migrationNameRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	safe = strings.Trim(safe, "_")
	if safe == "" {
		return "", fmt.Errorf("migration name %q is empty after sanitizing", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	stamp := time.Now().UTC().Format("20060102150405")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", stamp, safe))
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("migration already exists: %s", path)
	}

	contents := fmt.Sprintf(`-- +goose Up
-- +goose StatementBegin
-- forward migration for %s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback for %s
-- +goose StatementEnd
`, safe, safe)

	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}

	return path, nil
}
