package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// SourceDir is where new migrations are written, one subdirectory per dialect.
const SourceDir = "pkg/migrate/migrations"

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

// dialectDirs maps goose dialects to their subdirectory under SourceDir.
var dialectDirs = map[string]string{
	DialectPostgres: "postgres",
	DialectSQLite:   "sqlite",
}

// CreateSQLMigration writes one empty goose migration per dialect under root,
// all sharing the same version so the dialects never drift apart:
//
//	<root>/postgres/<YYYYMMDDHHMMSS>_<name>.sql
//	<root>/sqlite/<YYYYMMDDHHMMSS>_<name>.sql
//
// No file is written if any target already exists.
func CreateSQLMigration(root, name string, now time.Time) ([]string, error) {
	if root == "" {
		return nil, fmt.Errorf("root dir is required")
	}
	safe := sanitizeMigrationName(name)
	if safe == "" {
		return nil, fmt.Errorf("name %q results in empty sanitized filename", name)
	}

	filename := fmt.Sprintf("%s_%s.sql", now.UTC().Format("20060102150405"), safe)
	paths := make([]string, 0, len(dialectDirs))
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		full := filepath.Join(root, dialectDirs[dialect], filename)
		if _, err := os.Stat(full); err == nil {
			return nil, fmt.Errorf("migration already exists: %s", full)
		}
		paths = append(paths, full)
	}

	for i, dialect := range []string{DialectPostgres, DialectSQLite} {
		if err := os.MkdirAll(filepath.Dir(paths[i]), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %q: %w", filepath.Dir(paths[i]), err)
		}
		if err := os.WriteFile(paths[i], []byte(migrationTemplate(safe, dialect)), 0o644); err != nil {
			return nil, fmt.Errorf("write %q: %w", paths[i], err)
		}
	}
	return paths, nil
}

func sanitizeMigrationName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

func migrationTemplate(name, dialect string) string {
	return fmt.Sprintf(`-- +goose Up
-- +goose StatementBegin
-- %[1]s (%[2]s)
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s (%[2]s)
-- +goose StatementEnd
`, name, dialect)
}
