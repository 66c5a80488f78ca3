package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/multierr"
)

var migrationName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir checks one dialect directory, or a root holding postgres/ and
// sqlite/ in which case both dialects must also carry the same versions.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	fsys := os.DirFS(dir)
	if isDialectRoot(fsys) {
		return validateDialects(fsys, DialectPostgres, DialectSQLite)
	}
	_, err := scanDialect(fsys, ".")
	return err
}

// ValidateEmbedded checks the compiled-in migrations for both dialects.
func ValidateEmbedded() error {
	pg, err := EmbeddedDir(DialectPostgres)
	if err != nil {
		return err
	}
	lite, err := EmbeddedDir(DialectSQLite)
	if err != nil {
		return err
	}
	return validateDialects(embedded, pg, lite)
}

func isDialectRoot(fsys fs.FS) bool {
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		info, err := fs.Stat(fsys, dialect)
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

func validateDialects(fsys fs.FS, pgDir, liteDir string) error {
	pg, pgErr := scanDialect(fsys, pgDir)
	lite, liteErr := scanDialect(fsys, liteDir)
	errs := multierr.Combine(prefixed(pgDir, pgErr), prefixed(liteDir, liteErr))
	if errs != nil {
		return errs
	}
	for _, v := range pg {
		if !slices.Contains(lite, v) {
			errs = multierr.Append(errs, fmt.Errorf("version %s exists for postgres but not sqlite", v))
		}
	}
	for _, v := range lite {
		if !slices.Contains(pg, v) {
			errs = multierr.Append(errs, fmt.Errorf("version %s exists for sqlite but not postgres", v))
		}
	}
	return errs
}

// scanDialect returns the sorted versions in dir. Every problem found is
// reported, not only the first.
func scanDialect(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	var (
		errs     error
		versions []string
		owner    = map[string]string{}
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		match := migrationName.FindStringSubmatch(name)
		if match == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		version := match[1]
		if first, dup := owner[version]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: version %s already used by %s", name, version, first))
			continue
		}
		owner[version] = name
		versions = append(versions, version)

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				errs = multierr.Append(errs, fmt.Errorf("%s: missing %q", name, marker))
			}
		}
	}
	slices.Sort(versions)
	return versions, errs
}

func prefixed(dir string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", dir, err)
}
