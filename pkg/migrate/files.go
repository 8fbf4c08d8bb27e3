package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	unsafeNameRe  = regexp.MustCompile(`[^a-z0-9_]+`)
	fileNameRe    = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	tableNameRe   = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	versionLayout = "20060102150405"
)

const emptyTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// triggerTemplate attaches the shared notify_row_change() function, installed
// by the row_change_notify migration, to one more table.
const triggerTemplate = `-- +goose Up
-- +goose StatementBegin
CREATE TRIGGER %[1]s_notify_row_change
AFTER INSERT OR UPDATE OR DELETE ON %[1]s
FOR EACH ROW EXECUTE FUNCTION notify_row_change();
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
DROP TRIGGER IF EXISTS %[1]s_notify_row_change ON %[1]s;
-- +goose StatementEnd
`

// CreateSQLMigration writes an empty goose migration named
// <dir>/<YYYYMMDDHHMMSS>_<name>.sql and returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	safe := sanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	return writeMigration(dir, safe, fmt.Sprintf(emptyTemplate, safe))
}

// CreateTriggerMigration writes a migration that publishes row changes of
// table on the change feed channel.
func CreateTriggerMigration(dir, table string) (string, error) {
	table = strings.ToLower(strings.TrimSpace(table))
	if !tableNameRe.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return writeMigration(dir, table+"_notify_row_change", fmt.Sprintf(triggerTemplate, table))
}

func sanitizeName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = unsafeNameRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

func writeMigration(dir, safeName, body string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", time.Now().UTC().Format(versionLayout), safeName))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", path, err)
	}
	if _, err := f.WriteString(body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, f.Close()
}

// ValidateDir checks file names, unique versions and goose markers of every
// .sql file in dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	versions := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := fileNameRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := versions[m[1]]; dup {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		versions[m[1]] = name

		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read file %q: %w", name, err)
		}
		if err := checkMarkers(name, string(raw)); err != nil {
			return err
		}
	}
	if len(versions) == 0 {
		return fmt.Errorf("no migrations found in %q", dir)
	}
	return nil
}

func checkMarkers(name, sql string) error {
	for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
		if !strings.Contains(sql, marker) {
			return fmt.Errorf("migration %q missing %q", name, marker)
		}
	}
	if strings.Count(sql, "-- +goose StatementBegin") != strings.Count(sql, "-- +goose StatementEnd") {
		return fmt.Errorf("migration %q has unbalanced statement markers", name)
	}
	return nil
}
