package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

// CreateSQLMigration scaffolds <dir>/<version>_<name>.sql. Names starting with
// create_ get the row-level security block every vendor-owned table needs.
func CreateSQLMigration(dir string, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := migrationSlug(name)
	if slug == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	version := now.UTC().Format(versionLayout)
	clash, err := filepath.Glob(filepath.Join(dir, version+"_*.sql"))
	if err != nil {
		return "", err
	}
	if len(clash) > 0 {
		return "", fmt.Errorf("migration version %s already used by %s", version, filepath.Base(clash[0]))
	}

	fullpath := filepath.Join(dir, version+"_"+slug+".sql")
	if err := os.WriteFile(fullpath, []byte(migrationTemplate(slug)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

func migrationSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = nameSanitizeRe.ReplaceAllString(slug, "_")
	return strings.Trim(slug, "_")
}

func migrationTemplate(slug string) string {
	var b strings.Builder
	b.WriteString("-- +goose Up\n-- +goose StatementBegin\n")
	fmt.Fprintf(&b, "-- %s\n", slug)
	if table, ok := strings.CutPrefix(slug, "create_"); ok {
		table = strings.TrimSuffix(table, "_table")
		fmt.Fprintf(&b, "ALTER TABLE %[1]s ENABLE ROW LEVEL SECURITY;\n", table)
		fmt.Fprintf(&b, "ALTER TABLE %[1]s FORCE ROW LEVEL SECURITY;\n", table)
		fmt.Fprintf(&b, "CREATE POLICY tenant_isolation ON %[1]s\n", table)
		b.WriteString("    USING (app_tenant_visible(vendor_id)) WITH CHECK (app_tenant_visible(vendor_id));\n")
	}
	b.WriteString("-- +goose StatementEnd\n\n-- +goose Down\n-- +goose StatementBegin\n")
	fmt.Fprintf(&b, "-- rollback %s\n", slug)
	b.WriteString("-- +goose StatementEnd\n")
	return b.String()
}
