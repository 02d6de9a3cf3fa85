package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const upTemplate = `-- Migration: {{.Name}}
-- Created: {{.Timestamp}}
{{- if .Description}}
-- {{.Description}}
{{- end}}
{{if .TenantScoped}}
-- Tenant-scoped: add the table to models.TenantTables so the isolation
-- enforcer guards it.
CREATE TABLE IF NOT EXISTS {{.Table}} (
    id          UUID         PRIMARY KEY,
    tenant_id   VARCHAR(64)  NOT NULL REFERENCES tenants (id),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_{{.Table}}_tenant_id ON {{.Table}} (tenant_id);
{{end}}`

const downTemplate = `-- Rollback: {{.Name}}
{{if .TenantScoped}}
DROP TABLE IF EXISTS {{.Table}};
{{end}}`

// versionWidth matches the zero padding of the files in migrations/
const versionWidth = 6

var migrationFile = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// MigrationFile describes a created up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Timestamp   string
	// TenantScoped pre-fills a table with the tenant column
	TenantScoped bool
	Table        string
	UpPath       string
	DownPath     string
}

// CreateOptions controls the generated skeleton
type CreateOptions struct {
	Description string
	// TenantTable, when set, creates a tenant-scoped table of that name
	TenantTable string
}

// CreateMigration writes the next numbered up/down pair into dir.
func CreateMigration(dir, name string, opts CreateOptions) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	existing, err := ListMigrations(dir)
	if err != nil {
		return nil, err
	}
	next := uint64(1)
	if n := len(existing); n > 0 {
		next = existing[n-1].Version + 1
	}

	version := fmt.Sprintf("%0*d", versionWidth, next)
	base := filepath.Join(dir, version+"_"+slug)
	mf := &MigrationFile{
		Version:      version,
		Name:         name,
		Description:  opts.Description,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		TenantScoped: opts.TenantTable != "",
		Table:        sanitizeName(opts.TenantTable),
		UpPath:       base + ".up.sql",
		DownPath:     base + ".down.sql",
	}

	if err := writeTemplate(mf.UpPath, upTemplate, mf); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := writeTemplate(mf.DownPath, downTemplate, mf); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return mf, nil
}

func writeTemplate(path, text string, data *MigrationFile) error {
	tmpl, err := template.New(filepath.Base(path)).Parse(text)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return tmpl.Execute(f, data)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// sanitizeName lowercases name and joins its alphanumeric runs with underscores
func sanitizeName(name string) string {
	name = strings.ToLower(name)
	var parts []string
	for _, field := range strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}) {
		if cleaned := nonSlug.ReplaceAllString(field, ""); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, "_")
}

// Migration is an entry of ListMigrations
type Migration struct {
	Version uint64
	Name    string
	HasDown bool
}

func (m Migration) String() string {
	return fmt.Sprintf("%0*d_%s", versionWidth, m.Version, m.Name)
}

// ListMigrations returns the migrations in dir ordered by version. A missing
// directory has no migrations.
func ListMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Migration{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	byVersion := make(map[uint64]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationFile.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			continue
		}
		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: match[2]}
			byVersion[version] = m
		}
		if match[3] == "down" {
			m.HasDown = true
		}
	}

	result := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		result = append(result, *m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}
