package migrate

import (
	"bufio"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/pressly/goose/v3"
)

var (
	fileNameRe   = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	unsafeNameRe = regexp.MustCompile(`[^a-z0-9]+`)
)

var sqlTemplate = template.Must(template.New("eventdesk.sql").Parse(`-- +goose Up
-- +goose StatementBegin
SELECT 'up {{.CamelName}}';
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
SELECT 'down {{.CamelName}}';
-- +goose StatementEnd
`))

// Create writes a timestamped SQL migration into dir and returns its path.
func Create(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := slugify(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}

	goose.SetLogger(goose.NopLogger())
	goose.SetSequential(false)
	if err := goose.CreateWithTemplate(nil, dir, sqlTemplate, slug, "sql"); err != nil {
		return "", fmt.Errorf("create migration %q: %w", slug, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*_"+slug+".sql"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("created migration %q not found in %s", slug, dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

func slugify(name string) string {
	s := unsafeNameRe.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(s, "_")
}

// fileCheck is what Validate learns about one migration file.
type fileCheck struct {
	name        string
	version     int64
	hasUp       bool
	hasDown     bool
	openBlocks  int
	closeBlocks int
}

func (c fileCheck) problem() string {
	switch {
	case !c.hasUp:
		return "missing -- +goose Up"
	case !c.hasDown:
		return "missing -- +goose Down"
	case c.openBlocks != c.closeBlocks:
		return fmt.Sprintf("%d StatementBegin vs %d StatementEnd", c.openBlocks, c.closeBlocks)
	default:
		return ""
	}
}

// Validate checks naming, version uniqueness and goose annotations for every .sql file in fsys.
func Validate(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("no migrations found")
	}

	versions := make(map[int64]string, len(names))
	for _, name := range names {
		check, err := inspect(fsys, name)
		if err != nil {
			return err
		}
		if prev, dup := versions[check.version]; dup {
			return fmt.Errorf("version %d used by both %s and %s", check.version, prev, name)
		}
		versions[check.version] = name
		if msg := check.problem(); msg != "" {
			return fmt.Errorf("migration %s: %s", name, msg)
		}
	}
	return nil
}

// ValidateDir is Validate over a directory on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if err := Validate(SourceFS(dir)); err != nil {
		return fmt.Errorf("%s: %w", dir, err)
	}
	return nil
}

func inspect(fsys fs.FS, name string) (fileCheck, error) {
	base := path.Base(name)
	m := fileNameRe.FindStringSubmatch(base)
	if m == nil {
		return fileCheck{}, fmt.Errorf("migration %s: name must look like YYYYMMDDHHMMSS_name.sql", base)
	}
	if _, err := time.Parse("20060102150405", m[1]); err != nil {
		return fileCheck{}, fmt.Errorf("migration %s: version is not a timestamp", base)
	}
	version, _ := strconv.ParseInt(m[1], 10, 64)

	f, err := fsys.Open(name)
	if err != nil {
		return fileCheck{}, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	check := fileCheck{name: base, version: version}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "-- +goose Up":
			check.hasUp = true
		case "-- +goose Down":
			check.hasDown = true
		case "-- +goose StatementBegin":
			check.openBlocks++
		case "-- +goose StatementEnd":
			check.closeBlocks++
		}
	}
	if err := scanner.Err(); err != nil {
		return fileCheck{}, fmt.Errorf("read %s: %w", name, err)
	}
	return check, nil
}
