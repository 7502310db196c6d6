package migrations

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var fileName = regexp.MustCompile(`^(\d{3})_[a-z0-9_]+\.sql$`)

// migrationFiles lists the .sql files under dir in apply order. Every file must be named
// NNN_name.sql and the versions must run 001, 002, ... without gaps or repeats, so a
// store never starts against a schema missing a step.
func migrationFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		if !fileName.MatchString(entry.Name()) {
			return nil, fmt.Errorf("%s migration %q: want NNN_name.sql", dir, entry.Name())
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for i, file := range files {
		version, _ := strconv.Atoi(fileName.FindStringSubmatch(file)[1])
		if version != i+1 {
			return nil, fmt.Errorf("%s migration %s: expected version %03d", dir, file, i+1)
		}
	}
	return files, nil
}

func readMigration(fsys fs.FS, dir, file string) (string, error) {
	data, err := fs.ReadFile(fsys, path.Join(dir, file))
	if err != nil {
		return "", fmt.Errorf("read migration %s: %w", file, err)
	}
	return string(data), nil
}
