// Package ruleset loads the static battle records: races, skills, side
// relations and unit rosters. The battle reads these but never mutates them.
package ruleset

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alienfall/tactics/internal/config"
)

// yamlFiles returns the .yaml and .yml files directly inside dir.
func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths, nil
}

// record is implemented by every loadable static record.
type record interface {
	key() string
	applyDefaults()
	validate(source string) error
}

// loadRecords decodes one record per file. newRec supplies a value with any
// non-zero defaults already set, since absent YAML keys leave fields untouched.
// Records failing validation are skipped and returned in skipped.
func loadRecords[T record](dir string, newRec func() T) (map[string]T, []error, error) {
	files, err := yamlFiles(dir)
	if err != nil {
		return nil, nil, err
	}
	out := make(map[string]T, len(files))
	var skipped []error
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", path, err)
		}
		rec := newRec()
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(rec); err != nil {
			return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		rec.applyDefaults()
		if err := rec.validate(path); err != nil {
			skipped = append(skipped, err)
			continue
		}
		if _, dup := out[rec.key()]; dup {
			skipped = append(skipped, &config.ConfigurationError{Source: path, Record: rec.key(), Field: "id", Reason: "duplicate id"})
			continue
		}
		out[rec.key()] = rec
	}
	return out, skipped, nil
}

// IsConfigurationError reports whether err is a skipped-record error.
func IsConfigurationError(err error) bool {
	var cfgErr *config.ConfigurationError
	return errors.As(err, &cfgErr)
}
