// Package security guards the file paths and names the tools write to.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// canonical resolves symlinks in p. For a path that does not exist yet, the
// nearest existing ancestor is resolved and the remainder appended, so a
// symlinked parent cannot smuggle a new file outside its directory.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		if filepath.Dir(dir) == dir {
			return abs, nil
		}
	}
}

// WithinDir reports an error unless path resolves to a location inside dir.
func WithinDir(path, dir string) error {
	p, err := canonical(path)
	if err != nil {
		return err
	}
	d, err := canonical(dir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(d, p)
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path %s escapes %s", path, dir)
	}
	return nil
}

// ValidateOutputPath checks that path lies inside one of dirs. With no dirs
// the working directory and the system temp directory are allowed.
func ValidateOutputPath(path string, dirs ...string) error {
	if len(dirs) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		dirs = []string{cwd, os.TempDir()}
	}
	for _, d := range dirs {
		if WithinDir(path, d) == nil {
			return nil
		}
	}
	return errors.New("output path must be within one of " + strings.Join(dirs, ", "))
}

// SanitizeFilename maps s onto [A-Za-z0-9._-], collapsing runs of other
// characters into one underscore. The result is at most 64 bytes and never
// empty.
func SanitizeFilename(s string) string {
	const maxLen = 64
	var b strings.Builder
	under := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			under = false
		case !under:
			b.WriteByte('_')
			under = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unnamed"
	}
	return out
}
