// Package pathutil checks that file paths supplied by MCP clients stay inside
// the directories the server was configured with.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RedactPath shortens a path to .../<parent>/<base> for error messages.
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// ValidatePath reports an error unless path, with symlinks resolved, lies
// within one of allowedDirs.
func ValidatePath(path string, allowedDirs []string) error {
	switch {
	case path == "":
		return fmt.Errorf("path validation failed: path is empty")
	case len(allowedDirs) == 0:
		return fmt.Errorf("path validation failed: no allowed directories configured")
	case strings.ContainsRune(path, '\x00'):
		return fmt.Errorf("path validation failed: path contains null byte")
	}

	resolved, err := resolve(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}

	for _, dir := range allowedDirs {
		base, err := resolve(dir)
		if err != nil {
			continue
		}
		if within(resolved, base) {
			return nil
		}
	}
	return fmt.Errorf("path validation failed: %q is outside allowed directories", RedactPath(resolved))
}

// resolve makes path absolute and resolves symlinks on its deepest existing
// ancestor; missing trailing components are kept as given.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("cannot resolve absolute path: %w", err)
	}

	var tail []string
	for dir := abs; ; {
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				real = filepath.Join(real, tail[i])
			}
			return real, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("cannot resolve path: %s", RedactPath(abs))
		}
		tail = append(tail, filepath.Base(dir))
		dir = parent
	}
}

// within reports whether path equals base or lies below it.
func within(path, base string) bool {
	return path == base || strings.HasPrefix(path, base+string(os.PathSeparator))
}
