package core

import (
	"os"
	"path/filepath"
	"strings"
)

// CleanString trims surrounding whitespace; pass true to also lowercase the result.
func CleanString(s string, lower ...bool) string {
	if s = strings.TrimSpace(s); len(lower) > 0 && lower[0] {
		s = strings.ToLower(s)
	}
	return s
}

// Getwd returns the module root: the closest directory above the working
// directory that holds a go.mod. Tests run from their package directory,
// templates and assets are resolved from the root.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if root, ok := findUp(wd, "go.mod"); ok {
		return root
	}
	return wd
}

func findUp(dir, name string) (string, bool) {
	for {
		if fi, err := os.Stat(filepath.Join(dir, name)); err == nil && fi.Mode().IsRegular() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
