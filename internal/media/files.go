package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FindFiles lists regular files directly under dir that match, sorted by name.
func FindFiles(dir string, match func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !match(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// GroupFiles splits files into consecutive groups of size n; the last group may be shorter.
func GroupFiles(files []string, n int) [][]string {
	if n <= 0 {
		n = 1
	}
	var groups [][]string
	for start := 0; start < len(files); start += n {
		end := start + n
		if end > len(files) {
			end = len(files)
		}
		groups = append(groups, files[start:end])
	}
	return groups
}
