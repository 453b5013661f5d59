package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// BuildQueue lists the PDF documents in inputDir sorted case-insensitively
// by name. The queue is fixed for the whole run; processing never adds or
// removes entries, and source files are never deleted.
func BuildQueue(inputDir string) ([]string, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("list input directory %s: %w", inputDir, err)
	}
	var queue []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			queue = append(queue, filepath.Join(inputDir, e.Name()))
		}
	}
	sort.Slice(queue, func(i, j int) bool {
		return strings.ToLower(filepath.Base(queue[i])) < strings.ToLower(filepath.Base(queue[j]))
	})
	return queue, nil
}
