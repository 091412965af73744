// Package explain prepares C/C++ sources for model analysis and parses the
// model's structured reply.
package explain

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CPPExtensions are the file suffixes treated as C/C++ sources.
var CPPExtensions = map[string]bool{
	".cpp": true,
	".cc":  true,
	".cxx": true,
	".c":   true,
	".hpp": true,
	".hh":  true,
	".hxx": true,
	".h":   true,
}

// FileBlob is one source file read into memory.
type FileBlob struct {
	Path     string
	Content  string
	ByteSize int
}

// SkipInfo records a file excluded by the max-files or max-bytes budget.
type SkipInfo struct {
	Path   string
	Reason string
}

// DiscoverSourceFiles walks the given files and directories and returns every
// matching source file, sorted by path relative to the working directory.
// Nonexistent inputs are skipped.
func DiscoverSourceFiles(paths []string, extensions map[string]bool) []string {
	var collected []string
	for _, raw := range paths {
		info, err := os.Stat(raw)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			if extensions[strings.ToLower(filepath.Ext(raw))] {
				collected = append(collected, raw)
			}
			continue
		}
		_ = filepath.WalkDir(raw, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && extensions[strings.ToLower(filepath.Ext(path))] {
				collected = append(collected, path)
			}
			return nil
		})
	}
	sort.Slice(collected, func(i, j int) bool {
		return relPath(collected[i]) < relPath(collected[j])
	})
	return collected
}

// ReadFilesWithBudget reads files until the cumulative byte budget would be
// exceeded; the first over-budget file and everything after it are skipped.
func ReadFilesWithBudget(files []string, maxBytes int) ([]FileBlob, []SkipInfo) {
	var blobs []FileBlob
	var skipped []SkipInfo
	total := 0
	for index, path := range files {
		content := ""
		if data, err := os.ReadFile(path); err == nil {
			content = string(data)
		}
		size := len(content)
		if total+size > maxBytes {
			for _, remaining := range files[index:] {
				skipped = append(skipped, SkipInfo{Path: relPath(remaining), Reason: "max-bytes"})
			}
			break
		}
		blobs = append(blobs, FileBlob{Path: relPath(path), Content: content, ByteSize: size})
		total += size
	}
	return blobs, skipped
}

// BuildFilesBlock renders the blobs as <file path="..."> blocks for the user
// prompt.
func BuildFilesBlock(blobs []FileBlob) string {
	parts := make([]string, 0, len(blobs))
	for _, blob := range blobs {
		parts = append(parts, "<file path=\""+blob.Path+"\">\n"+blob.Content+"\n</file>")
	}
	return strings.Join(parts, "\n\n")
}

func relPath(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, absPath(path))
	if err != nil {
		return path
	}
	return rel
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
