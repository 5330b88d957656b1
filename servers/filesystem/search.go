package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

type treeEntry struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"` // "file" or "directory"
	Children []treeEntry `json:"children,omitempty"`
}

// buildTree walks currentPath recursively and returns its layout as nested
// entries. Every directory is validated against the sandbox before reading.
func buildTree(rootPaths []string, currentPath string) ([]treeEntry, error) {
	validPath, err := validatePath(currentPath, rootPaths)
	if err != nil {
		return nil, fmt.Errorf("path validation failed: %w", err)
	}

	entries, err := os.ReadDir(validPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	result := make([]treeEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}

		entryData := treeEntry{
			Name: entry.Name(),
			Type: "file",
		}

		if entry.IsDir() {
			entryData.Type = "directory"
			subPath := filepath.Join(currentPath, entry.Name())

			children, err := buildTree(rootPaths, subPath)
			if err != nil {
				return nil, fmt.Errorf("failed to build subtree for %s: %w", subPath, err)
			}
			entryData.Children = children
		}

		result = append(result, entryData)
	}

	return result, nil
}

// searchFilesWithPattern walks rootPath recursively collecting entries whose
// name contains pattern, case-insensitively. Relative paths matching any of
// the exclude globs are skipped. Subdirectories are walked concurrently.
func searchFilesWithPattern(rootPath, pattern string, rootPaths, excludePatterns []string) ([]string, error) {
	var results []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	// Cap the number of directories walked at once.
	semaphore := make(chan struct{}, 50)

	compiledPatterns, err := compileExcludePatterns(excludePatterns)
	if err != nil {
		return nil, err
	}

	searchPattern := strings.ToLower(pattern)

	var search func(currentPath string)
	search = func(currentPath string) {
		defer wg.Done()

		validPath, err := validatePath(currentPath, rootPaths)
		if err != nil {
			return
		}

		entries, err := os.ReadDir(validPath)
		if err != nil {
			return
		}

		for _, entry := range entries {
			fullPath := filepath.Join(currentPath, entry.Name())

			if _, err := validatePath(fullPath, rootPaths); err != nil {
				continue
			}

			relativePath, err := filepath.Rel(rootPath, fullPath)
			if err != nil {
				continue
			}

			if matchesAny(compiledPatterns, relativePath) {
				continue
			}

			if strings.Contains(strings.ToLower(entry.Name()), searchPattern) {
				mu.Lock()
				results = append(results, fullPath)
				mu.Unlock()
			}

			if entry.IsDir() {
				wg.Add(1)
				go func(path string) {
					semaphore <- struct{}{}
					search(path)
					<-semaphore
				}(fullPath)
			}
		}
	}

	wg.Add(1)
	search(rootPath)
	wg.Wait()

	return results, nil
}

func compileExcludePatterns(excludePatterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(excludePatterns))
	for _, pattern := range excludePatterns {
		// Bare names exclude the whole subtree.
		if !strings.Contains(pattern, "*") {
			pattern = "**/" + pattern + "/**"
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

func matchesAny(patterns []glob.Glob, path string) bool {
	for _, pattern := range patterns {
		if pattern.Match(path) {
			return true
		}
	}
	return false
}
