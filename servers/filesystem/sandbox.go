package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// validatePath resolves requestedPath and confirms it stays inside one of the
// allowed directories. Symlinks are resolved before the check so a link
// cannot smuggle access outside the sandbox. For paths that do not exist yet,
// the parent directory is checked instead.
func validatePath(requestedPath string, allowedDirectories []string) (string, error) {
	expandedPath := os.ExpandEnv(filepath.FromSlash(requestedPath))

	absolute, err := filepath.Abs(expandedPath)
	if err != nil {
		return "", err
	}

	normalizedRequested := filepath.Clean(absolute)
	if !isAllowedPath(normalizedRequested, allowedDirectories) {
		return "", fmt.Errorf("access denied - path %s outside allowed directories %s",
			requestedPath, strings.Join(allowedDirectories, ", "))
	}

	realPath, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}

		// For new files that don't exist yet, verify the parent directory.
		parentDir := filepath.Dir(absolute)
		realParentPath, err := filepath.EvalSymlinks(parentDir)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("access denied - parent directory %s does not exist", parentDir)
			}
			return "", err
		}

		if !isAllowedPath(filepath.Clean(realParentPath), allowedDirectories) {
			return "", fmt.Errorf("access denied - parent directory %s outside allowed directories %s",
				parentDir, strings.Join(allowedDirectories, ", "))
		}

		return absolute, nil
	}

	if !isAllowedPath(filepath.Clean(realPath), allowedDirectories) {
		return "", fmt.Errorf("access denied - real path %s outside allowed directories %s",
			realPath, strings.Join(allowedDirectories, ", "))
	}

	return realPath, nil
}

func isAllowedPath(path string, allowedDirectories []string) bool {
	for _, dir := range allowedDirectories {
		if isSubpath(path, dir) {
			return true
		}
	}
	return false
}

func isSubpath(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".."
}
