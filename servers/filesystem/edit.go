package filesystem

import (
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// applyFileEdits applies the edits to the file at filePath and returns a
// fenced unified diff of the changes. With dryRun set, the diff is computed
// but the file is left untouched.
func applyFileEdits(filePath string, edits []EditOperation, dryRun bool) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	modifiedContent, err := applyEdits(string(content), edits)
	if err != nil {
		return "", err
	}

	diff := createUnifiedDiff(string(content), modifiedContent, filePath)
	formattedDiff := formatDiffOutput(diff)

	if !dryRun {
		if err := os.WriteFile(filePath, []byte(modifiedContent), 0600); err != nil {
			return "", fmt.Errorf("failed to write file: %w", err)
		}
	}

	return formattedDiff, nil
}

// applyEdits replaces each edit's old text with its new text, preferring an
// exact match and falling back to a whitespace-insensitive line match that
// preserves the original indentation.
func applyEdits(content string, edits []EditOperation) (string, error) {
	modifiedContent := normalizeLineEndings(content)

	for _, edit := range edits {
		normalizedOld := normalizeLineEndings(edit.OldText)
		normalizedNew := normalizeLineEndings(edit.NewText)

		if strings.Contains(modifiedContent, normalizedOld) {
			modifiedContent = strings.Replace(modifiedContent, normalizedOld, normalizedNew, 1)
			continue
		}

		newContent, found := tryLineByLineMatch(modifiedContent, normalizedOld, normalizedNew)
		if !found {
			return "", fmt.Errorf("could not find exact match for edit:\n%s", edit.OldText)
		}
		modifiedContent = newContent
	}

	return modifiedContent, nil
}

func tryLineByLineMatch(content, oldText, newText string) (string, bool) {
	oldLines := strings.Split(oldText, "\n")
	contentLines := strings.Split(content, "\n")

	for i := 0; i <= len(contentLines)-len(oldLines); i++ {
		if isMatchingBlock(contentLines[i:i+len(oldLines)], oldLines) {
			return replaceMatchingBlock(contentLines, i, len(oldLines), oldLines, newText), true
		}
	}

	return content, false
}

func isMatchingBlock(contentBlock, oldLines []string) bool {
	for j, oldLine := range oldLines {
		if strings.TrimSpace(oldLine) != strings.TrimSpace(contentBlock[j]) {
			return false
		}
	}
	return true
}

func replaceMatchingBlock(
	contentLines []string,
	startIdx, blockLen int,
	oldLines []string,
	newText string,
) string {
	originalIndent := leadingWhitespace(contentLines[startIdx])
	newLines := reindentLines(originalIndent, oldLines, strings.Split(newText, "\n"))

	result := make([]string, 0, len(contentLines)-blockLen+len(newLines))
	result = append(result, contentLines[:startIdx]...)
	result = append(result, newLines...)
	result = append(result, contentLines[startIdx+blockLen:]...)

	return strings.Join(result, "\n")
}

// reindentLines rebases the replacement lines onto the indentation of the
// matched block, keeping each line's indent relative to the old text.
func reindentLines(originalIndent string, oldLines []string, newLines []string) []string {
	result := make([]string, 0, len(newLines))

	for j, line := range newLines {
		if j == 0 {
			result = append(result, originalIndent+strings.TrimLeft(line, " \t"))
			continue
		}

		if strings.TrimSpace(line) == "" {
			result = append(result, originalIndent)
			continue
		}

		oldIndent := ""
		if j < len(oldLines) {
			oldIndent = leadingWhitespace(oldLines[j])
		}
		relativeIndent := len(leadingWhitespace(line)) - len(oldIndent)
		if relativeIndent < 0 {
			relativeIndent = 0
		}
		result = append(result, originalIndent+strings.Repeat(" ", relativeIndent)+strings.TrimLeft(line, " \t"))
	}

	return result
}

func createUnifiedDiff(originalContent, newContent, filepath string) string {
	dmp := diffmatchpatch.New()

	normalizedOriginal := normalizeLineEndings(originalContent)
	normalizedNew := normalizeLineEndings(newContent)

	diffs := dmp.DiffMain(normalizedOriginal, normalizedNew, true)
	patches := dmp.PatchMake(diffs)

	var diff strings.Builder
	diff.WriteString(fmt.Sprintf("--- %s (original)\n", filepath))
	diff.WriteString(fmt.Sprintf("+++ %s (modified)\n", filepath))

	for _, patch := range patches {
		diff.WriteString(dmp.PatchToText([]diffmatchpatch.Patch{patch}))
	}

	return diff.String()
}

func formatDiffOutput(diff string) string {
	// Grow the fence until it cannot collide with backticks in the diff body.
	numBackticks := 3
	for strings.Contains(diff, strings.Repeat("`", numBackticks)) {
		numBackticks++
	}
	return fmt.Sprintf("%s\ndiff\n%s%s\n\n",
		strings.Repeat("`", numBackticks),
		diff,
		strings.Repeat("`", numBackticks))
}

func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func leadingWhitespace(s string) string {
	return strings.TrimRight(s[:len(s)-len(strings.TrimLeft(s, " \t"))], "\n\r")
}
