package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mcp "github.com/mcpwire/go-mcp"
)

func noProgress(float64, float64) {}

func TestReadFile(t *testing.T) {
	tempDir := t.TempDir()

	testContent := "test content"
	testFile := filepath.Join(tempDir, "test.txt")
	if err := os.WriteFile(testFile, []byte(testContent), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	args, _ := json.Marshal(ReadFileArgs{Path: testFile})
	result, err := readFile([]string{tempDir}, mcp.CallToolParams{Arguments: args})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if len(result.Content) != 1 {
		t.Fatalf("Expected 1 content item, got %d", len(result.Content))
	}
	if result.Content[0].Text != testContent {
		t.Errorf("Expected content '%s', got '%s'", testContent, result.Content[0].Text)
	}

	// Reading non-existent file
	args, _ = json.Marshal(ReadFileArgs{Path: filepath.Join(tempDir, "nonexistent.txt")})
	_, err = readFile([]string{tempDir}, mcp.CallToolParams{Arguments: args})
	if err == nil {
		t.Error("Expected error for non-existent file, got none")
	}
}

func TestReadFileOutsideRoot(t *testing.T) {
	tempDir := t.TempDir()
	otherDir := t.TempDir()

	outsideFile := filepath.Join(otherDir, "secret.txt")
	if err := os.WriteFile(outsideFile, []byte("secret"), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	args, _ := json.Marshal(ReadFileArgs{Path: outsideFile})
	_, err := readFile([]string{tempDir}, mcp.CallToolParams{Arguments: args})
	if err == nil {
		t.Fatal("Expected access denied error, got none")
	}
	if !strings.Contains(err.Error(), "access denied") {
		t.Errorf("Expected access denied error, got %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	tempDir := t.TempDir()

	testContent := "test content"
	testFile := filepath.Join(tempDir, "write_test.txt")

	args, _ := json.Marshal(WriteFileArgs{
		Path:    testFile,
		Content: testContent,
	})

	_, err := writeFile([]string{tempDir}, mcp.CallToolParams{Arguments: args})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	content, err := os.ReadFile(testFile)
	if err != nil {
		t.Errorf("Failed to read written file: %v", err)
	}
	if string(content) != testContent {
		t.Errorf("Expected content '%s', got '%s'", testContent, string(content))
	}
}

func TestReadMultipleFiles(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string]string{
		"file1.txt": "content1",
		"file2.txt": "content2",
	}

	var paths []string
	for name, content := range files {
		path := filepath.Join(tempDir, name)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		paths = append(paths, path)
	}
	// A failed read should not abort the batch.
	paths = append(paths, filepath.Join(tempDir, "missing.txt"))

	args, _ := json.Marshal(ReadMultipleFilesArgs{Paths: paths})
	result, err := readMultipleFiles([]string{tempDir}, mcp.CallToolParams{Arguments: args})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if len(result.Content) != len(paths) {
		t.Errorf("Expected %d contents, got %d", len(paths), len(result.Content))
	}
	last := result.Content[len(result.Content)-1].Text
	if !strings.Contains(last, "Error") {
		t.Errorf("Expected error entry for missing file, got %q", last)
	}
}

func TestEditFile(t *testing.T) {
	tempDir := t.TempDir()

	testFile := filepath.Join(tempDir, "edit_test.txt")
	initialContent := "line1\nline2\nline3\n"
	if err := os.WriteFile(testFile, []byte(initialContent), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	edits := []EditOperation{
		{
			OldText: "line2",
			NewText: "modified line2",
		},
	}

	args, _ := json.Marshal(EditFileArgs{
		Path:   testFile,
		Edits:  edits,
		DryRun: false,
	})

	result, err := editFile([]string{tempDir}, mcp.CallToolParams{Arguments: args})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !strings.Contains(result.Content[0].Text, "edit_test.txt") {
		t.Errorf("Expected diff to mention the file, got %q", result.Content[0].Text)
	}

	content, _ := os.ReadFile(testFile)
	if !strings.Contains(string(content), "modified line2") {
		t.Error("File content was not modified as expected")
	}
}

func TestEditFileDryRun(t *testing.T) {
	tempDir := t.TempDir()

	testFile := filepath.Join(tempDir, "dry_run.txt")
	initialContent := "alpha\nbeta\n"
	if err := os.WriteFile(testFile, []byte(initialContent), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	args, _ := json.Marshal(EditFileArgs{
		Path:   testFile,
		Edits:  []EditOperation{{OldText: "beta", NewText: "gamma"}},
		DryRun: true,
	})

	result, err := editFile([]string{tempDir}, mcp.CallToolParams{Arguments: args})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(result.Content[0].Text, "diff") {
		t.Errorf("Expected diff output, got %q", result.Content[0].Text)
	}

	content, _ := os.ReadFile(testFile)
	if string(content) != initialContent {
		t.Error("Dry run should not modify the file")
	}
}

func TestApplyEditsLineMatch(t *testing.T) {
	content := "func main() {\n\tfoo()\n}\n"

	// The old text differs in indentation, only the line match can find it.
	modified, err := applyEdits(content, []EditOperation{
		{OldText: "foo()", NewText: "bar()"},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(modified, "bar()") {
		t.Errorf("Expected edit to apply, got %q", modified)
	}

	_, err = applyEdits(content, []EditOperation{
		{OldText: "does not exist", NewText: "x"},
	})
	if err == nil {
		t.Error("Expected error for unmatched edit, got none")
	}
}

func TestCreateDirectory(t *testing.T) {
	tempDir := t.TempDir()

	newDir := filepath.Join(tempDir, "new_dir", "nested_dir")
	args, _ := json.Marshal(CreateDirectoryArgs{Path: newDir})

	_, err := createDirectory([]string{tempDir}, mcp.CallToolParams{Arguments: args})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if info, err := os.Stat(newDir); err != nil || !info.IsDir() {
		t.Error("Directory was not created as expected")
	}
}

func TestListDirectory(t *testing.T) {
	tempDir := t.TempDir()

	testFiles := []string{"file1.txt", "file2.txt"}
	testDirs := []string{"dir1", "dir2"}

	for _, file := range testFiles {
		if err := os.WriteFile(filepath.Join(tempDir, file), []byte("test"), 0600); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}
	for _, dir := range testDirs {
		if err := os.Mkdir(filepath.Join(tempDir, dir), 0700); err != nil {
			t.Fatalf("Failed to create test directory: %v", err)
		}
	}

	args, _ := json.Marshal(ListDirectoryArgs{Path: tempDir})
	result, err := listDirectory([]string{tempDir}, mcp.CallToolParams{Arguments: args})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	listing := result.Content[0].Text
	for _, file := range testFiles {
		if !strings.Contains(listing, "[FILE] "+file) {
			t.Errorf("Expected listing to contain file %s, got %q", file, listing)
		}
	}
	for _, dir := range testDirs {
		if !strings.Contains(listing, "[DIR] "+dir) {
			t.Errorf("Expected listing to contain directory %s, got %q", dir, listing)
		}
	}
}

func TestDirectoryTree(t *testing.T) {
	tempDir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(tempDir, "dir1", "subdir"), 0700); err != nil {
		t.Fatalf("Failed to create test directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "dir1", "file1.txt"), []byte("test"), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	args, _ := json.Marshal(DirectoryTreeArgs{Path: tempDir})
	result, err := directoryTree([]string{tempDir}, mcp.CallToolParams{Arguments: args})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var treeData []treeEntry
	if err := json.Unmarshal([]byte(result.Content[0].Text), &treeData); err != nil {
		t.Fatalf("Invalid JSON structure: %v", err)
	}
	if len(treeData) != 1 {
		t.Fatalf("Expected 1 root entry, got %d", len(treeData))
	}
	if treeData[0].Name != "dir1" || treeData[0].Type != "directory" {
		t.Errorf("Unexpected root entry: %+v", treeData[0])
	}
	if len(treeData[0].Children) != 2 {
		t.Errorf("Expected 2 children, got %d", len(treeData[0].Children))
	}
}

func TestMoveFile(t *testing.T) {
	tempDir := t.TempDir()

	sourcePath := filepath.Join(tempDir, "source.txt")
	destPath := filepath.Join(tempDir, "dest.txt")
	if err := os.WriteFile(sourcePath, []byte("test content"), 0600); err != nil {
		t.Fatalf("Failed to create source file: %v", err)
	}

	args, _ := json.Marshal(MoveFileArgs{
		Source:      sourcePath,
		Destination: destPath,
	})

	_, err := moveFile([]string{tempDir}, mcp.CallToolParams{Arguments: args})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if _, err := os.Stat(sourcePath); !os.IsNotExist(err) {
		t.Error("Source file still exists")
	}
	if _, err := os.Stat(destPath); os.IsNotExist(err) {
		t.Error("Destination file doesn't exist")
	}

	// Moving over an existing destination must fail.
	if err := os.WriteFile(sourcePath, []byte("again"), 0600); err != nil {
		t.Fatalf("Failed to recreate source file: %v", err)
	}
	_, err = moveFile([]string{tempDir}, mcp.CallToolParams{Arguments: args})
	if err == nil {
		t.Error("Expected error when destination exists, got none")
	}
}

func TestSearchFiles(t *testing.T) {
	tempDir := t.TempDir()

	testFiles := []string{"test1.txt", "test2.txt", "other.txt"}
	for _, file := range testFiles {
		if err := os.WriteFile(filepath.Join(tempDir, file), []byte("test"), 0600); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	args, _ := json.Marshal(SearchFilesArgs{
		Path:    tempDir,
		Pattern: "test",
	})

	result, err := searchFiles([]string{tempDir}, mcp.CallToolParams{Arguments: args}, noProgress)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	matches := strings.Split(strings.TrimSpace(result.Content[0].Text), "\n")
	if len(matches) != 2 {
		t.Errorf("Expected 2 matches, got %d: %v", len(matches), matches)
	}
}

func TestSearchFilesExclude(t *testing.T) {
	tempDir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(tempDir, "skipped"), 0700); err != nil {
		t.Fatalf("Failed to create test directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "skipped", "test_inner.txt"), []byte("test"), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "test_outer.txt"), []byte("test"), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	args, _ := json.Marshal(SearchFilesArgs{
		Path:    tempDir,
		Pattern: "test",
		Exclude: []string{"skipped"},
	})

	result, err := searchFiles([]string{tempDir}, mcp.CallToolParams{Arguments: args}, noProgress)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	text := result.Content[0].Text
	if strings.Contains(text, "test_inner.txt") {
		t.Errorf("Expected excluded directory to be skipped, got %q", text)
	}
	if !strings.Contains(text, "test_outer.txt") {
		t.Errorf("Expected outer file to match, got %q", text)
	}
}

func TestGetFileInfo(t *testing.T) {
	tempDir := t.TempDir()

	testFile := filepath.Join(tempDir, "info_test.txt")
	if err := os.WriteFile(testFile, []byte("test content"), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	args, _ := json.Marshal(GetFileInfoArgs{Path: testFile})
	result, err := getFileInfo([]string{tempDir}, mcp.CallToolParams{Arguments: args})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	text := result.Content[0].Text
	if !strings.Contains(text, "size: 12") {
		t.Errorf("Expected size in output, got %q", text)
	}
	if !strings.Contains(text, "type: file") {
		t.Errorf("Expected type in output, got %q", text)
	}
}

func TestListAllowedDirectories(t *testing.T) {
	rootPaths := []string{"/path1", "/path2"}
	result := listAllowedDirectories(rootPaths)
	text := result.Content[0].Text
	for _, path := range rootPaths {
		if !strings.Contains(text, path) {
			t.Errorf("Expected path %s in output, got %q", path, text)
		}
	}
}

func TestHandlerDispatch(t *testing.T) {
	tempDir := t.TempDir()

	handler, err := NewHandler([]string{tempDir})
	if err != nil {
		t.Fatalf("Failed to create handler: %v", err)
	}

	res, err := handler.HandleRequest(context.Background(), nil, mcp.JSONRPCMessage{
		Method: mcp.MethodToolsList,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	listRes, ok := res.(mcp.ListToolsResult)
	if !ok {
		t.Fatalf("Expected ListToolsResult, got %T", res)
	}
	if len(listRes.Tools) == 0 {
		t.Error("Expected tools in list")
	}

	_, err = handler.HandleRequest(context.Background(), nil, mcp.JSONRPCMessage{
		Method: "prompts/list",
	})
	var jsonErr mcp.JSONRPCError
	if !errors.As(err, &jsonErr) || jsonErr.Code != mcp.JSONRPCMethodNotFoundCode {
		t.Errorf("Expected method-not-found error, got %v", err)
	}
}

func TestNewHandlerInvalidRoot(t *testing.T) {
	if _, err := NewHandler(nil); err == nil {
		t.Error("Expected error for empty roots, got none")
	}
	if _, err := NewHandler([]string{"/does/not/exist"}); err == nil {
		t.Error("Expected error for missing root, got none")
	}
}
