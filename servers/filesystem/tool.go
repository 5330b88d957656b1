package filesystem

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	mcp "github.com/mcpwire/go-mcp"
)

var toolList = mcp.ListToolsResult{
	Tools: []mcp.Tool{
		{
			Name: "read_file",
			Description: `
Read the complete contents of a file from the file system.
Handles various text encodings and provides detailed error messages
if the file cannot be read. Use this tool when you need to examine
the contents of a single file. Only works within allowed directories.
        `,
			InputSchema: readFileSchema,
		},
		{
			Name: "read_multiple_files",
			Description: `
Read the contents of multiple files simultaneously. This is more
efficient than reading files one by one when you need to analyze
or compare multiple files. Each file's content is returned with its
path as a reference. Failed reads for individual files won't stop
the entire operation. Only works within allowed directories.
        `,
			InputSchema: readMultipleFilesSchema,
		},
		{
			Name: "write_file",
			Description: `
Create a new file or completely overwrite an existing file with new content.
Use with caution as it will overwrite existing files without warning.
Handles text content with proper encoding. Only works within allowed directories.
        `,
			InputSchema: writeFileSchema,
		},
		{
			Name: "edit_file",
			Description: `
Make line-based edits to a text file. Each edit replaces exact line sequences
with new content. Returns a git-style diff showing the changes made.
Only works within allowed directories.
        `,
			InputSchema: editFileSchema,
		},
		{
			Name: "create_directory",
			Description: `
Create a new directory or ensure a directory exists. Can create multiple
nested directories in one operation. If the directory already exists,
this operation will succeed silently. Perfect for setting up directory
structures for projects or ensuring required paths exist. Only works within allowed directories.
        `,
			InputSchema: createDirectorySchema,
		},
		{
			Name: "list_directory",
			Description: `
Get a detailed listing of all files and directories in a specified path.
Results clearly distinguish between files and directories with [FILE] and [DIR]
prefixes. This tool is essential for understanding directory structure and
finding specific files within a directory. Only works within allowed directories.
        `,
			InputSchema: listDirectorySchema,
		},
		{
			Name: "directory_tree",
			Description: `
Get a recursive tree view of files and directories as a JSON structure.
Each entry includes 'name', 'type' (file/directory), and 'children' for directories.
Files have no children array, while directories always have a children array (which may be empty).
The output is formatted with 2-space indentation for readability. Only works within allowed directories.
        `,
			InputSchema: directoryTreeSchema,
		},
		{
			Name: "move_file",
			Description: `Move or rename files and directories. Can move files between directories
and rename them in a single operation. If the destination exists, the
operation will fail. Works across different directories and can be used
for simple renaming within the same directory. Both source and destination must be within allowed directories.
        `,
			InputSchema: moveFileSchema,
		},
		{
			Name: "search_files",
			Description: `Recursively search for files and directories matching a pattern.
Searches through all subdirectories from the starting path. The search
is case-insensitive and matches partial names. Returns full paths to all
matching items. Great for finding files when you don't know their exact location.
Only searches within allowed directories.
        `,
			InputSchema: searchFilesSchema,
		},
		{
			Name: "get_file_info",
			Description: `Retrieve detailed metadata about a file or directory. Returns comprehensive
information including size, creation time, last modified time, permissions,
and type. This tool is perfect for understanding file characteristics
without reading the actual content. Only works within allowed directories.
        `,
			InputSchema: getFileInfoSchema,
		},
		{
			Name: "list_allowed_directories",
			Description: `Returns the list of directories that this server is allowed to access.
Use this to understand which directories are available before trying to access files.
        `,
			InputSchema: listAllowedDirectoriesSchema,
		},
	},
}

func textResult(text string) mcp.CallToolResult {
	return mcp.CallToolResult{
		Content: []mcp.Content{
			{
				Type: mcp.ContentTypeText,
				Text: text,
			},
		},
		IsError: false,
	}
}

func readFile(rootPaths []string, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var rfParams ReadFileArgs
	if err := json.Unmarshal(params.Arguments, &rfParams); err != nil {
		return mcp.CallToolResult{}, err
	}

	validPath, err := validatePath(rfParams.Path, rootPaths)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	info, err := os.Stat(validPath)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to stat file with path %s: %w", rfParams.Path, err)
	}
	if info.IsDir() {
		return mcp.CallToolResult{}, fmt.Errorf("path %s is a directory, not a file", rfParams.Path)
	}

	bs, err := os.ReadFile(validPath)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to read file with path %s: %w", rfParams.Path, err)
	}

	return textResult(string(bs)), nil
}

func readMultipleFiles(rootPaths []string, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var rmfParams ReadMultipleFilesArgs
	if err := json.Unmarshal(params.Arguments, &rmfParams); err != nil {
		return mcp.CallToolResult{}, err
	}

	var result []mcp.Content

	for _, path := range rmfParams.Paths {
		// A failed read becomes an entry in the result instead of aborting
		// the whole batch.
		content := fmt.Sprintf("%s: %s", path, readOneFile(path, rootPaths))
		result = append(result, mcp.Content{
			Type: mcp.ContentTypeText,
			Text: content,
		})
	}

	return mcp.CallToolResult{
		Content: result,
		IsError: false,
	}, nil
}

func readOneFile(path string, rootPaths []string) string {
	validPath, err := validatePath(path, rootPaths)
	if err != nil {
		return fmt.Sprintf("Error - %s", err)
	}
	bs, err := os.ReadFile(validPath)
	if err != nil {
		return fmt.Sprintf("Error - %s", err)
	}
	return string(bs)
}

func writeFile(rootPaths []string, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var wfParams WriteFileArgs
	if err := json.Unmarshal(params.Arguments, &wfParams); err != nil {
		return mcp.CallToolResult{}, err
	}

	validPath, err := validatePath(wfParams.Path, rootPaths)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	if err := os.WriteFile(validPath, []byte(wfParams.Content), 0600); err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to write file with path %s: %w", wfParams.Path, err)
	}

	return textResult(fmt.Sprintf("Successfully wrote to %s", wfParams.Path)), nil
}

func editFile(rootPaths []string, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var efParams EditFileArgs
	if err := json.Unmarshal(params.Arguments, &efParams); err != nil {
		return mcp.CallToolResult{}, err
	}

	validPath, err := validatePath(efParams.Path, rootPaths)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	diff, err := applyFileEdits(validPath, efParams.Edits, efParams.DryRun)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to edit file with path %s: %w", efParams.Path, err)
	}

	return textResult(diff), nil
}

func createDirectory(rootPaths []string, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var cdParams CreateDirectoryArgs
	if err := json.Unmarshal(params.Arguments, &cdParams); err != nil {
		return mcp.CallToolResult{}, err
	}

	validPath, err := validatePath(cdParams.Path, rootPaths)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	if err := os.MkdirAll(validPath, 0700); err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to create directory with path %s: %w", cdParams.Path, err)
	}

	return textResult(fmt.Sprintf("Successfully created directory %s", cdParams.Path)), nil
}

func listDirectory(rootPaths []string, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var ldParams ListDirectoryArgs
	if err := json.Unmarshal(params.Arguments, &ldParams); err != nil {
		return mcp.CallToolResult{}, err
	}

	validPath, err := validatePath(ldParams.Path, rootPaths)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	files, err := os.ReadDir(validPath)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to read directory with path %s: %w", ldParams.Path, err)
	}

	var sb strings.Builder
	for _, file := range files {
		prefix := "[FILE]"
		if file.IsDir() {
			prefix = "[DIR]"
		}
		fmt.Fprintf(&sb, "%s %s\n", prefix, file.Name())
	}

	return textResult(sb.String()), nil
}

func directoryTree(rootPaths []string, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var dtParams DirectoryTreeArgs
	if err := json.Unmarshal(params.Arguments, &dtParams); err != nil {
		return mcp.CallToolResult{}, err
	}

	tree, err := buildTree(rootPaths, dtParams.Path)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to build directory tree for path %s: %w", dtParams.Path, err)
	}

	treeBs, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to marshal directory tree: %w", err)
	}

	return textResult(string(treeBs)), nil
}

func moveFile(rootPaths []string, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var mfParams MoveFileArgs
	if err := json.Unmarshal(params.Arguments, &mfParams); err != nil {
		return mcp.CallToolResult{}, err
	}

	validSource, err := validatePath(mfParams.Source, rootPaths)
	if err != nil {
		return mcp.CallToolResult{}, err
	}
	validDestination, err := validatePath(mfParams.Destination, rootPaths)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	if _, err := os.Stat(validDestination); err == nil {
		return mcp.CallToolResult{}, fmt.Errorf("destination %s already exists", mfParams.Destination)
	}

	if err := os.Rename(validSource, validDestination); err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to move %s to %s: %w", mfParams.Source, mfParams.Destination, err)
	}

	return textResult(fmt.Sprintf("Successfully moved %s to %s", mfParams.Source, mfParams.Destination)), nil
}

func searchFiles(rootPaths []string, params mcp.CallToolParams, progress func(current, total float64)) (mcp.CallToolResult, error) {
	var sfParams SearchFilesArgs
	if err := json.Unmarshal(params.Arguments, &sfParams); err != nil {
		return mcp.CallToolResult{}, err
	}

	validPath, err := validatePath(sfParams.Path, rootPaths)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	progress(0, 1)

	matches, err := searchFilesWithPattern(validPath, sfParams.Pattern, rootPaths, sfParams.Exclude)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to search files: %w", err)
	}

	progress(1, 1)

	if len(matches) == 0 {
		return textResult("No files found"), nil
	}

	return textResult(strings.Join(matches, "\n")), nil
}

func getFileInfo(rootPaths []string, params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var gfiParams GetFileInfoArgs
	if err := json.Unmarshal(params.Arguments, &gfiParams); err != nil {
		return mcp.CallToolResult{}, err
	}

	validPath, err := validatePath(gfiParams.Path, rootPaths)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	info, err := os.Stat(validPath)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to stat path %s: %w", gfiParams.Path, err)
	}

	fileType := "file"
	if info.IsDir() {
		fileType = "directory"
	}

	text := fmt.Sprintf("size: %d\nmodified: %s\npermissions: %s\ntype: %s\n",
		info.Size(), info.ModTime().Format("2006-01-02 15:04:05"), info.Mode(), fileType)

	return textResult(text), nil
}

func listAllowedDirectories(rootPaths []string) mcp.CallToolResult {
	return textResult(fmt.Sprintf("Allowed directories:\n%s", strings.Join(rootPaths, "\n")))
}
