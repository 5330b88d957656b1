package everything

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	mcp "github.com/mcpwire/go-mcp"
)

// A 1x1 transparent PNG, stand-in for a real image payload.
const tinyImage = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

var toolList = mcp.ListToolsResult{
	Tools: []mcp.Tool{
		{
			Name:        "echo",
			Description: "Echoes back the input",
			InputSchema: echoSchema,
		},
		{
			Name:        "add",
			Description: "Adds two numbers",
			InputSchema: addSchema,
		},
		{
			Name:        "longRunningOperation",
			Description: "Demonstrates a long running operation with progress updates",
			InputSchema: longRunningOperationSchema,
		},
		{
			Name:        "printEnv",
			Description: "Prints all environment variables, helpful for debugging MCP server configuration",
		},
		{
			Name:        "sampleLLM",
			Description: "Samples from an LLM using MCP's sampling feature",
			InputSchema: sampleLLMSchema,
		},
		{
			Name:        "getTinyImage",
			Description: "Returns a tiny test image",
		},
	},
}

func (s *Server) listTools() mcp.ListToolsResult {
	s.log("ListTools", mcp.LogLevelDebug)
	return toolList
}

func (s *Server) callTool(ctx context.Context, sess *mcp.ServerSession, msg mcp.JSONRPCMessage) (any, error) {
	var params mcp.CallToolParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil, mcp.JSONRPCError{
			Code:    mcp.JSONRPCInvalidParamsCode,
			Message: fmt.Sprintf("invalid tool call params: %s", err),
		}
	}

	s.log(fmt.Sprintf("CallTool: %s", params.Name), mcp.LogLevelDebug)

	switch params.Name {
	case "echo":
		return s.callEcho(params)
	case "add":
		return s.callAdd(params)
	case "longRunningOperation":
		return s.callLongRunningOperation(ctx, sess, params)
	case "printEnv":
		return s.callPrintEnv()
	case "sampleLLM":
		return s.callSampleLLM(ctx, sess, params)
	case "getTinyImage":
		return s.callGetTinyImage()
	default:
		return nil, mcp.JSONRPCError{
			Code:    mcp.JSONRPCInvalidParamsCode,
			Message: fmt.Sprintf("tool not found: %s", params.Name),
		}
	}
}

func (s *Server) callEcho(params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args EchoArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("invalid echo arguments: %w", err)
	}

	return mcp.CallToolResult{
		Content: []mcp.Content{
			{
				Type: mcp.ContentTypeText,
				Text: args.Message,
			},
		},
	}, nil
}

func (s *Server) callAdd(params mcp.CallToolParams) (mcp.CallToolResult, error) {
	var args AddArgs
	if err := json.Unmarshal(params.Arguments, &args); err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("invalid add arguments: %w", err)
	}

	return mcp.CallToolResult{
		Content: []mcp.Content{
			{
				Type: mcp.ContentTypeText,
				Text: fmt.Sprintf("The sum of %f and %f is %f", args.A, args.B, args.A+args.B),
			},
		},
	}, nil
}

func (s *Server) callLongRunningOperation(
	ctx context.Context,
	sess *mcp.ServerSession,
	params mcp.CallToolParams,
) (mcp.CallToolResult, error) {
	args := LongRunningOperationArgs{Duration: 10, Steps: 5}
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return mcp.CallToolResult{}, fmt.Errorf("invalid longRunningOperation arguments: %w", err)
		}
	}
	stepDuration := args.Duration / args.Steps

	for i := 0; i < int(args.Steps); i++ {
		select {
		case <-ctx.Done():
			return mcp.CallToolResult{}, ctx.Err()
		case <-time.After(time.Duration(stepDuration * float64(time.Second))):
		}

		if params.Meta.ProgressToken == "" {
			continue
		}

		err := sess.Progress(ctx, mcp.ProgressParams{
			ProgressToken: params.Meta.ProgressToken,
			Progress:      float64(i + 1),
			Total:         args.Steps,
		})
		if err != nil {
			s.log(fmt.Sprintf("failed to report progress: %s", err), mcp.LogLevelWarning)
		}
	}

	return mcp.CallToolResult{
		Content: []mcp.Content{
			{
				Type: mcp.ContentTypeText,
				Text: fmt.Sprintf("Long running operation completed. Duration: %f seconds, Steps: %f", args.Duration, args.Steps),
			},
		},
	}, nil
}

func (s *Server) callPrintEnv() (mcp.CallToolResult, error) {
	return mcp.CallToolResult{
		Content: []mcp.Content{
			{
				Type: mcp.ContentTypeText,
				Text: fmt.Sprintf("Environment variables:\n%s", strings.Join(os.Environ(), "\n")),
			},
		},
	}, nil
}

func (s *Server) callSampleLLM(
	ctx context.Context,
	sess *mcp.ServerSession,
	params mcp.CallToolParams,
) (mcp.CallToolResult, error) {
	args := SampleLLMArgs{MaxTokens: 100}
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return mcp.CallToolResult{}, fmt.Errorf("invalid sampleLLM arguments: %w", err)
		}
	}

	result, err := sess.CreateMessage(ctx, mcp.SamplingParams{
		Messages: []mcp.SamplingMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.SamplingContent{
					Type: mcp.ContentTypeText,
					Text: fmt.Sprintf("Resource sampleLLM context: %s", args.Prompt),
				},
			},
		},
		ModelPreferences: &mcp.SamplingModelPreferences{
			CostPriority:         1,
			SpeedPriority:        1,
			IntelligencePriority: 1,
		},
		SystemPrompt: "You are a helpful assistant.",
		MaxTokens:    int(args.MaxTokens),
	})
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to request sampling: %w", err)
	}

	return mcp.CallToolResult{
		Content: []mcp.Content{
			{
				Type: mcp.ContentTypeText,
				Text: result.Content.Text,
			},
		},
	}, nil
}

func (s *Server) callGetTinyImage() (mcp.CallToolResult, error) {
	return mcp.CallToolResult{
		Content: []mcp.Content{
			{
				Type:     mcp.ContentTypeImage,
				Data:     tinyImage,
				MimeType: "image/png",
			},
		},
	}, nil
}
