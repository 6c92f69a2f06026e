package tools

import (
	"context"
	"fmt"
	"strconv"
)

// funcTool adapts a plain function to the Tool interface. Connector packages
// produce many small tools; a full struct type per tool adds nothing.
type funcTool struct {
	fn  func(ctx context.Context, args map[string]any) (string, error)
	def ToolDefinition
}

// NewTool creates a Tool from a definition and an exec function.
func NewTool(def ToolDefinition, fn func(ctx context.Context, args map[string]any) (string, error)) Tool {
	return &funcTool{def: def, fn: fn}
}

func (t *funcTool) Name() string               { return t.def.Name }
func (t *funcTool) Definition() ToolDefinition { return t.def }
func (t *funcTool) Exec(ctx context.Context, args map[string]any) (string, error) {
	return t.fn(ctx, args)
}

// StringArg extracts a string parameter; missing or non-string yields "".
func StringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// RequiredStringArg extracts a string parameter and errors when absent.
func RequiredStringArg(args map[string]any, key string) (string, error) {
	v := StringArg(args, key)
	if v == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return v, nil
}

// IntArg extracts a numeric parameter, accepting the float64 that JSON
// decoding produces as well as string digits some models emit.
func IntArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
