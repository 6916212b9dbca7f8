package tools

import (
	"encoding/json"
	"fmt"
	"strconv"

	"mcpd/internal/mcp"
)

// getNumberArg extracts a numeric argument, accepting the types a JSON
// decoder may produce.
func getNumberArg(args map[string]interface{}, key string) (float64, error) {
	val, exists := args[key]
	if !exists {
		return 0, fmt.Errorf("missing required argument: %s", key)
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number format for %s: %s", key, v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("invalid argument type for %s: expected number, got %T", key, v)
	}
}

func toInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	case json.Number:
		i, err := v.Int64()
		return int(i), err
	default:
		return 0, fmt.Errorf("cannot convert %T to int", value)
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// errorResponse wraps a human readable message into a failed tool result.
func errorResponse(message string) *mcp.ToolCallResult {
	return &mcp.ToolCallResult{
		IsError: true,
		Content: mcp.TextContent(message),
	}
}
