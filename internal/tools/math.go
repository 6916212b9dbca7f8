package tools

import (
	"context"
	"fmt"
	"math"

	"mcpd/internal/mcp"
)

// MathProvider implements basic arithmetic tools.
type MathProvider struct{}

var _ Provider = (*MathProvider)(nil)

func NewMathProvider() *MathProvider {
	return &MathProvider{}
}

func numberSchema(aKey, aDesc, bKey, bDesc string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			aKey: map[string]interface{}{
				"type":        "number",
				"description": aDesc,
			},
			bKey: map[string]interface{}{
				"type":        "number",
				"description": bDesc,
			},
		},
		"required": []string{aKey, bKey},
	}
}

func (m *MathProvider) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return []mcp.Tool{
		{
			Name:        "add",
			Description: "Add two numbers together",
			InputSchema: numberSchema("a", "First number", "b", "Second number"),
		},
		{
			Name:        "subtract",
			Description: "Subtract the second number from the first",
			InputSchema: numberSchema("a", "First number", "b", "Second number"),
		},
		{
			Name:        "multiply",
			Description: "Multiply two numbers",
			InputSchema: numberSchema("a", "First number", "b", "Second number"),
		},
		{
			Name:        "divide",
			Description: "Divide the first number by the second",
			InputSchema: numberSchema("a", "Dividend", "b", "Divisor"),
		},
		{
			Name:        "power",
			Description: "Calculate a number raised to a power",
			InputSchema: numberSchema("base", "Base number", "exponent", "Exponent"),
		},
	}, nil
}

func (m *MathProvider) CallTool(ctx context.Context, params mcp.ToolCallParams) (*mcp.ToolCallResult, error) {
	switch params.Name {
	case "add":
		return m.binaryOp(params, "+", func(a, b float64) float64 { return a + b })
	case "subtract":
		return m.binaryOp(params, "-", func(a, b float64) float64 { return a - b })
	case "multiply":
		return m.binaryOp(params, "×", func(a, b float64) float64 { return a * b })
	case "divide":
		return m.handleDivide(params)
	case "power":
		return m.handlePower(params)
	default:
		return errorResponse(fmt.Sprintf("Unknown tool: %s", params.Name)), nil
	}
}

func (m *MathProvider) binaryOp(params mcp.ToolCallParams, symbol string, op func(a, b float64) float64) (*mcp.ToolCallResult, error) {
	a, err := getNumberArg(params.Arguments, "a")
	if err != nil {
		return errorResponse(err.Error()), nil
	}
	b, err := getNumberArg(params.Arguments, "b")
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	result := op(a, b)
	return &mcp.ToolCallResult{
		Content: mcp.TextContent(fmt.Sprintf("%.2f %s %.2f = %.2f", a, symbol, b, result)),
	}, nil
}

func (m *MathProvider) handleDivide(params mcp.ToolCallParams) (*mcp.ToolCallResult, error) {
	a, err := getNumberArg(params.Arguments, "a")
	if err != nil {
		return errorResponse(err.Error()), nil
	}
	b, err := getNumberArg(params.Arguments, "b")
	if err != nil {
		return errorResponse(err.Error()), nil
	}
	if b == 0 {
		return errorResponse("Division by zero is not allowed"), nil
	}

	result := a / b
	return &mcp.ToolCallResult{
		Content: mcp.TextContent(fmt.Sprintf("%.2f ÷ %.2f = %.2f", a, b, result)),
	}, nil
}

func (m *MathProvider) handlePower(params mcp.ToolCallParams) (*mcp.ToolCallResult, error) {
	base, err := getNumberArg(params.Arguments, "base")
	if err != nil {
		return errorResponse(err.Error()), nil
	}
	exponent, err := getNumberArg(params.Arguments, "exponent")
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	result := math.Pow(base, exponent)
	return &mcp.ToolCallResult{
		Content: mcp.TextContent(fmt.Sprintf("%.2f^%.2f = %.2f", base, exponent, result)),
	}, nil
}
