// Package calc provides the safe arithmetic evaluator exposed to the
// generation backend as a tool.
//
// Input is sanitized to an arithmetic-only character set and then parsed by a
// recursive-descent parser over numeric literals and + - * / ( ). Nothing in
// the grammar can resolve names, call functions, or touch program state.
package calc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	backendtypes "dialpilot/pkg/backend/types"
	"dialpilot/pkg/tools"
)

// ToolName is the name the calculator registers under.
const ToolName = "safe_calculate"

type arguments struct {
	Expression string `json:"expression"`
}

// Tool adapts Evaluate to the tool registry contract.
type Tool struct{}

// New returns the calculator tool.
func New() *Tool {
	return &Tool{}
}

func (t *Tool) Spec() backendtypes.ToolSpec {
	return backendtypes.ToolSpec{
		Name:        ToolName,
		Description: "Safely calculate a math expression like '100 * 20'",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "Math expression to evaluate",
				},
			},
			"required": []string{"expression"},
		},
	}
}

func (t *Tool) Run(_ context.Context, raw json.RawMessage) (string, error) {
	var args arguments
	if err := tools.DecodeArguments(raw, &args); err != nil {
		return "", err
	}

	return Evaluate(args.Expression), nil
}

// Evaluate sanitizes and evaluates a free-text arithmetic expression.
//
// It returns the numeric result as a string, or a string beginning with
// "Could not calculate:" when the cleaned expression is malformed. Division
// by zero is reported the same way.
func Evaluate(expression string) string {
	cleaned := sanitize(expression)

	value, err := parse(cleaned)
	if err != nil {
		return fmt.Sprintf("Could not calculate: %v", err)
	}

	return strconv.FormatFloat(value, 'f', -1, 64)
}

// sanitize strips every character outside the arithmetic set and maps the
// lone letter 'x' to multiplication so "100 x 20" evaluates.
func sanitize(expression string) string {
	var b strings.Builder
	for _, r := range expression {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '+' || r == '-' || r == '*' || r == '/' || r == '(' || r == ')':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('*')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(' ')
		}
	}

	return strings.TrimSpace(b.String())
}

// parse runs the recursive-descent grammar:
//
//	expr   = term { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = number | "(" expr ")" | ("+" | "-") factor
func parse(input string) (float64, error) {
	if input == "" {
		return 0, fmt.Errorf("empty expression")
	}

	p := &parser{input: input}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}

	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}

	return value, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseExpr() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}

	for {
		op, ok := p.peekOp("+-")
		if !ok {
			return value, nil
		}
		p.pos++

		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}

		if op == '+' {
			value += right
		} else {
			value -= right
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	value, err := p.parseFactor()
	if err != nil {
		return 0, err
	}

	for {
		op, ok := p.peekOp("*/")
		if !ok {
			return value, nil
		}
		p.pos++

		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}

		if op == '*' {
			value *= right
		} else {
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			value /= right
		}
	}
}

func (p *parser) parseFactor() (float64, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	switch ch := p.input[p.pos]; {
	case ch == '+':
		p.pos++
		return p.parseFactor()
	case ch == '-':
		p.pos++
		value, err := p.parseFactor()
		return -value, err
	case ch == '(':
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	default:
		return p.parseNumber()
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && (isDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected number at position %d", start)
	}

	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}

	return value, nil
}

// peekOp reports the next operator if it is one of ops, skipping spaces.
func (p *parser) peekOp(ops string) (byte, bool) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, false
	}

	ch := p.input[p.pos]
	if strings.IndexByte(ops, ch) < 0 {
		return 0, false
	}

	return ch, true
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
