// Package rgal implements the RGAL assembly front end: a line-oriented
// tokenizer and parser that lowers RGAL source text into a tpu.Program.
// Parsing is strict - the first malformed line aborts the whole assembly,
// no partial program image is ever returned.
package rgal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AdamLeyshon/taraffic-vm/tpu"
)

// ParseError reports the line and reason a source program failed to
// assemble. Line numbers are 1-based, matching what a human editing the
// .rgal file would count.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

var commentPattern = regexp.MustCompile(`//.*$`)

// Parse lowers RGAL source text into an immutable program image. On any
// failure it returns a *ParseError and a nil program.
func Parse(source string) (*tpu.Program, error) {
	rawLines := strings.Split(source, "\n")

	instructions := make([]tpu.Instruction, 0, len(rawLines))
	sourceMap := make(map[int]string)

	for i, raw := range rawLines {
		lineNo := i + 1
		stripped := commentPattern.ReplaceAllString(raw, "")
		stripped = strings.TrimSpace(stripped)
		if stripped == "" {
			continue
		}

		instr, err := parseLine(stripped)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Reason: err.Error()}
		}

		sourceMap[len(instructions)] = stripped
		instructions = append(instructions, instr)
	}

	return &tpu.Program{Instructions: instructions, Source: sourceMap}, nil
}

func parseLine(line string) (tpu.Instruction, error) {
	mnemonic, rest, _ := strings.Cut(line, " ")
	mnemonic = strings.TrimSpace(mnemonic)

	op, ok := tpu.LookupMnemonic(mnemonic)
	if !ok {
		return tpu.Instruction{}, fmt.Errorf("unrecognized mnemonic %q", mnemonic)
	}

	shape := op.Shape()
	operandStrs := splitOperands(rest)

	if len(operandStrs) != len(shape) {
		return tpu.Instruction{}, fmt.Errorf("%s expects %d operand(s), got %d", op, len(shape), len(operandStrs))
	}

	var instr tpu.Instruction
	instr.Op = op
	for i, raw := range operandStrs {
		operand, err := parseOperand(strings.TrimSpace(raw), shape[i])
		if err != nil {
			return tpu.Instruction{}, fmt.Errorf("operand %d of %s: %w", i+1, op, err)
		}
		instr.Operands[i] = operand
	}

	return instr, nil
}

// splitOperands returns nil for an all-whitespace remainder so a nullary
// instruction with trailing spaces is still recognized as having zero
// operands.
func splitOperands(rest string) []string {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil
	}
	parts := strings.Split(rest, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseOperand(token string, category tpu.Category) (tpu.Operand, error) {
	if token == "" {
		return tpu.Operand{}, fmt.Errorf("empty operand")
	}

	if reg, ok := tpu.LookupRegister(token); ok {
		return tpu.RegOperand(reg), nil
	}

	if category == tpu.CategoryRegister {
		return tpu.Operand{}, fmt.Errorf("%q: expected a register name", token)
	}

	value, err := parseNumber(token)
	if err != nil {
		return tpu.Operand{}, err
	}
	return tpu.ImmOperand(value), nil
}

func parseNumber(token string) (uint16, error) {
	if strings.HasPrefix(token, "-") {
		return 0, fmt.Errorf("%q: negative literals are not supported", token)
	}

	var (
		value uint64
		err   error
	)
	switch {
	case strings.HasPrefix(token, "0x"), strings.HasPrefix(token, "0X"):
		value, err = strconv.ParseUint(token[2:], 16, 32)
	case strings.HasPrefix(token, "0b"), strings.HasPrefix(token, "0B"):
		value, err = strconv.ParseUint(token[2:], 2, 32)
	default:
		value, err = strconv.ParseUint(token, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("%q: malformed number", token)
	}
	if value > 65535 {
		return 0, fmt.Errorf("%q: value out of range (max 65535)", token)
	}
	return uint16(value), nil
}
