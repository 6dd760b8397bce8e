package rgal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AdamLeyshon/taraffic-vm/tpu"
)

func TestParseRejectsLabelLine(t *testing.T) {
	src := `
		// blink the first digital pin forever
		LDR R0, 1
	loop_body_not_a_label:
		DPW 0, R0
		XOR R0, R0
		JMP 1
	`
	_, err := Parse(src)
	require.Error(t, err, "RGAL has no labels; a bare colon-terminated line must fail")
}

func TestParseRegistersAndImmediates(t *testing.T) {
	src := "LDR R0, 0x1F\nLDR R1, 0b101\nADD R0, R1\n"
	p, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, 3, p.Len())

	require.Equal(t, tpu.OpLDR, p.Instructions[0].Op)
	require.True(t, p.Instructions[0].Operands[0].IsRegister)
	require.Equal(t, tpu.RegR0, p.Instructions[0].Operands[0].Register)
	require.Equal(t, uint16(0x1F), p.Instructions[0].Operands[1].Immediate)

	require.Equal(t, uint16(0b101), p.Instructions[1].Operands[1].Immediate)
}

func TestParseRejectsUnknownMnemonic(t *testing.T) {
	_, err := Parse("FROB R0, R1\n")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 1, pe.Line)
}

func TestParseRejectsWrongOperandCount(t *testing.T) {
	_, err := Parse("ADD R0\n")
	require.Error(t, err)
}

func TestParseRejectsImmediateInRegisterSlot(t *testing.T) {
	_, err := Parse("ADD 5, R1\n")
	require.Error(t, err)
}

func TestParseRejectsOutOfRangeNumber(t *testing.T) {
	_, err := Parse("PUSH 65536\n")
	require.Error(t, err)
}

func TestParseRejectsNegativeNumber(t *testing.T) {
	_, err := Parse("PUSH -1\n")
	require.Error(t, err)
}

func TestParseSkipsBlankLinesAndComments(t *testing.T) {
	src := "\n\n// a comment\nNOP\n\n// trailing\n"
	p, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())
	require.Equal(t, tpu.OpNOP, p.Instructions[0].Op)
}

func TestParseReportsOffendingLineNumber(t *testing.T) {
	src := "NOP\nNOP\nBOGUS\n"
	_, err := Parse(src)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 3, pe.Line)
}

func TestParseRejectedExplicitlyUnsupportedMnemonics(t *testing.T) {
	for _, mnemonic := range []string{"PUSHX", "POPX", "DPWH", "APWH", "TRS"} {
		_, ok := tpu.LookupMnemonic(mnemonic)
		require.False(t, ok, "%s must not be part of the normative opcode set", mnemonic)
	}
}
