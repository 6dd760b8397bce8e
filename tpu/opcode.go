package tpu

/*
	Opcode catalog for the Traffic Processing Unit.

	Each opcode carries a fixed arity and a per-slot operand category, either:

		CategoryRegister (R) - the slot must name one of A, X, Y, R0..R6
		CategoryAny       (#) - the slot may be a register or an immediate number

	The table below is the single source of truth for both the RGAL front end
	(rgal.Parse uses it to validate operand shapes) and the dispatcher (Step
	switches on Opcode and decodes operands it already knows are well formed).
*/

// Opcode identifies a single RGAL instruction.
type Opcode uint8

const (
	OpNOP Opcode = iota
	OpSCR
	OpRECV
	OpTXBS
	OpRXBS
	OpWRX
	OpHLT
	OpRTS

	OpPOP
	OpRSP
	OpNOT
	OpINC
	OpDEC
	OpDPRW

	OpPUSH
	OpDPWW
	OpJMP
	OpJPR
	OpJSR
	OpSLP

	OpPEEK
	OpXMIT
	OpLDR
	OpLDM
	OpDPR
	OpAPR

	OpBEZ
	OpBNZ
	OpBREZ
	OpBRNZ

	OpADD
	OpSUB
	OpMUL
	OpDIV
	OpMOD
	OpAND
	OpOR
	OpXOR
	OpRCY
	OpRMV

	OpSTM
	OpDPW
	OpAPW

	OpBEQ
	OpBNE
	OpBGE
	OpBLE
	OpBGT
	OpBLT
	OpBREQ
	OpBRNE
	OpBRGE
	OpBRLE
	OpBRGT
	OpBRLT

	OpSLL
	OpSLC
	OpSLR
	OpSRC
	OpROL
	OpROR

	OpSTMO
	OpSMOI

	OpLDO
	OpLDOI
)

// Category constrains what an operand slot may hold.
type Category uint8

const (
	// CategoryRegister requires a register name (A, X, Y, R0..R6).
	CategoryRegister Category = iota
	// CategoryAny accepts either a register name or an immediate number.
	CategoryAny
)

// operandShapes gives the per-slot category list for every opcode. An empty
// slice means the opcode is nullary.
var operandShapes = map[Opcode][]Category{
	OpNOP:  {},
	OpSCR:  {},
	OpRECV: {},
	OpTXBS: {},
	OpRXBS: {},
	OpWRX:  {},
	OpHLT:  {},
	OpRTS:  {},

	OpPOP:  {CategoryRegister},
	OpRSP:  {CategoryRegister},
	OpNOT:  {CategoryRegister},
	OpINC:  {CategoryRegister},
	OpDEC:  {CategoryRegister},
	OpDPRW: {CategoryRegister},

	OpPUSH: {CategoryAny},
	OpDPWW: {CategoryAny},
	OpJMP:  {CategoryAny},
	OpJPR:  {CategoryAny},
	OpJSR:  {CategoryAny},
	OpSLP:  {CategoryAny},

	OpPEEK: {CategoryRegister, CategoryAny},
	OpXMIT: {CategoryRegister, CategoryAny},
	OpLDR:  {CategoryRegister, CategoryAny},
	OpLDM:  {CategoryRegister, CategoryAny},
	OpDPR:  {CategoryRegister, CategoryAny},
	OpAPR:  {CategoryRegister, CategoryAny},

	OpBEZ:  {CategoryAny, CategoryRegister},
	OpBNZ:  {CategoryAny, CategoryRegister},
	OpBREZ: {CategoryAny, CategoryRegister},
	OpBRNZ: {CategoryAny, CategoryRegister},

	OpADD: {CategoryRegister, CategoryRegister},
	OpSUB: {CategoryRegister, CategoryRegister},
	OpMUL: {CategoryRegister, CategoryRegister},
	OpDIV: {CategoryRegister, CategoryRegister},
	OpMOD: {CategoryRegister, CategoryRegister},
	OpAND: {CategoryRegister, CategoryRegister},
	OpOR:  {CategoryRegister, CategoryRegister},
	OpXOR: {CategoryRegister, CategoryRegister},
	OpRCY: {CategoryRegister, CategoryRegister},
	OpRMV: {CategoryRegister, CategoryRegister},

	OpSTM: {CategoryAny, CategoryAny},
	OpDPW: {CategoryAny, CategoryAny},
	OpAPW: {CategoryAny, CategoryAny},

	OpBEQ:  {CategoryAny, CategoryRegister, CategoryAny},
	OpBNE:  {CategoryAny, CategoryRegister, CategoryAny},
	OpBGE:  {CategoryAny, CategoryRegister, CategoryAny},
	OpBLE:  {CategoryAny, CategoryRegister, CategoryAny},
	OpBGT:  {CategoryAny, CategoryRegister, CategoryAny},
	OpBLT:  {CategoryAny, CategoryRegister, CategoryAny},
	OpBREQ: {CategoryAny, CategoryRegister, CategoryAny},
	OpBRNE: {CategoryAny, CategoryRegister, CategoryAny},
	OpBRGE: {CategoryAny, CategoryRegister, CategoryAny},
	OpBRLE: {CategoryAny, CategoryRegister, CategoryAny},
	OpBRGT: {CategoryAny, CategoryRegister, CategoryAny},
	OpBRLT: {CategoryAny, CategoryRegister, CategoryAny},

	OpSLL: {CategoryRegister, CategoryRegister, CategoryAny},
	OpSLC: {CategoryRegister, CategoryRegister, CategoryAny},
	OpSLR: {CategoryRegister, CategoryRegister, CategoryAny},
	OpSRC: {CategoryRegister, CategoryRegister, CategoryAny},
	OpROL: {CategoryRegister, CategoryRegister, CategoryAny},
	OpROR: {CategoryRegister, CategoryRegister, CategoryAny},

	OpSTMO: {CategoryAny, CategoryAny, CategoryRegister},
	OpSMOI: {CategoryAny, CategoryAny, CategoryRegister},

	OpLDO:  {CategoryRegister, CategoryAny, CategoryRegister},
	OpLDOI: {CategoryRegister, CategoryAny, CategoryRegister},
}

// baseCost is the fixed cycle cost of an opcode before any register-penalty
// surcharges are applied. SLP does not use this table; its cost is derived
// directly from its operand (see Step).
var baseCost = map[Opcode]uint16{
	OpNOP: 2,

	OpSCR:  1,
	OpRECV: 2,
	OpTXBS: 1,
	OpRXBS: 1,
	OpWRX:  1,
	OpHLT:  1,
	OpRTS:  2,

	OpPOP:  1,
	OpRSP:  1,
	OpNOT:  1,
	OpINC:  1,
	OpDEC:  1,
	OpDPRW: 1,

	OpPUSH: 1,
	OpDPWW: 1,
	OpJMP:  1,
	OpJPR:  1,
	OpJSR:  1,

	OpPEEK: 1,
	OpXMIT: 1,
	OpLDR:  1,
	OpLDM:  1,
	OpDPR:  1,
	OpAPR:  1,

	OpBEZ:  1,
	OpBNZ:  1,
	OpBREZ: 1,
	OpBRNZ: 1,

	OpADD: 1,
	OpSUB: 1,
	OpMUL: 1,
	OpDIV: 1,
	OpMOD: 1,
	OpAND: 1,
	OpOR:  1,
	OpXOR: 1,
	OpRCY: 1,
	OpRMV: 1,

	OpSTM: 1,
	OpDPW: 1,
	OpAPW: 1,

	OpBEQ:  1,
	OpBNE:  1,
	OpBGE:  1,
	OpBLE:  1,
	OpBGT:  1,
	OpBLT:  1,
	OpBREQ: 1,
	OpBRNE: 1,
	OpBRGE: 1,
	OpBRLE: 1,
	OpBRGT: 1,
	OpBRLT: 1,

	OpSLL: 1,
	OpSLC: 1,
	OpSLR: 1,
	OpSRC: 1,
	OpROL: 1,
	OpROR: 1,

	OpSTMO: 1,
	OpSMOI: 1,

	OpLDO:  1,
	OpLDOI: 1,
}

var mnemonics = map[string]Opcode{
	"NOP": OpNOP, "SCR": OpSCR, "RECV": OpRECV, "TXBS": OpTXBS, "RXBS": OpRXBS,
	"WRX": OpWRX, "HLT": OpHLT, "RTS": OpRTS,

	"POP": OpPOP, "RSP": OpRSP, "NOT": OpNOT, "INC": OpINC, "DEC": OpDEC, "DPRW": OpDPRW,

	"PUSH": OpPUSH, "DPWW": OpDPWW, "JMP": OpJMP, "JPR": OpJPR, "JSR": OpJSR, "SLP": OpSLP,

	"PEEK": OpPEEK, "XMIT": OpXMIT, "LDR": OpLDR, "LDM": OpLDM, "DPR": OpDPR, "APR": OpAPR,

	"BEZ": OpBEZ, "BNZ": OpBNZ, "BREZ": OpBREZ, "BRNZ": OpBRNZ,

	"ADD": OpADD, "SUB": OpSUB, "MUL": OpMUL, "DIV": OpDIV, "MOD": OpMOD,
	"AND": OpAND, "OR": OpOR, "XOR": OpXOR, "RCY": OpRCY, "RMV": OpRMV,

	"STM": OpSTM, "DPW": OpDPW, "APW": OpAPW,

	"BEQ": OpBEQ, "BNE": OpBNE, "BGE": OpBGE, "BLE": OpBLE, "BGT": OpBGT, "BLT": OpBLT,
	"BREQ": OpBREQ, "BRNE": OpBRNE, "BRGE": OpBRGE, "BRLE": OpBRLE, "BRGT": OpBRGT, "BRLT": OpBRLT,

	"SLL": OpSLL, "SLC": OpSLC, "SLR": OpSLR, "SRC": OpSRC, "ROL": OpROL, "ROR": OpROR,

	"STMO": OpSTMO, "SMOI": OpSMOI,

	"LDO": OpLDO, "LDOI": OpLDOI,
}

var mnemonicStrings map[Opcode]string

func init() {
	mnemonicStrings = make(map[Opcode]string, len(mnemonics))
	for s, op := range mnemonics {
		mnemonicStrings[op] = s
	}
}

// String renders the canonical RGAL mnemonic for op.
func (op Opcode) String() string {
	if s, ok := mnemonicStrings[op]; ok {
		return s
	}
	return "?unknown?"
}

// Shape returns the operand category for each slot the opcode accepts.
func (op Opcode) Shape() []Category {
	return operandShapes[op]
}

// Arity is the number of operands the opcode requires.
func (op Opcode) Arity() int {
	return len(operandShapes[op])
}

// LookupMnemonic resolves a source-level mnemonic (case sensitive, upper
// case as written in RGAL source) to its Opcode.
func LookupMnemonic(s string) (Opcode, bool) {
	op, ok := mnemonics[s]
	return op, ok
}

// isRelativeBranch reports whether op computes its target as PC+delta
// instead of treating the operand as an absolute line number.
func isRelativeBranch(op Opcode) bool {
	switch op {
	case OpJPR, OpBREZ, OpBRNZ, OpBREQ, OpBRNE, OpBRGE, OpBRLE, OpBRGT, OpBRLT:
		return true
	default:
		return false
	}
}
