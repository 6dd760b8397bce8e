package tpu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func prog(instrs ...Instruction) *Program {
	return &Program{Instructions: instrs}
}

func runToHalt(t *testing.T, vm *VM, maxSteps int) {
	t.Helper()
	for i := 0; i < maxSteps; i++ {
		if vm.IsHalted() {
			return
		}
		vm.Step()
	}
	t.Fatalf("program did not halt within %d steps", maxSteps)
}

func TestBlinkTogglesDigitalPinAndWraps(t *testing.T) {
	// LDR R0, 0 ; DPW 0, R0 ; XOR R0, R0 would not toggle anything (XOR
	// writes its result to A, and R0 XOR R0 is always 0), so the blink
	// program toggles A via NOT and writes it straight to pin 0 each pass,
	// wrapping with a JMP.
	p := prog(
		Instruction{Op: OpNOT, Operands: [3]Operand{RegOperand(RegA)}},
		Instruction{Op: OpDPW, Operands: [3]Operand{ImmOperand(0), RegOperand(RegA)}},
		Instruction{Op: OpJMP, Operands: [3]Operand{ImmOperand(0)}},
	)
	bus := NewSimBus(0)
	vm := NewVM(p, bus)

	for i := 0; i < 6; i++ {
		vm.Step()
		switch i {
		case 1:
			require.True(t, bus.DigitalRead(0), "first pass drives pin 0 high")
		case 4:
			require.False(t, bus.DigitalRead(0), "second pass drives pin 0 low")
		}
	}
	require.False(t, vm.IsHalted())
}

func TestCounterWithWrap(t *testing.T) {
	p := prog(
		Instruction{Op: OpINC, Operands: [3]Operand{RegOperand(RegR0)}},
		Instruction{Op: OpJMP, Operands: [3]Operand{ImmOperand(0)}},
	)
	vm := NewVM(p, NewSimBus(0))
	for i := 0; i < 131072; i++ {
		vm.Step()
	}
	require.Equal(t, uint16(0), vm.ReadRegister(RegR0))
}

func TestSubroutineCallAndReturn(t *testing.T) {
	p := prog(
		Instruction{Op: OpJSR, Operands: [3]Operand{ImmOperand(3)}}, // 0
		Instruction{Op: OpHLT},                                      // 1
		Instruction{Op: OpHLT},                                      // 2
		Instruction{Op: OpLDR, Operands: [3]Operand{RegOperand(RegR0), ImmOperand(7)}}, // 3
		Instruction{Op: OpRTS}, // 4
	)
	vm := NewVM(p, NewSimBus(0))
	runToHalt(t, vm, 16)

	require.Equal(t, uint16(7), vm.ReadRegister(RegR0))
	require.Equal(t, FaultExplicitHalt, vm.FaultKind())
	line, ok := vm.FaultLine()
	require.True(t, ok)
	require.Equal(t, uint16(1), line)
	require.Equal(t, uint16(0), vm.ReadSP())
}

func TestDivideByZeroFaults(t *testing.T) {
	p := prog(
		Instruction{Op: OpLDR, Operands: [3]Operand{RegOperand(RegR0), ImmOperand(10)}},
		Instruction{Op: OpLDR, Operands: [3]Operand{RegOperand(RegR1), ImmOperand(0)}},
		Instruction{Op: OpDIV, Operands: [3]Operand{RegOperand(RegR0), RegOperand(RegR1)}},
	)
	vm := NewVM(p, NewSimBus(0))
	runToHalt(t, vm, 16)

	require.Equal(t, FaultDivideByZero, vm.FaultKind())
	line, ok := vm.FaultLine()
	require.True(t, ok)
	require.Equal(t, uint16(2), line)
	require.Equal(t, uint16(0), vm.ReadRegister(RegA))
}

func TestNetworkEcho(t *testing.T) {
	// TPU A: WRX ; RECV ; XMIT X, Y
	progA := prog(
		Instruction{Op: OpWRX},
		Instruction{Op: OpRECV},
		Instruction{Op: OpXMIT, Operands: [3]Operand{RegOperand(RegX), RegOperand(RegY)}},
	)
	busA := NewSimBus(0)
	busB := NewSimBus(0)
	vmA := NewVM(progA, busA)

	const addrA, addrB = 1, 2
	hub := NewHub()
	hub.Join(addrA, busA)
	hub.Join(addrB, busB)

	require.True(t, busB.TxPush(addrA, 42))
	hub.Pump()

	// WRX now sees a non-empty rx and falls through without advancing the
	// program past it on the starved step.
	vmA.Step() // WRX succeeds, rx non-empty
	vmA.Step() // RECV
	vmA.Step() // XMIT X, Y
	hub.Pump()

	// A addressed the echo to B (X held addrB); the hub stamps the delivered
	// packet with the sender's address, so B sees addrA.
	pkt, ok := busB.RxPop()
	require.True(t, ok)
	require.Equal(t, uint16(addrA), pkt.Addr)
	require.Equal(t, uint16(42), pkt.Data)
}

func TestRAMOffsetStoreLoad(t *testing.T) {
	p := prog(
		Instruction{Op: OpLDR, Operands: [3]Operand{RegOperand(RegX), ImmOperand(0)}},
		Instruction{Op: OpSTMO, Operands: [3]Operand{ImmOperand(10), ImmOperand(99), RegOperand(RegX)}},
		Instruction{Op: OpLDO, Operands: [3]Operand{RegOperand(RegR0), ImmOperand(10), RegOperand(RegX)}},
	)
	vm := NewVM(p, NewSimBus(0))
	vm.Step()
	vm.Step()
	vm.Step()
	require.False(t, vm.IsHalted())
	require.Equal(t, uint16(99), vm.ReadRegister(RegR0))

	p2 := prog(
		Instruction{Op: OpLDR, Operands: [3]Operand{RegOperand(RegX), ImmOperand(128)}},
		Instruction{Op: OpSTMO, Operands: [3]Operand{ImmOperand(10), ImmOperand(99), RegOperand(RegX)}},
	)
	vm2 := NewVM(p2, NewSimBus(0))
	vm2.Step()
	vm2.Step()
	require.True(t, vm2.IsHalted())
	require.Equal(t, FaultRamOutOfBounds, vm2.FaultKind())
}

func TestPushOverflowFaultsOnSeventeenth(t *testing.T) {
	instrs := make([]Instruction, 0, 17)
	for i := 0; i < 17; i++ {
		instrs = append(instrs, Instruction{Op: OpPUSH, Operands: [3]Operand{ImmOperand(5)}})
	}
	p := prog(instrs...)
	vm := NewVM(p, NewSimBus(0))
	for i := 0; i < 16; i++ {
		vm.Step()
		require.False(t, vm.IsHalted())
	}
	vm.Step()
	require.True(t, vm.IsHalted())
	require.Equal(t, FaultStackOverflow, vm.FaultKind())
}

func TestPopOnEmptyStackReturnsZeroNotFault(t *testing.T) {
	p := prog(Instruction{Op: OpPOP, Operands: [3]Operand{RegOperand(RegR0)}})
	vm := NewVM(p, NewSimBus(0))
	vm.Step()
	require.False(t, vm.IsHalted())
	require.Equal(t, uint16(0), vm.ReadRegister(RegR0))
}

func TestPeekOnEmptyStackFaults(t *testing.T) {
	p := prog(Instruction{Op: OpPEEK, Operands: [3]Operand{RegOperand(RegR0), ImmOperand(0)}})
	vm := NewVM(p, NewSimBus(0))
	vm.Step()
	require.True(t, vm.IsHalted())
	require.Equal(t, FaultStackUnderflow, vm.FaultKind())
}

func TestSubtractionWraps(t *testing.T) {
	p := prog(
		Instruction{Op: OpLDR, Operands: [3]Operand{RegOperand(RegR0), ImmOperand(0)}},
		Instruction{Op: OpLDR, Operands: [3]Operand{RegOperand(RegR1), ImmOperand(1)}},
		Instruction{Op: OpSUB, Operands: [3]Operand{RegOperand(RegR0), RegOperand(RegR1)}},
	)
	vm := NewVM(p, NewSimBus(0))
	vm.Step()
	vm.Step()
	vm.Step()
	require.Equal(t, uint16(65535), vm.ReadRegister(RegA))
}

func TestLDMBoundary(t *testing.T) {
	ok := prog(Instruction{Op: OpLDM, Operands: [3]Operand{RegOperand(RegR0), ImmOperand(127)}})
	vm := NewVM(ok, NewSimBus(0))
	vm.Step()
	require.False(t, vm.IsHalted())

	bad := prog(Instruction{Op: OpLDM, Operands: [3]Operand{RegOperand(RegR0), ImmOperand(128)}})
	vm2 := NewVM(bad, NewSimBus(0))
	vm2.Step()
	require.True(t, vm2.IsHalted())
	require.Equal(t, FaultRamOutOfBounds, vm2.FaultKind())
}

func TestJumpPastEndOfROMFaults(t *testing.T) {
	p := prog(Instruction{Op: OpJMP, Operands: [3]Operand{ImmOperand(65535)}})
	vm := NewVM(p, NewSimBus(0))
	vm.Step() // sets PC, does not itself fault
	require.False(t, vm.IsHalted())
	vm.Step() // fetch at the bad PC faults
	require.True(t, vm.IsHalted())
	require.Equal(t, FaultRomOutOfBounds, vm.FaultKind())
}

func TestRTSWithoutJSRFaults(t *testing.T) {
	p := prog(Instruction{Op: OpRTS})
	vm := NewVM(p, NewSimBus(0))
	vm.Step()
	require.True(t, vm.IsHalted())
	require.Equal(t, FaultStackUnderflow, vm.FaultKind())
}

func TestDivRemainderConvention(t *testing.T) {
	p := prog(
		Instruction{Op: OpLDR, Operands: [3]Operand{RegOperand(RegR0), ImmOperand(17)}},
		Instruction{Op: OpLDR, Operands: [3]Operand{RegOperand(RegR1), ImmOperand(5)}},
		Instruction{Op: OpDIV, Operands: [3]Operand{RegOperand(RegR0), RegOperand(RegR1)}},
	)
	vm := NewVM(p, NewSimBus(0))
	vm.Step()
	vm.Step()
	vm.Step()
	require.Equal(t, uint16(3), vm.ReadRegister(RegA))
	require.Equal(t, uint16(2), vm.ReadRegister(RegX))
}

func TestPushBEQCycleCosts(t *testing.T) {
	// PUSH of an immediate costs just the base; PUSH of a register adds the
	// one-cycle register-read penalty.
	immPush := prog(Instruction{Op: OpPUSH, Operands: [3]Operand{ImmOperand(1)}})
	vm := NewVM(immPush, NewSimBus(0))
	require.Equal(t, uint32(1), vm.Step())

	regPush := prog(
		Instruction{Op: OpLDR, Operands: [3]Operand{RegOperand(RegR0), ImmOperand(1)}},
		Instruction{Op: OpPUSH, Operands: [3]Operand{RegOperand(RegR0)}},
	)
	vm2 := NewVM(regPush, NewSimBus(0))
	vm2.Step()
	require.Equal(t, uint32(2), vm2.Step())

	// BEQ reads the required register and both operands, up to 3 register
	// reads plus the base cost of 1, topping out at 4.
	beq := prog(
		Instruction{Op: OpLDR, Operands: [3]Operand{RegOperand(RegR0), ImmOperand(5)}},
		Instruction{Op: OpLDR, Operands: [3]Operand{RegOperand(RegR1), ImmOperand(5)}},
		Instruction{Op: OpLDR, Operands: [3]Operand{RegOperand(RegR2), ImmOperand(0)}},
		Instruction{Op: OpBEQ, Operands: [3]Operand{RegOperand(RegR2), RegOperand(RegR0), RegOperand(RegR1)}},
	)
	vm3 := NewVM(beq, NewSimBus(0))
	vm3.Step()
	vm3.Step()
	vm3.Step()
	require.Equal(t, uint32(4), vm3.Step())
}

func TestResetClearsState(t *testing.T) {
	p := prog(Instruction{Op: OpLDR, Operands: [3]Operand{RegOperand(RegR0), ImmOperand(9)}})
	vm := NewVM(p, NewSimBus(0))
	vm.Step()
	require.Equal(t, uint16(9), vm.ReadRegister(RegR0))

	vm.Reset()
	require.Equal(t, uint16(0), vm.ReadRegister(RegR0))
	require.Equal(t, uint16(0), vm.ReadPC())
	require.False(t, vm.IsHalted())
	require.Equal(t, uint64(0), vm.Cycles())
}
