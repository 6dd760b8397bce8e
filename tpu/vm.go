// Package tpu implements the Traffic Processing Unit: a deterministic,
// cycle-counted 16-bit virtual machine. A VM is constructed from a decoded
// Program and a Bus, then driven one instruction at a time via Step.
package tpu

const (
	stackCapacity = 16
	ramCapacity   = 128
	// MaxSleepCycles clamps SLP so an infinite sleep can never be
	// requested; 65535 is the natural ceiling for a 16-bit operand.
	MaxSleepCycles = 65535
)

// VM is one Traffic Processing Unit core. It owns its registers, stack,
// RAM and program image; the Bus is injected and may be shared with a
// network Hub so several VMs can exchange packets.
type VM struct {
	registers [numRegisters]uint16
	stack     [stackCapacity]uint16
	sp        uint16
	ram       [ramCapacity]uint16
	pc        uint16

	program *Program
	bus     Bus

	halted    bool
	fault     FaultKind
	faultLine uint16
	cycles    uint64

	// set while evaluating the operands of the instruction currently being
	// stepped; readOperand adds to it, Step folds it into the base cost.
	penalty uint16
}

// NewVM constructs a halted-free VM ready to execute program from line 0.
// All registers, RAM and the stack start zeroed.
func NewVM(program *Program, bus Bus) *VM {
	vm := &VM{program: program, bus: bus}
	return vm
}

// Reset restores the VM to its initial lifecycle state: zeroed registers,
// RAM and stack, SP=0, PC=0, halt cleared, cycles cleared. It is legal to
// call Reset on a running or halted VM.
func (vm *VM) Reset() {
	vm.registers = [numRegisters]uint16{}
	vm.stack = [stackCapacity]uint16{}
	vm.ram = [ramCapacity]uint16{}
	vm.sp = 0
	vm.pc = 0
	vm.halted = false
	vm.fault = FaultNone
	vm.faultLine = 0
	vm.cycles = 0
}

// IsHalted reports whether the VM has stopped (fault or explicit HLT).
func (vm *VM) IsHalted() bool { return vm.halted }

// FaultLine returns the line the VM halted at and whether a fault (or HLT)
// has actually occurred; it is the zero value, false before that.
func (vm *VM) FaultLine() (uint16, bool) {
	if !vm.halted {
		return 0, false
	}
	return vm.faultLine, true
}

// FaultKind returns the reason the VM halted, or FaultNone if still running.
func (vm *VM) FaultKind() FaultKind { return vm.fault }

// Cycles returns the running total of cycles consumed since the last Reset.
func (vm *VM) Cycles() uint64 { return vm.cycles }

// ReadRegister returns the current value of a register for inspection.
func (vm *VM) ReadRegister(r Register) uint16 { return vm.registers[r] }

// ReadRAM returns the value at a RAM address for inspection. Addresses
// outside 0..=127 return 0 rather than panicking; callers that need the
// bounds fault should drive it through program execution instead.
func (vm *VM) ReadRAM(addr uint16) uint16 {
	if int(addr) >= ramCapacity {
		return 0
	}
	return vm.ram[addr]
}

// ReadStack returns the stack slot at index i (0 is the bottom of the
// occupied region, sp-1 is the top). Out-of-range indices return 0.
func (vm *VM) ReadStack(i uint16) uint16 {
	if i >= vm.sp || int(i) >= stackCapacity {
		return 0
	}
	return vm.stack[i]
}

// ReadPC returns the program counter.
func (vm *VM) ReadPC() uint16 { return vm.pc }

// ReadSP returns the stack pointer.
func (vm *VM) ReadSP() uint16 { return vm.sp }

func (vm *VM) fail(kind FaultKind) {
	vm.halted = true
	vm.fault = kind
	vm.faultLine = vm.pc
}
