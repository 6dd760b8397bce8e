package tpu

// Step fetches the instruction at PC, executes it, updates VM state and
// returns the number of cycles consumed. If the VM is halted, Step is a
// no-op returning 0.
func (vm *VM) Step() uint32 {
	if vm.halted {
		return 0
	}

	instr, ok := vm.program.At(vm.pc)
	if !ok {
		vm.fail(FaultRomOutOfBounds)
		return 0
	}

	vm.penalty = 0
	cycles := vm.dispatch(instr)
	vm.cycles += uint64(cycles)
	return uint32(cycles)
}

// readOperand resolves an operand's value. Every register-valued read adds
// one cycle to the pending instruction's penalty, exactly once per read.
func (vm *VM) readOperand(op Operand) uint16 {
	if op.IsRegister {
		vm.penalty++
		return vm.registers[op.Register]
	}
	return op.Immediate
}

func (vm *VM) writeRegister(r Register, v uint16) {
	vm.registers[r] = v
}

func (vm *VM) checkPin(v uint16) (uint8, bool) {
	if v > 15 {
		vm.fail(FaultPinOutOfBounds)
		return 0, false
	}
	return uint8(v), true
}

func (vm *VM) checkRAM(addr uint32) (uint16, bool) {
	if addr >= ramCapacity {
		vm.fail(FaultRamOutOfBounds)
		return 0, false
	}
	return uint16(addr), true
}

func (vm *VM) push(v uint16) bool {
	if vm.sp >= stackCapacity {
		vm.fail(FaultStackOverflow)
		return false
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return true
}

func (vm *VM) pop() uint16 {
	if vm.sp == 0 {
		return 0
	}
	vm.sp--
	return vm.stack[vm.sp]
}

// advance moves PC forward by one instruction, accounting for the
// terminal out-of-bounds line (len(ROM)) being a legal PC value that only
// faults on the next fetch.
func (vm *VM) advance() {
	vm.pc++
}

// branchTo validates and applies a relative branch target. delta is added
// to the current PC with no modular wrap; a result outside the program
// faults immediately, at the branching instruction's own line.
func (vm *VM) branchTo(delta uint16) {
	target := uint32(vm.pc) + uint32(delta)
	if vm.program.Len() == 0 || target > uint32(vm.program.Len()-1) {
		vm.fail(FaultRomOutOfBounds)
		return
	}
	vm.pc = uint16(target)
}

func (vm *VM) dispatch(instr Instruction) uint16 {
	op := instr.Op
	ops := instr.Operands
	base := baseCost[op]

	switch op {
	case OpNOP:
		vm.advance()
		return base

	case OpHLT:
		vm.fail(FaultExplicitHalt)
		return base

	case OpSCR:
		vm.sp = 0
		vm.advance()
		return base

	case OpRSP:
		vm.writeRegister(ops[0].Register, vm.sp)
		vm.advance()
		return base

	case OpPOP:
		vm.writeRegister(ops[0].Register, vm.pop())
		vm.advance()
		return base

	case OpPEEK:
		i := vm.readOperand(ops[1])
		idx := int(vm.sp) - 1 - int(i)
		if idx < 0 || idx >= int(vm.sp) {
			vm.fail(FaultStackUnderflow)
			return base + vm.penalty
		}
		vm.writeRegister(ops[0].Register, vm.stack[idx])
		vm.advance()
		return base + vm.penalty

	case OpPUSH:
		v := vm.readOperand(ops[0])
		if !vm.push(v) {
			return base + vm.penalty
		}
		vm.advance()
		return base + vm.penalty

	case OpJSR:
		target := vm.readOperand(ops[0])
		if !vm.push(vm.pc) {
			return base + vm.penalty
		}
		if int(target) >= vm.program.Len() {
			vm.fail(FaultRomOutOfBounds)
			return base + vm.penalty
		}
		vm.pc = target
		return base + vm.penalty

	case OpRTS:
		if vm.sp == 0 {
			vm.fail(FaultStackUnderflow)
			return base
		}
		ret := vm.pop()
		vm.pc = ret + 1
		return base

	case OpJMP:
		vm.pc = vm.readOperand(ops[0])
		return base + vm.penalty

	case OpJPR:
		delta := vm.readOperand(ops[0])
		vm.branchTo(delta)
		return base + vm.penalty

	case OpBEZ, OpBNZ:
		target := vm.readOperand(ops[0])
		v := vm.readOperand(ops[1])
		taken := (op == OpBEZ && v == 0) || (op == OpBNZ && v != 0)
		if taken {
			vm.pc = target
		} else {
			vm.advance()
		}
		return base + vm.penalty

	case OpBREZ, OpBRNZ:
		delta := vm.readOperand(ops[0])
		v := vm.readOperand(ops[1])
		taken := (op == OpBREZ && v == 0) || (op == OpBRNZ && v != 0)
		if taken {
			vm.branchTo(delta)
		} else {
			vm.advance()
		}
		return base + vm.penalty

	case OpBEQ, OpBNE, OpBGE, OpBLE, OpBGT, OpBLT:
		target := vm.readOperand(ops[0])
		lhs := vm.readOperand(ops[1])
		rhs := vm.readOperand(ops[2])
		if compareTaken(op, lhs, rhs) {
			vm.pc = target
		} else {
			vm.advance()
		}
		return base + vm.penalty

	case OpBREQ, OpBRNE, OpBRGE, OpBRLE, OpBRGT, OpBRLT:
		delta := vm.readOperand(ops[0])
		lhs := vm.readOperand(ops[1])
		rhs := vm.readOperand(ops[2])
		if compareTaken(relativeToAbsolute(op), lhs, rhs) {
			vm.branchTo(delta)
		} else {
			vm.advance()
		}
		return base + vm.penalty

	case OpADD:
		a, b := vm.readOperand(ops[0]), vm.readOperand(ops[1])
		vm.writeRegister(RegA, a+b)
		vm.advance()
		return base + vm.penalty
	case OpSUB:
		a, b := vm.readOperand(ops[0]), vm.readOperand(ops[1])
		vm.writeRegister(RegA, a-b)
		vm.advance()
		return base + vm.penalty
	case OpMUL:
		a, b := vm.readOperand(ops[0]), vm.readOperand(ops[1])
		vm.writeRegister(RegA, a*b)
		vm.advance()
		return base + vm.penalty
	case OpDIV:
		a, b := vm.readOperand(ops[0]), vm.readOperand(ops[1])
		if b == 0 {
			vm.fail(FaultDivideByZero)
			return base + vm.penalty
		}
		vm.writeRegister(RegA, a/b)
		vm.writeRegister(RegX, a%b)
		vm.advance()
		return base + vm.penalty
	case OpMOD:
		a, b := vm.readOperand(ops[0]), vm.readOperand(ops[1])
		if b == 0 {
			vm.fail(FaultDivideByZero)
			return base + vm.penalty
		}
		vm.writeRegister(RegA, a%b)
		vm.advance()
		return base + vm.penalty
	case OpAND:
		a, b := vm.readOperand(ops[0]), vm.readOperand(ops[1])
		vm.writeRegister(RegA, a&b)
		vm.advance()
		return base + vm.penalty
	case OpOR:
		a, b := vm.readOperand(ops[0]), vm.readOperand(ops[1])
		vm.writeRegister(RegA, a|b)
		vm.advance()
		return base + vm.penalty
	case OpXOR:
		a, b := vm.readOperand(ops[0]), vm.readOperand(ops[1])
		vm.writeRegister(RegA, a^b)
		vm.advance()
		return base + vm.penalty
	case OpNOT:
		a := vm.readOperand(ops[0])
		vm.writeRegister(RegA, ^a)
		vm.advance()
		return base + vm.penalty
	case OpINC:
		r := ops[0].Register
		vm.writeRegister(r, vm.readOperand(ops[0])+1)
		vm.advance()
		return base + vm.penalty
	case OpDEC:
		r := ops[0].Register
		vm.writeRegister(r, vm.readOperand(ops[0])-1)
		vm.advance()
		return base + vm.penalty
	case OpRCY:
		v := vm.readOperand(ops[1])
		vm.writeRegister(ops[0].Register, v)
		vm.advance()
		return base + vm.penalty
	case OpRMV:
		src := ops[1].Register
		v := vm.readOperand(ops[1])
		vm.writeRegister(ops[0].Register, v)
		vm.writeRegister(src, 0)
		vm.advance()
		return base + vm.penalty

	case OpSLL, OpSLR, OpSLC, OpSRC:
		src := vm.readOperand(ops[1])
		count := vm.readOperand(ops[2]) % 16
		result, carry := shiftWithCarry(op, src, count)
		vm.writeRegister(ops[0].Register, result)
		if op == OpSLC || op == OpSRC {
			vm.writeRegister(RegA, carry)
		}
		vm.advance()
		return base + vm.penalty
	case OpROL, OpROR:
		src := vm.readOperand(ops[1])
		count := vm.readOperand(ops[2]) % 16
		vm.writeRegister(ops[0].Register, rotate(op, src, count))
		vm.advance()
		return base + vm.penalty

	case OpLDR:
		v := vm.readOperand(ops[1])
		vm.writeRegister(ops[0].Register, v)
		vm.advance()
		return base + vm.penalty
	case OpLDM:
		addr := vm.readOperand(ops[1])
		idx, ok := vm.checkRAM(uint32(addr))
		if !ok {
			return base + vm.penalty
		}
		vm.writeRegister(ops[0].Register, vm.ram[idx])
		vm.advance()
		return base + vm.penalty
	case OpSTM:
		addr := vm.readOperand(ops[0])
		val := vm.readOperand(ops[1])
		idx, ok := vm.checkRAM(uint32(addr))
		if !ok {
			return base + vm.penalty
		}
		vm.ram[idx] = val
		vm.advance()
		return base + vm.penalty
	case OpLDO, OpLDOI:
		base16 := vm.readOperand(ops[1])
		offReg := ops[2].Register
		off := vm.readOperand(ops[2])
		idx, ok := vm.checkRAM(uint32(base16) + uint32(off))
		if !ok {
			return base + vm.penalty
		}
		vm.writeRegister(ops[0].Register, vm.ram[idx])
		if op == OpLDOI {
			vm.writeRegister(offReg, off+1)
		}
		vm.advance()
		return base + vm.penalty
	case OpSTMO, OpSMOI:
		addr := vm.readOperand(ops[0])
		val := vm.readOperand(ops[1])
		offReg := ops[2].Register
		off := vm.readOperand(ops[2])
		idx, ok := vm.checkRAM(uint32(addr) + uint32(off))
		if !ok {
			return base + vm.penalty
		}
		vm.ram[idx] = val
		if op == OpSMOI {
			vm.writeRegister(offReg, off+1)
		}
		vm.advance()
		return base + vm.penalty

	case OpDPW:
		pinVal := vm.readOperand(ops[0])
		v := vm.readOperand(ops[1])
		pin, ok := vm.checkPin(pinVal)
		if !ok {
			return base + vm.penalty
		}
		vm.bus.DigitalWrite(pin, v != 0)
		vm.advance()
		return base + vm.penalty
	case OpDPR:
		pinVal := vm.readOperand(ops[1])
		pin, ok := vm.checkPin(pinVal)
		if !ok {
			return base + vm.penalty
		}
		var v uint16
		if vm.bus.DigitalRead(pin) {
			v = 1
		}
		vm.writeRegister(ops[0].Register, v)
		vm.advance()
		return base + vm.penalty
	case OpDPWW:
		mask := vm.readOperand(ops[0])
		vm.bus.DigitalWriteWord(mask)
		vm.advance()
		return base + vm.penalty
	case OpDPRW:
		vm.writeRegister(ops[0].Register, vm.bus.DigitalReadWord())
		vm.advance()
		return base
	case OpAPW:
		pinVal := vm.readOperand(ops[0])
		v := vm.readOperand(ops[1])
		pin, ok := vm.checkPin(pinVal)
		if !ok {
			return base + vm.penalty
		}
		vm.bus.AnalogWrite(pin, v)
		vm.advance()
		return base + vm.penalty
	case OpAPR:
		pinVal := vm.readOperand(ops[1])
		pin, ok := vm.checkPin(pinVal)
		if !ok {
			return base + vm.penalty
		}
		vm.writeRegister(ops[0].Register, vm.bus.AnalogRead(pin))
		vm.advance()
		return base + vm.penalty

	case OpXMIT:
		addr := vm.readOperand(ops[0])
		v := vm.readOperand(ops[1])
		vm.bus.TxPush(addr, v)
		vm.advance()
		return base + vm.penalty
	case OpRECV:
		pkt, ok := vm.bus.RxPop()
		if !ok {
			vm.writeRegister(RegX, 0)
			vm.writeRegister(RegY, 0)
		} else {
			vm.writeRegister(RegX, pkt.Addr)
			vm.writeRegister(RegY, pkt.Data)
		}
		vm.advance()
		return base
	case OpTXBS:
		vm.writeRegister(RegX, vm.bus.TxLen())
		vm.advance()
		return base
	case OpRXBS:
		vm.writeRegister(RegX, vm.bus.RxLen())
		vm.advance()
		return base
	case OpWRX:
		if vm.bus.RxLen() == 0 {
			return base
		}
		vm.advance()
		return base

	case OpSLP:
		n := vm.readOperand(ops[0])
		total := uint32(2) + uint32(n) + uint32(vm.penalty)
		if total > MaxSleepCycles {
			total = MaxSleepCycles
		}
		vm.advance()
		return uint16(total)

	default:
		vm.fail(FaultRomOutOfBounds)
		return base
	}
}

func compareTaken(op Opcode, lhs, rhs uint16) bool {
	switch op {
	case OpBEQ:
		return lhs == rhs
	case OpBNE:
		return lhs != rhs
	case OpBGE:
		return lhs >= rhs
	case OpBLE:
		return lhs <= rhs
	case OpBGT:
		return lhs > rhs
	case OpBLT:
		return lhs < rhs
	default:
		return false
	}
}

// relativeToAbsolute maps a BR*-family opcode to the absolute comparison it
// shares its condition with, so compareTaken only needs one implementation.
func relativeToAbsolute(op Opcode) Opcode {
	switch op {
	case OpBREQ:
		return OpBEQ
	case OpBRNE:
		return OpBNE
	case OpBRGE:
		return OpBGE
	case OpBRLE:
		return OpBLE
	case OpBRGT:
		return OpBGT
	case OpBRLT:
		return OpBLT
	default:
		return op
	}
}

func shiftWithCarry(op Opcode, v, count uint16) (result uint16, carry uint16) {
	if count == 0 {
		return v, 0
	}
	switch op {
	case OpSLL, OpSLC:
		result = v << count
		carry = v >> (16 - count)
	case OpSLR, OpSRC:
		result = v >> count
		carry = v << (16 - count) >> (16 - count)
	}
	return result, carry
}

func rotate(op Opcode, v, count uint16) uint16 {
	if count == 0 {
		return v
	}
	switch op {
	case OpROL:
		return (v << count) | (v >> (16 - count))
	case OpROR:
		return (v >> count) | (v << (16 - count))
	default:
		return v
	}
}
