package x86

import "math"

func fitsInt32(v int64) bool { return v >= math.MinInt32 && v <= math.MaxInt32 }

func isReg(op Operand) bool {
	_, ok := op.(Reg)
	return ok
}

func isImm(op Operand) bool {
	_, ok := op.(Imm)
	return ok
}

// largeImm reports whether op is an immediate that a quadword instruction other
// than mov cannot encode.
func largeImm(op Operand, t AsmType) bool {
	imm, ok := op.(Imm)
	return ok && t == Quadword && !fitsInt32(imm.V)
}

// fixInstructions rewrites the operand combinations x86-64 cannot encode,
// routing them through %r10, %r11, %xmm14 and %xmm15.
func fixInstructions(fn *Function) {
	out := make([]Instr, 0, len(fn.Instrs))
	for _, instr := range fn.Instrs {
		out = append(out, fix(instr)...)
	}
	fn.Instrs = out
}

func fix(instr Instr) []Instr {
	switch i := instr.(type) {
	case Mov:
		i.Src = truncImm(i.Src, i.T)
		switch {
		case i.T == Double && isMemory(i.Src) && isMemory(i.Dst):
			return []Instr{
				Mov{T: Double, Src: i.Src, Dst: Reg{XMM14}},
				Mov{T: Double, Src: Reg{XMM14}, Dst: i.Dst},
			}
		case isMemory(i.Src) && isMemory(i.Dst), largeImm(i.Src, i.T) && isMemory(i.Dst):
			return []Instr{
				Mov{T: i.T, Src: i.Src, Dst: Reg{R10}},
				Mov{T: i.T, Src: Reg{R10}, Dst: i.Dst},
			}
		}
		return []Instr{i}

	case Movsx:
		var out []Instr
		if isImm(i.Src) {
			out = append(out, Mov{T: i.SrcT, Src: truncImm(i.Src, i.SrcT), Dst: Reg{R10}})
			i.Src = Reg{R10}
		}
		if isMemory(i.Dst) {
			dst := i.Dst
			i.Dst = Reg{R11}
			return append(out, i, Mov{T: i.DstT, Src: Reg{R11}, Dst: dst})
		}
		return append(out, i)

	case MovZeroExtend:
		if i.SrcT == Longword {
			if isReg(i.Dst) {
				return []Instr{Mov{T: Longword, Src: i.Src, Dst: i.Dst}}
			}
			return []Instr{
				Mov{T: Longword, Src: i.Src, Dst: Reg{R11}},
				Mov{T: Quadword, Src: Reg{R11}, Dst: i.Dst},
			}
		}
		var out []Instr
		if isImm(i.Src) {
			out = append(out, Mov{T: i.SrcT, Src: truncImm(i.Src, i.SrcT), Dst: Reg{R10}})
			i.Src = Reg{R10}
		}
		if isMemory(i.Dst) {
			dst := i.Dst
			i.Dst = Reg{R11}
			return append(out, i, Mov{T: i.DstT, Src: Reg{R11}, Dst: dst})
		}
		return append(out, i)

	case Lea:
		if isMemory(i.Dst) {
			return []Instr{
				Lea{Src: i.Src, Dst: Reg{R11}},
				Mov{T: Quadword, Src: Reg{R11}, Dst: i.Dst},
			}
		}
		return []Instr{i}

	case Cvttsd2si:
		if isMemory(i.Dst) {
			return []Instr{
				Cvttsd2si{T: i.T, Src: i.Src, Dst: Reg{R11}},
				Mov{T: i.T, Src: Reg{R11}, Dst: i.Dst},
			}
		}
		return []Instr{i}

	case Cvtsi2sd:
		var out []Instr
		if isImm(i.Src) {
			out = append(out, Mov{T: i.T, Src: i.Src, Dst: Reg{R10}})
			i.Src = Reg{R10}
		}
		if isMemory(i.Dst) {
			dst := i.Dst
			i.Dst = Reg{XMM15}
			return append(out, i, Mov{T: Double, Src: Reg{XMM15}, Dst: dst})
		}
		return append(out, i)

	case Binary:
		if i.T == Double {
			if isReg(i.Dst) {
				return []Instr{i}
			}
			dst := i.Dst
			i.Dst = Reg{XMM15}
			return []Instr{
				Mov{T: Double, Src: dst, Dst: Reg{XMM15}},
				i,
				Mov{T: Double, Src: Reg{XMM15}, Dst: dst},
			}
		}
		var out []Instr
		switch i.Op {
		case Sal, Sar, Shr:
			return []Instr{i}
		case Mult:
			if largeImm(i.Src, i.T) {
				out = append(out, Mov{T: i.T, Src: i.Src, Dst: Reg{R10}})
				i.Src = Reg{R10}
			}
			if isMemory(i.Dst) {
				dst := i.Dst
				i.Dst = Reg{R11}
				return append(out,
					Mov{T: i.T, Src: dst, Dst: Reg{R11}},
					i,
					Mov{T: i.T, Src: Reg{R11}, Dst: dst},
				)
			}
			return append(out, i)
		}
		if largeImm(i.Src, i.T) || isMemory(i.Src) && isMemory(i.Dst) {
			out = append(out, Mov{T: i.T, Src: i.Src, Dst: Reg{R10}})
			i.Src = Reg{R10}
		}
		return append(out, i)

	case Cmp:
		if i.T == Double {
			if isReg(i.Dst) {
				return []Instr{i}
			}
			return []Instr{
				Mov{T: Double, Src: i.Dst, Dst: Reg{XMM15}},
				Cmp{T: Double, Src: i.Src, Dst: Reg{XMM15}},
			}
		}
		var out []Instr
		if largeImm(i.Src, i.T) || isMemory(i.Src) && isMemory(i.Dst) {
			out = append(out, Mov{T: i.T, Src: i.Src, Dst: Reg{R10}})
			i.Src = Reg{R10}
		}
		if isImm(i.Dst) {
			out = append(out, Mov{T: i.T, Src: truncImm(i.Dst, i.T), Dst: Reg{R11}})
			i.Dst = Reg{R11}
		}
		return append(out, i)

	case Idiv:
		if isImm(i.Src) {
			return []Instr{Mov{T: i.T, Src: i.Src, Dst: Reg{R10}}, Idiv{T: i.T, Src: Reg{R10}}}
		}
		return []Instr{i}

	case Div:
		if isImm(i.Src) {
			return []Instr{Mov{T: i.T, Src: i.Src, Dst: Reg{R10}}, Div{T: i.T, Src: Reg{R10}}}
		}
		return []Instr{i}

	case Push:
		if largeImm(i.Src, Quadword) {
			return []Instr{Mov{T: Quadword, Src: i.Src, Dst: Reg{R10}}, Push{Reg{R10}}}
		}
		return []Instr{i}
	}
	return []Instr{instr}
}
