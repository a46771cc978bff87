package bitblast

import (
	"github.com/go-air/gini/z"
)

func (b *Backend) xor(x, y z.Lit) z.Lit {
	return b.c.Or(b.c.And(x, y.Not()), b.c.And(x.Not(), y))
}

// ite returns t if cond holds, otherwise e.
func (b *Backend) ite(cond, t, e z.Lit) z.Lit {
	return b.c.Or(b.c.And(cond, t), b.c.And(cond.Not(), e))
}

func (b *Backend) iteBits(cond z.Lit, t, e []z.Lit) []z.Lit {
	out := make([]z.Lit, len(t))
	for i := range t {
		out[i] = b.ite(cond, t[i], e[i])
	}
	return out
}

func (b *Backend) extend(src []z.Lit, width uint, fill z.Lit) []z.Lit {
	out := make([]z.Lit, width)
	copy(out, src)
	for i := len(src); i < int(width); i++ {
		out[i] = fill
	}
	return out
}

func (b *Backend) not(src []z.Lit) []z.Lit {
	out := make([]z.Lit, len(src))
	for i := range src {
		out[i] = src[i].Not()
	}
	return out
}

func (b *Backend) bitwise(lhs, rhs []z.Lit, fn func(x, y z.Lit) z.Lit) []z.Lit {
	out := make([]z.Lit, len(lhs))
	for i := range lhs {
		out[i] = fn(lhs[i], rhs[i])
	}
	return out
}

// add returns the ripple-carry sum of lhs & rhs and the final carry.
func (b *Backend) add(lhs, rhs []z.Lit, carry z.Lit) ([]z.Lit, z.Lit) {
	out := make([]z.Lit, len(lhs))
	for i := range lhs {
		x, y := lhs[i], rhs[i]
		out[i] = b.xor(b.xor(x, y), carry)
		carry = b.c.Or(b.c.And(x, y), b.c.And(carry, b.xor(x, y)))
	}
	return out, carry
}

func (b *Backend) sub(lhs, rhs []z.Lit) []z.Lit {
	diff, _ := b.add(lhs, b.not(rhs), b.c.T)
	return diff
}

func (b *Backend) neg(src []z.Lit) []z.Lit {
	return b.sub(b.constant(0, uint(len(src))), src)
}

// mul returns the low bits of the shift-add product.
func (b *Backend) mul(lhs, rhs []z.Lit) []z.Lit {
	n := len(lhs)
	acc := b.constant(0, uint(n))
	for i := 0; i < n; i++ {
		partial := make([]z.Lit, n)
		for j := 0; j < n; j++ {
			if j < i {
				partial[j] = b.c.F
			} else {
				partial[j] = b.c.And(lhs[j-i], rhs[i])
			}
		}
		acc, _ = b.add(acc, partial, b.c.F)
	}
	return acc
}

// udivrem returns the quotient & remainder of restoring division. Division
// by zero yields an all-ones quotient and the dividend as remainder.
func (b *Backend) udivrem(lhs, rhs []z.Lit) (q, r []z.Lit) {
	n := len(lhs)
	q = make([]z.Lit, n)
	r = b.constant(0, uint(n))
	for i := n - 1; i >= 0; i-- {
		// Shift the next dividend bit into the remainder, keeping the bit
		// shifted out so the comparison is done at n+1 bits.
		top := r[n-1]
		shifted := append([]z.Lit{lhs[i]}, r[:n-1]...)

		// The subtraction fits if the shifted-out bit is set or shifted >= rhs.
		fits := b.c.Or(top, b.ult(shifted, rhs).Not())
		q[i] = fits
		r = b.iteBits(fits, b.sub(shifted, rhs), shifted)
	}
	return q, r
}

func (b *Backend) abs(src []z.Lit) []z.Lit {
	return b.iteBits(src[len(src)-1], b.neg(src), src)
}

// sdiv truncates toward zero.
func (b *Backend) sdiv(lhs, rhs []z.Lit) []z.Lit {
	ls, rs := lhs[len(lhs)-1], rhs[len(rhs)-1]
	q, _ := b.udivrem(b.abs(lhs), b.abs(rhs))
	return b.iteBits(b.xor(ls, rs), b.neg(q), q)
}

// srem takes the sign of the dividend.
func (b *Backend) srem(lhs, rhs []z.Lit) []z.Lit {
	ls := lhs[len(lhs)-1]
	_, r := b.udivrem(b.abs(lhs), b.abs(rhs))
	return b.iteBits(ls, b.neg(r), r)
}

type shiftKind int

const (
	shiftLeft shiftKind = iota
	shiftLogicalRight
	shiftArithmeticRight
)

// shift returns a barrel shift of lhs by rhs. Counts at or above the width
// shift out every bit.
func (b *Backend) shift(lhs, rhs []z.Lit, kind shiftKind) []z.Lit {
	n := len(lhs)
	fill := b.c.F
	if kind == shiftArithmeticRight {
		fill = lhs[n-1]
	}

	out := lhs
	overflow := b.c.F
	for stage := 0; stage < len(rhs); stage++ {
		amount := 1 << uint(stage)
		if amount >= n {
			overflow = b.c.Or(overflow, rhs[stage])
			continue
		}

		shifted := make([]z.Lit, n)
		for i := 0; i < n; i++ {
			var src int
			if kind == shiftLeft {
				src = i - amount
			} else {
				src = i + amount
			}
			if src >= 0 && src < n {
				shifted[i] = out[src]
			} else {
				shifted[i] = fill
			}
		}
		out = b.iteBits(rhs[stage], shifted, out)
	}

	saturated := make([]z.Lit, n)
	for i := range saturated {
		saturated[i] = fill
	}
	return b.iteBits(overflow, saturated, out)
}

func (b *Backend) eq(lhs, rhs []z.Lit) z.Lit {
	ms := make([]z.Lit, len(lhs))
	for i := range lhs {
		ms[i] = b.xor(lhs[i], rhs[i]).Not()
	}
	return b.c.Ands(ms...)
}

// ult returns true if lhs < rhs as unsigned integers.
func (b *Backend) ult(lhs, rhs []z.Lit) z.Lit {
	lt := b.c.F
	for i := range lhs {
		x, y := lhs[i], rhs[i]
		// lt(i) = (!x & y) | (!(x ^ y) & lt(i-1))
		lt = b.c.Or(b.c.And(x.Not(), y), b.c.And(b.xor(x, y).Not(), lt))
	}
	return lt
}

// slt flips the sign bits & compares unsigned.
func (b *Backend) slt(lhs, rhs []z.Lit) z.Lit {
	n := len(lhs)
	l := append(append([]z.Lit{}, lhs[:n-1]...), lhs[n-1].Not())
	r := append(append([]z.Lit{}, rhs[:n-1]...), rhs[n-1].Not())
	return b.ult(l, r)
}
