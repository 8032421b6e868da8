// Package worker drives one client session: a socket loop that reads
// framed blocks, pumps them through the session's chain and writes the
// processed result back.
package worker

import (
	"math/bits"
)

// Mask is the set of client-declared channels active in a session. Input
// and sidechain channels occupy the low bits, output channels follow.
// Sessions without input (instruments) carry output bits only.
type Mask struct {
	bits      uint64
	numIn     int
	numOut    int
	withInput bool
}

func NewMask(bits uint64) Mask {
	return Mask{bits: bits}
}

// SetWithInput declares whether the low bits describe input channels.
func (m *Mask) SetWithInput(withInput bool) {
	m.withInput = withInput
}

// SetNumChannels declares how many input+sidechain and output channels the
// mask covers.
func (m *Mask) SetNumChannels(numIn, numOut int) {
	m.numIn = numIn
	m.numOut = numOut
}

func (m *Mask) inputBits() uint64 {
	if !m.withInput {
		return 0
	}
	return m.bits & (uint64(1)<<uint(m.numIn) - 1)
}

func (m *Mask) outputBits() uint64 {
	offset := 0
	if m.withInput {
		offset = m.numIn
	}
	return (m.bits >> uint(offset)) & (uint64(1)<<uint(m.numOut) - 1)
}

// InputActive reports whether input channel ch is active.
func (m *Mask) InputActive(ch int) bool {
	if ch < 0 || ch >= m.numIn {
		return false
	}
	return m.inputBits()&(uint64(1)<<uint(ch)) != 0
}

// OutputActive reports whether output channel ch is active.
func (m *Mask) OutputActive(ch int) bool {
	if ch < 0 || ch >= m.numOut {
		return false
	}
	return m.outputBits()&(uint64(1)<<uint(ch)) != 0
}

// NumActive counts active input channels when input is true, active output
// channels otherwise.
func (m *Mask) NumActive(input bool) int {
	if input {
		return bits.OnesCount64(m.inputBits())
	}
	return bits.OnesCount64(m.outputBits())
}
