package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskInputOutputSplit(t *testing.T) {
	// 2 in + 1 sc, 2 out; all five channels active
	m := NewMask(0b11111)
	m.SetWithInput(true)
	m.SetNumChannels(3, 2)

	assert.Equal(t, 3, m.NumActive(true))
	assert.Equal(t, 2, m.NumActive(false))
	assert.True(t, m.InputActive(0))
	assert.True(t, m.InputActive(2))
	assert.False(t, m.InputActive(3))
	assert.True(t, m.OutputActive(0))
	assert.True(t, m.OutputActive(1))
	assert.False(t, m.OutputActive(2))
}

func TestMaskPartial(t *testing.T) {
	// active: input 0, output 1 (input bits 0b01, output bits 0b10)
	m := NewMask(0b1001)
	m.SetWithInput(true)
	m.SetNumChannels(2, 2)

	assert.Equal(t, 1, m.NumActive(true))
	assert.Equal(t, 1, m.NumActive(false))
	assert.True(t, m.InputActive(0))
	assert.False(t, m.InputActive(1))
	assert.False(t, m.OutputActive(0))
	assert.True(t, m.OutputActive(1))
}

func TestMaskWithoutInput(t *testing.T) {
	// instrument session: output bits only, starting at bit 0
	m := NewMask(0b11)
	m.SetWithInput(false)
	m.SetNumChannels(2, 2)

	assert.Equal(t, 0, m.NumActive(true))
	assert.Equal(t, 2, m.NumActive(false))
	assert.False(t, m.InputActive(0))
	assert.True(t, m.OutputActive(0))
	assert.True(t, m.OutputActive(1))
}

func TestMaskOutOfRange(t *testing.T) {
	m := NewMask(^uint64(0))
	m.SetWithInput(true)
	m.SetNumChannels(2, 2)

	assert.False(t, m.InputActive(-1))
	assert.False(t, m.InputActive(2))
	assert.False(t, m.OutputActive(2))
	assert.Equal(t, 2, m.NumActive(true))
	assert.Equal(t, 2, m.NumActive(false))
}
