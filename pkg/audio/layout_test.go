package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLayout(t *testing.T) {
	l := SessionLayout(2, 2, 1)
	require.Len(t, l.Inputs, 2)
	require.Len(t, l.Outputs, 1)
	assert.Equal(t, 2, l.MainInputChannels())
	assert.Equal(t, 2, l.MainOutputChannels())
	assert.Equal(t, 3, l.TotalInputChannels())
	assert.Equal(t, 2, l.TotalOutputChannels())
	assert.True(t, l.HasSidechain())

	// sidechain bus is built from the sidechain channel count
	l = SessionLayout(4, 4, 3)
	assert.Equal(t, 3, l.Inputs[1].Size())

	l = SessionLayout(0, 2, 0)
	assert.Len(t, l.Inputs, 0)
	assert.Equal(t, 0, l.MainInputChannels())
	assert.False(t, l.HasSidechain())
}

func TestLayoutSidechainVariants(t *testing.T) {
	l := SessionLayout(2, 2, 2)

	mono := l.WithMonoSidechain()
	require.True(t, mono.HasSidechain())
	assert.Equal(t, 1, mono.Inputs[1].Size())
	// the original is untouched
	assert.Equal(t, 2, l.Inputs[1].Size())

	none := l.WithoutSidechain()
	assert.False(t, none.HasSidechain())
	assert.Equal(t, 2, none.MainInputChannels())

	// both are no-ops without a sidechain
	plain := SessionLayout(2, 2, 0)
	assert.Equal(t, plain, plain.WithoutSidechain())
	assert.Equal(t, plain, plain.WithMonoSidechain())
}

func TestChannelSetString(t *testing.T) {
	assert.Equal(t, "mono", Mono().String())
	assert.Equal(t, "stereo", Stereo().String())
	assert.Equal(t, "discrete(6)", Discrete(6).String())
	assert.Equal(t, "in[stereo mono] out[stereo]", SessionLayout(2, 2, 1).String())
}
