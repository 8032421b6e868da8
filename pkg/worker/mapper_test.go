package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mynet1982/audiogridder/pkg/audio"
)

func TestMapperPackUnpack(t *testing.T) {
	// 2 in / 2 out; active: input 1 only, output 1 only
	m := NewMask(0b1010)
	m.SetWithInput(true)
	m.SetNumChannels(2, 2)

	mapper := NewMapper(zap.NewNop())
	mapper.CreateMapping(m)

	// the client packs its single active input as channel 0
	src := audio.NewBuffer(audio.Single, 1, 4)
	for s := 0; s < 4; s++ {
		src.SetSample(src.BufferIndex(0, s), 0.25)
	}
	work := audio.NewBuffer(audio.Single, 2, 4)
	mapper.Map(src, work)

	for s := 0; s < 4; s++ {
		assert.Equal(t, 0.0, work.Sample(work.BufferIndex(0, s)))
		assert.Equal(t, 0.25, work.Sample(work.BufferIndex(1, s)))
	}

	// processed output on working channel 1 comes back as client channel 0
	for s := 0; s < 4; s++ {
		work.SetSample(work.BufferIndex(1, s), 0.5)
	}
	mapper.MapReverse(work, src)
	for s := 0; s < 4; s++ {
		assert.Equal(t, 0.5, src.Sample(src.BufferIndex(0, s)))
	}
}

func TestMapperAllActive(t *testing.T) {
	m := NewMask(0b1111)
	m.SetWithInput(true)
	m.SetNumChannels(2, 2)

	mapper := NewMapper(zap.NewNop())
	mapper.CreateMapping(m)

	src := audio.NewBuffer(audio.Single, 2, 2)
	src.SetSample(src.BufferIndex(0, 0), 1)
	src.SetSample(src.BufferIndex(1, 0), 2)
	work := audio.NewBuffer(audio.Single, 4, 2)
	mapper.Map(src, work)

	assert.Equal(t, 1.0, work.Sample(work.BufferIndex(0, 0)))
	assert.Equal(t, 2.0, work.Sample(work.BufferIndex(1, 0)))
	assert.Equal(t, 0.0, work.Sample(work.BufferIndex(2, 0)))
}
