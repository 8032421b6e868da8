package worker

import (
	"go.uber.org/zap"
	"pipelined.dev/signal"

	"github.com/mynet1982/audiogridder/pkg/audio"
)

// Mapper packs the active subset of client channels into their declared
// slots of the chain's working buffer and unpacks processed output the
// other way. The client sends active channels densely; the chain expects
// them at their session positions.
type Mapper struct {
	log *zap.Logger
	// src (packed client channel) -> dst (working buffer channel)
	in  [][2]int
	out [][2]int
}

func NewMapper(log *zap.Logger) *Mapper {
	return &Mapper{log: log.Named("mapper")}
}

// CreateMapping rebuilds the channel mapping from the mask.
func (m *Mapper) CreateMapping(mask Mask) {
	m.in = m.in[:0]
	m.out = m.out[:0]
	packed := 0
	for ch := 0; ch < mask.numIn; ch++ {
		if mask.InputActive(ch) {
			m.in = append(m.in, [2]int{packed, ch})
			packed++
		}
	}
	packed = 0
	for ch := 0; ch < mask.numOut; ch++ {
		if mask.OutputActive(ch) {
			m.out = append(m.out, [2]int{packed, ch})
			packed++
		}
	}
}

// Print logs the active mapping.
func (m *Mapper) Print() {
	for _, p := range m.in {
		m.log.Info("input mapping", zap.Int("client", p[0]), zap.Int("chain", p[1]))
	}
	for _, p := range m.out {
		m.log.Info("output mapping", zap.Int("client", p[0]), zap.Int("chain", p[1]))
	}
}

// Map copies packed client input channels into their working buffer slots.
// Working channels without a source are cleared.
func (m *Mapper) Map(src, dst signal.Floating) {
	audio.Clear(dst)
	for _, p := range m.in {
		if p[0] < src.Channels() && p[1] < dst.Channels() {
			audio.CopyChannel(dst, p[1], src, p[0])
		}
	}
}

// MapReverse copies processed working channels back into the packed client
// buffer.
func (m *Mapper) MapReverse(src, dst signal.Floating) {
	for _, p := range m.out {
		if p[1] < src.Channels() && p[0] < dst.Channels() {
			audio.CopyChannel(dst, p[0], src, p[1])
		}
	}
}
