package audio

// Transport is the play-head position of the hosting client for the block
// currently being processed. A single instance per session is shared with
// every plugin in the chain and refreshed from each incoming frame.
type Transport struct {
	Playing       bool
	SamplePos     int64
	BPM           float64
	TimeSigNum    int
	TimeSigDen    int
}
