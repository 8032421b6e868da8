package worker

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"
	"pipelined.dev/signal"

	"github.com/mynet1982/audiogridder/pkg/audio"
	"github.com/mynet1982/audiogridder/pkg/chain"
	"github.com/mynet1982/audiogridder/pkg/config"
	"github.com/mynet1982/audiogridder/pkg/metric"
	"github.com/mynet1982/audiogridder/pkg/msg"
	"github.com/mynet1982/audiogridder/pkg/plugin"
	"github.com/mynet1982/audiogridder/pkg/tap"
)

// readiness poll window; bounds how long shutdown waits on an idle socket
const waitTimeout = 50 * time.Millisecond

// Params are the fixed session parameters negotiated before the worker is
// handed its socket.
type Params struct {
	ChannelsIn      int
	ChannelsOut     int
	ChannelsSC      int
	ActiveChannels  uint64
	SampleRate      float64
	BlockSize       int
	DoublePrecision bool
}

// Worker drives one session: it owns the socket, the chain, and the
// per-block read -> process -> write loop.
type Worker struct {
	log     *zap.Logger
	id      string
	catalog plugin.Catalog
	cfg     *config.Config

	// mtx guards socket I/O against chain mutation from control threads
	mtx  sync.Mutex
	conn net.Conn
	br   *bufio.Reader

	chain  *chain.Chain
	mask   Mask
	mapper *Mapper
	params Params

	procF, procD signal.Floating

	stop int32
	done chan struct{}

	tap       *tap.Writer
	tapFailed bool
}

func New(log *zap.Logger, catalog plugin.Catalog, cfg *config.Config) *Worker {
	id := xid.New().String()
	return &Worker{
		log:     log.Named("worker").With(zap.String("session", id)),
		id:      id,
		catalog: catalog,
		cfg:     cfg,
		done:    make(chan struct{}),
	}
}

func (w *Worker) ID() string { return w.id }

// Init takes ownership of the connected socket and builds the session's
// chain for the declared channels.
func (w *Worker) Init(conn net.Conn, p Params) {
	w.conn = conn
	w.br = bufio.NewReader(conn)
	w.params = p

	w.mask = NewMask(p.ActiveChannels)
	w.mask.SetWithInput(p.ChannelsIn > 0)
	w.mask.SetNumChannels(p.ChannelsIn+p.ChannelsSC, p.ChannelsOut)
	w.mapper = NewMapper(w.log)
	w.mapper.CreateMapping(w.mask)
	w.mapper.Print()

	w.chain = chain.New(w.log, w.catalog, w.cfg.ParallelPluginLoad)
	if p.DoublePrecision && w.chain.SupportsDoublePrecision() {
		w.chain.SetProcessingPrecision(audio.Double)
	}
	w.chain.UpdateChannels(p.ChannelsIn, p.ChannelsOut, p.ChannelsSC)
}

func (w *Worker) Chain() *chain.Chain { return w.chain }

func (w *Worker) isOK() bool {
	return atomic.LoadInt32(&w.stop) == 0
}

// Shutdown signals the loop to exit; the in-flight block completes
// normally.
func (w *Worker) Shutdown() {
	atomic.StoreInt32(&w.stop, 1)
}

// Wait blocks until the loop has terminated.
func (w *Worker) Wait() {
	<-w.done
}

// waitForData polls the socket for readability. Holding the worker mutex
// here gives control threads a quiescent window between blocks.
func (w *Worker) waitForData() (bool, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if err := w.conn.SetReadDeadline(time.Now().Add(waitTimeout)); err != nil {
		return false, err
	}
	_, err := w.br.Peek(1)
	if err == nil {
		return true, w.conn.SetReadDeadline(time.Time{})
	}
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return false, nil
	}
	return false, err
}

// Run is the per-block loop. It terminates on client disconnect, fatal
// per-block errors, or Shutdown.
func (w *Worker) Run() {
	defer close(w.done)
	w.log.Info("audio processor started")

	duration := metric.GetDuration("audio")
	bytesIn := metric.GetMeter("NetBytesIn")
	bytesOut := metric.GetMeter("NetBytesOut")

	posInfo := &audio.Transport{}
	w.chain.PrepareToPlay(w.params.SampleRate, w.params.BlockSize)
	hasToSetPlayHead := true

	for w.isOK() {
		ready, err := w.waitForData()
		if err != nil {
			w.log.Info("socket no longer readable", zap.Error(err))
			break
		}
		if !ready {
			continue
		}

		frame, err := msg.ReadFrame(w.br, bytesIn)
		if err != nil {
			w.log.Error("failed to read audio message", zap.Error(err))
			w.conn.Close()
			break
		}

		w.mtx.Lock()
		duration.Reset()
		if hasToSetPlayHead {
			// do not install the play head before the first block arrives
			w.chain.SetPlayHead(posInfo)
			hasToSetPlayHead = false
		}
		*posInfo = frame.Pos

		needed := w.mask.NumActive(true)
		if needed > frame.Buffer.Channels() {
			w.log.Error("buffer has not enough channels",
				zap.Int("needed", needed), zap.Int("channels", frame.Buffer.Channels()))
			w.chain.ReleaseResources()
			w.conn.Close()
			w.mtx.Unlock()
			break
		}

		if frame.Double && !w.chain.SupportsDoublePrecision() {
			// chain cannot process double; convert, process, convert back
			conv := audio.NewBuffer(audio.Single, frame.Buffer.Channels(), frame.Buffer.Length())
			audio.Copy(conv, frame.Buffer)
			w.processBlock(conv, &frame.Midi, audio.Single)
			audio.Copy(frame.Buffer, conv)
		} else {
			w.processBlock(frame.Buffer, &frame.Midi, frame.Precision())
		}

		w.writeTap(frame.Buffer)

		sendErr := msg.WriteResponse(w.conn, &msg.Response{
			Double:   frame.Double,
			Buffer:   frame.Buffer,
			Midi:     &frame.Midi,
			Latency:  w.chain.Latency(),
			Channels: frame.Buffer.Channels(),
		}, bytesOut)
		if sendErr != nil {
			w.log.Error("failed to send audio data to client", zap.Error(sendErr))
			w.conn.Close()
			w.mtx.Unlock()
			break
		}
		duration.Update()
		w.mtx.Unlock()
	}

	w.chain.SetPlayHead(nil)
	duration.Clear()
	w.clear()
	w.closeTap()
	w.conn.Close()
	w.log.Info("audio processor terminated")
}

// processBlock widens the received buffer to the chain's working channel
// count when needed, mapping active client channels in and out.
func (w *Worker) processBlock(buf signal.Floating, midi *audio.MidiBuffer, prec audio.Precision) {
	numChannels := w.params.ChannelsIn + w.params.ChannelsSC
	if w.params.ChannelsOut > numChannels {
		numChannels = w.params.ChannelsOut
	}
	numChannels += w.chain.ExtraChannels()

	if numChannels <= buf.Channels() {
		w.chain.ProcessBlock(buf, midi, prec)
		return
	}

	// fewer channels received than the chain works on: map them in and out
	proc := w.procBuffer(prec, numChannels, buf.Length())
	if w.mask.NumActive(true) > 0 {
		w.mapper.Map(buf, proc)
	} else {
		audio.Clear(proc)
	}
	w.chain.ProcessBlock(proc, midi, prec)
	w.mapper.MapReverse(proc, buf)
}

// procBuffer returns the persistent per-precision working buffer, growing
// it when the channel count or block size demands.
func (w *Worker) procBuffer(prec audio.Precision, channels, length int) signal.Floating {
	ref := &w.procF
	if prec == audio.Double {
		ref = &w.procD
	}
	buf := *ref
	if buf == nil || buf.Channels() < channels || buf.Length() < length {
		buf = audio.NewBuffer(prec, channels, length)
		*ref = buf
	}
	return buf
}

func (w *Worker) clear() {
	if w.chain != nil {
		w.chain.Clear()
	}
}

// AddPlugin appends a plugin to the session's chain.
func (w *Worker) AddPlugin(id string) error {
	return w.chain.AddPlugin(id)
}

// DelPlugin removes the plugin at idx from the chain.
func (w *Worker) DelPlugin(idx int) {
	w.log.Info("deleting plugin", zap.Int("idx", idx))
	w.chain.DeleteProcessor(idx)
}

// ExchangePlugins swaps two chain positions.
func (w *Worker) ExchangePlugins(idxA, idxB int) {
	w.log.Info("exchanging plugins", zap.Int("idxA", idxA), zap.Int("idxB", idxB))
	w.chain.ExchangeProcessors(idxA, idxB)
}

// AddToRecents records id in the remote host's MRU list.
func (w *Worker) AddToRecents(id, host string) {
	AddToRecents(w.catalog, id, host, w.cfg.NumRecents)
}

// RecentsList renders the remote host's MRU list.
func (w *Worker) RecentsList(host string) string {
	return Recents(host)
}

func (w *Worker) writeTap(buf signal.Floating) {
	if w.cfg.TapDir == "" || w.tapFailed {
		return
	}
	if w.tap == nil {
		t, err := tap.Create(w.cfg.TapDir, w.id, buf.Channels(), int(w.params.SampleRate))
		if err != nil {
			w.log.Warn("session tap disabled", zap.Error(err))
			w.tapFailed = true
			return
		}
		w.tap = t
	}
	if err := w.tap.Write(buf); err != nil {
		w.log.Warn("session tap write failed", zap.Error(err))
		w.tapFailed = true
	}
}

func (w *Worker) closeTap() {
	if w.tap == nil {
		return
	}
	if err := w.tap.Close(); err != nil {
		w.log.Warn("session tap close failed", zap.Error(err))
	}
	w.tap = nil
}
