package plugin

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"pipelined.dev/audio/vst2"
	"pipelined.dev/signal"

	"github.com/mynet1982/audiogridder/pkg/audio"
)

var vst2Extensions = map[string]bool{
	".so":  true,
	".dll": true,
	".vst": true,
}

// VST2Catalog resolves and instantiates VST2 plugins found under a set of
// search paths.
type VST2Catalog struct {
	log   *zap.Logger
	mt    *MessageThread
	types []Description
}

var _ Catalog = (*VST2Catalog)(nil)

func NewVST2Catalog(log *zap.Logger, paths []string) *VST2Catalog {
	c := &VST2Catalog{
		log: log.Named("VST2Catalog"),
		mt:  MsgThread(),
	}
	for _, root := range paths {
		filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			if vst2Extensions[strings.ToLower(filepath.Ext(path))] {
				c.types = append(c.types, descriptionForFile(path))
			}
			return nil
		})
	}
	c.log.Info("catalog ready", zap.Int("plugins", len(c.types)))
	return c
}

func descriptionForFile(path string) Description {
	h := fnv.New32a()
	h.Write([]byte(path))
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Description{
		Format:                  "VST",
		Name:                    name,
		UID:                     int32(h.Sum32()),
		FileOrIdentifier:        path,
		NumInputChannels:        2,
		NumOutputChannels:       2,
		SupportsDoublePrecision: true,
	}
}

func (c *VST2Catalog) Types() []Description {
	return append([]Description(nil), c.types...)
}

func (c *VST2Catalog) TypeForFile(path string) (Description, bool) {
	if !vst2Extensions[strings.ToLower(filepath.Ext(path))] {
		return Description{}, false
	}
	if _, err := os.Stat(path); err != nil {
		return Description{}, false
	}
	return descriptionForFile(path), true
}

func (c *VST2Catalog) CreateInstance(desc Description, sampleRate float64, blockSize int) (Instance, error) {
	var (
		inst *vst2Instance
		err  error
	)
	c.mt.CallSync(func() {
		var v *vst2.VST
		v, err = vst2.Open(desc.FileOrIdentifier)
		if err != nil {
			return
		}
		p := v.Load(func(code vst2.HostOpcode, _ vst2.Index, _ vst2.Value, _ vst2.Ptr, _ vst2.Opt) vst2.Return {
			return 0
		})
		inst = &vst2Instance{
			log:    c.log.Named(desc.Name),
			mt:     c.mt,
			desc:   desc,
			vst:    v,
			plugin: p,
			layout: audio.SessionLayout(desc.NumInputChannels, desc.NumOutputChannels, 0),
		}
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", desc.FileOrIdentifier, err)
	}
	if inst == nil {
		return nil, fmt.Errorf("loading %s: no effect entry point", desc.FileOrIdentifier)
	}
	return inst, nil
}

// vst2Instance adapts one loaded VST2 plugin to the Instance interface.
// The binding carries main buses only, so any layout with a sidechain is
// rejected, which routes the chain's negotiation onto its fallback path.
type vst2Instance struct {
	log    *zap.Logger
	mt     *MessageThread
	desc   Description
	vst    *vst2.VST
	plugin *vst2.Plugin

	layout    audio.Layout
	blockSize int

	inF, outF vst2.FloatBuffer
	inD, outD vst2.DoubleBuffer
	haveBufs  bool
}

var _ Instance = (*vst2Instance)(nil)

func (i *vst2Instance) Name() string { return i.desc.Name }

func (i *vst2Instance) PrepareToPlay(sampleRate float64, blockSize int) {
	i.plugin.SetSampleRate(int(sampleRate))
	i.plugin.SetBufferSize(blockSize)
	i.applySpeakerArrangement()
	i.plugin.Start()
	channels := i.layout.TotalOutputChannels()
	if in := i.layout.TotalInputChannels(); in > channels {
		channels = in
	}
	i.inF = vst2.NewFloatBuffer(channels, blockSize)
	i.outF = vst2.NewFloatBuffer(channels, blockSize)
	i.inD = vst2.NewDoubleBuffer(channels, blockSize)
	i.outD = vst2.NewDoubleBuffer(channels, blockSize)
	i.haveBufs = true
	i.blockSize = blockSize
}

func (i *vst2Instance) applySpeakerArrangement() {
	i.plugin.SetSpeakerArrangement(
		&vst2.SpeakerArrangement{
			Type:        vst2.SpeakerArrMono,
			NumChannels: int32(i.layout.MainInputChannels()),
		},
		&vst2.SpeakerArrangement{
			Type:        vst2.SpeakerArrMono,
			NumChannels: int32(i.layout.MainOutputChannels()),
		},
	)
}

func (i *vst2Instance) ReleaseResources() {
	// the binding exposes no resume/suspend cycle beyond Start; buffers
	// are dropped and reallocated on the next prepare
	i.haveBufs = false
}

func (i *vst2Instance) ProcessFloat(buf signal.Floating, midi *audio.MidiBuffer) {
	if !i.haveBufs || buf.Length() > i.blockSize {
		return
	}
	i.inF.CopyFrom(buf)
	i.plugin.ProcessFloat(i.inF, i.outF)
	i.outF.CopyTo(buf)
}

func (i *vst2Instance) ProcessDouble(buf signal.Floating, midi *audio.MidiBuffer) {
	if !i.haveBufs || buf.Length() > i.blockSize {
		return
	}
	i.inD.CopyFrom(buf)
	i.plugin.ProcessDouble(i.inD, i.outD)
	i.outD.CopyTo(buf)
}

// LatencySamples is 0: the binding does not expose the plugin's initial
// delay.
func (i *vst2Instance) LatencySamples() int { return 0 }

func (i *vst2Instance) TailSeconds() float64 { return 0 }

func (i *vst2Instance) SupportsDoublePrecision() bool { return i.desc.SupportsDoublePrecision }

func (i *vst2Instance) SetProcessingPrecision(p audio.Precision) {}

func (i *vst2Instance) Layout() audio.Layout { return i.layout.Clone() }

func (i *vst2Instance) CheckLayoutSupported(l audio.Layout) bool {
	return len(l.Inputs) <= 1 && len(l.Outputs) <= 1
}

func (i *vst2Instance) SetLayout(l audio.Layout) bool {
	if !i.CheckLayoutSupported(l) {
		return false
	}
	i.layout = l.Clone()
	return true
}

func (i *vst2Instance) EnableAllBuses() {}

func (i *vst2Instance) SetPlayHead(t *audio.Transport) {}

func (i *vst2Instance) Parameters() []Parameter {
	// the binding exposes value access by index but no parameter count, so
	// there is nothing to enumerate
	return nil
}

func (i *vst2Instance) Close() {
	i.plugin.Close()
	i.vst.Close()
}
