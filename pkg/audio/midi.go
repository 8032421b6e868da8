package audio

import (
	"gitlab.com/gomidi/midi/v2"
)

// MidiEvent is one MIDI message stamped with its sample offset inside the
// block it was received with.
type MidiEvent struct {
	Frame int32
	Data  midi.Message
}

// MidiBuffer carries the MIDI events of one block. Plugins may consume and
// emit events in place as the block travels down the chain.
type MidiBuffer struct {
	events []MidiEvent
}

func (b *MidiBuffer) Add(frame int32, m midi.Message) {
	b.events = append(b.events, MidiEvent{Frame: frame, Data: m})
}

func (b *MidiBuffer) Events() []MidiEvent { return b.events }

func (b *MidiBuffer) Len() int { return len(b.events) }

func (b *MidiBuffer) Clear() { b.events = b.events[:0] }

// Replace swaps the buffer content for the given events.
func (b *MidiBuffer) Replace(events []MidiEvent) {
	b.events = b.events[:0]
	b.events = append(b.events, events...)
}
