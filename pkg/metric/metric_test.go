package metric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeter(t *testing.T) {
	m := GetMeter("TestBytes")
	assert.Same(t, m, GetMeter("TestBytes"))

	m.Add(10)
	m.Add(32)
	assert.EqualValues(t, 42, m.Value())
}

func TestDuration(t *testing.T) {
	d := GetDuration("testAudio")
	assert.Same(t, d, GetDuration("testAudio"))

	d.Reset()
	time.Sleep(time.Millisecond)
	d.Update()

	count, last, max := d.Stats()
	assert.EqualValues(t, 1, count)
	assert.Greater(t, last, time.Duration(0))
	assert.GreaterOrEqual(t, max, last)

	// update without reset records nothing
	d.Update()
	count, _, _ = d.Stats()
	assert.EqualValues(t, 1, count)

	// clear drops the in-flight window
	d.Reset()
	d.Clear()
	d.Update()
	count, _, _ = d.Stats()
	assert.EqualValues(t, 1, count)
}
