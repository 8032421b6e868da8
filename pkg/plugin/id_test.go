package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateID(t *testing.T) {
	d := Description{Format: "VST3", Name: "MyComp", UID: 0x12345678}
	assert.Equal(t, "VST3-MyComp-12345678", CreateID(d))

	// negative uids render as their unsigned hex form
	d = Description{Format: "VST", Name: "X", UID: -1}
	assert.Equal(t, "VST-X-ffffffff", CreateID(d))
}

func TestConvertLegacyID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"valid vst3", "VST3-MyComp-deadbeef-12345678", "VST3-MyComp-12345678"},
		{"valid audiounit", "AudioUnit-Comp-00ff-1234", "AudioUnit-Comp-1234"},
		{"name with dash", "VST-My-Comp-abcd-1234", "VST-My-Comp-1234"},
		{"invalid format", "AAX-Foo-abcd-00000001", ""},
		{"non hex hash", "VST-Foo-ZZZZ-00000001", ""},
		{"no separator", "VST3", ""},
		{"too few segments", "VST3-Name-1234", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConvertLegacyID(tt.in))
		})
	}
}

type idCatalog struct {
	types []Description
}

func (c *idCatalog) Types() []Description { return c.types }

func (c *idCatalog) TypeForFile(path string) (Description, bool) {
	for _, d := range c.types {
		if d.FileOrIdentifier == path {
			return d, true
		}
	}
	return Description{}, false
}

func (c *idCatalog) CreateInstance(Description, float64, int) (Instance, error) {
	panic("not used")
}

func TestFindDescription(t *testing.T) {
	cat := &idCatalog{types: []Description{
		{Format: "VST3", Name: "Comp", UID: 0x1234, FileOrIdentifier: "/p/Comp.vst3"},
		{Format: "VST", Name: "Verb", UID: 0x99, FileOrIdentifier: "/p/Verb.so"},
	}}

	// canonical id
	d := FindDescription(cat, "VST3-Comp-1234")
	require.NotNil(t, d)
	assert.Equal(t, "Comp", d.Name)

	// createPluginID round-trips through the catalog
	assert.Equal(t, "VST3-Comp-1234", CreateID(*d))

	// legacy id
	d = FindDescription(cat, "VST-Verb-deadbeef-99")
	require.NotNil(t, d)
	assert.Equal(t, "Verb", d.Name)

	// filesystem path fallback
	d = FindDescription(cat, "/p/Verb.so")
	require.NotNil(t, d)
	assert.Equal(t, "Verb", d.Name)

	// unresolved
	assert.Nil(t, FindDescription(cat, "VST3-Missing-1"))
}
