package plugin

// Description identifies an installed plugin as reported by the catalog.
type Description struct {
	Format                  string
	Name                    string
	UID                     int32
	FileOrIdentifier        string
	NumInputChannels        int
	NumOutputChannels       int
	SupportsDoublePrecision bool
}

// Catalog is the read-only view of the installed plugins. Discovery and
// scanning happen elsewhere; the processing core only resolves and
// instantiates.
type Catalog interface {
	// Types lists every known plugin.
	Types() []Description
	// TypeForFile resolves a filesystem path to a description.
	TypeForFile(path string) (Description, bool)
	// CreateInstance instantiates a plugin at the given sample rate and
	// block size. Implementations must run the actual creation on the
	// message thread.
	CreateInstance(desc Description, sampleRate float64, blockSize int) (Instance, error)
}
