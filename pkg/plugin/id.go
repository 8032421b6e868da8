// Package plugin defines plugin identifiers, descriptions, the catalog the
// server resolves them through, and the hosted instance abstraction.
package plugin

import (
	"fmt"
	"strings"
)

// Formats accepted in a textual plugin ID.
var validFormats = map[string]bool{
	"AudioUnit": true,
	"VST":       true,
	"VST3":      true,
}

// CreateID renders the canonical textual ID of a plugin description:
// <format>-<name>-<hex uid>.
func CreateID(d Description) string {
	return d.Format + "-" + d.Name + "-" + fmt.Sprintf("%x", uint32(d.UID))
}

// ConvertLegacyID converts a legacy ID of the form
// <format>-<name>-<file hash>-<hex uid> to the canonical form. The file
// hash segment must be lowercase hex and the format tag must be known.
// Anything else returns the empty string.
func ConvertLegacyID(id string) string {
	pos := strings.Index(id, "-")
	if pos < 0 {
		return ""
	}
	format := id[:pos]
	if !validFormats[format] {
		return ""
	}
	name := id[pos+1:]

	pos = strings.LastIndex(name, "-")
	if pos < 0 {
		return ""
	}
	pluginID := name[pos+1:]
	name = name[:pos]

	pos = strings.LastIndex(name, "-")
	if pos < 0 {
		return ""
	}
	fileHash := strings.ToLower(name[pos+1:])
	name = name[:pos]

	for _, c := range fileHash {
		if c < '0' || (c > '9' && c < 'a') || c > 'f' {
			return ""
		}
	}

	return format + "-" + name + "-" + pluginID
}

// FindDescription resolves an ID against the catalog: by canonical ID, by a
// converted legacy ID, and finally as a filesystem path.
func FindDescription(c Catalog, id string) *Description {
	converted := ConvertLegacyID(id)
	var found *Description
	for _, desc := range c.Types() {
		descID := CreateID(desc)
		if descID == id || (converted != "" && descID == converted) {
			d := desc
			found = &d
		}
	}
	if found == nil {
		if d, ok := c.TypeForFile(id); ok {
			found = &d
		}
	}
	return found
}
