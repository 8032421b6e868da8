package worker

import (
	"strings"
	"sync"

	"github.com/mynet1982/audiogridder/pkg/plugin"
)

// DefaultNumRecents bounds each host's recents list when the server config
// does not override it.
const DefaultNumRecents = 10

// per-remote-host MRU lists of recently used plugins; process lifetime
var (
	recentsMtx sync.Mutex
	recents    = make(map[string][]plugin.Description)
)

// AddToRecents resolves id through the catalog and moves it to the front
// of the host's MRU list, truncated to max entries. Unresolvable ids are
// ignored.
func AddToRecents(catalog plugin.Catalog, id, host string, max int) {
	desc := plugin.FindDescription(catalog, id)
	if desc == nil {
		return
	}
	if max <= 0 {
		max = DefaultNumRecents
	}
	recentsMtx.Lock()
	defer recentsMtx.Unlock()
	list := recents[host]
	kept := list[:0]
	for _, d := range list {
		if d != *desc {
			kept = append(kept, d)
		}
	}
	list = append([]plugin.Description{*desc}, kept...)
	if len(list) > max {
		list = list[:max]
	}
	recents[host] = list
}

// Recents renders the host's MRU list, one canonical plugin ID per line,
// newline-terminated. Unknown hosts yield the empty string.
func Recents(host string) string {
	recentsMtx.Lock()
	defer recentsMtx.Unlock()
	list, ok := recents[host]
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, d := range list {
		b.WriteString(plugin.CreateID(d))
		b.WriteString("\n")
	}
	return b.String()
}

// resetRecents clears the registry; tests only.
func resetRecents() {
	recentsMtx.Lock()
	recents = make(map[string][]plugin.Description)
	recentsMtx.Unlock()
}
