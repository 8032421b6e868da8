package worker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mynet1982/audiogridder/pkg/plugin"
)

func TestRecentsMRU(t *testing.T) {
	resetRecents()
	cat := newFakeCatalog()
	var ids []string
	for i := 0; i < 4; i++ {
		id := cat.add(plugin.Description{
			Format: "VST3", Name: fmt.Sprintf("P%d", i), UID: int32(100 + i),
			FileOrIdentifier: fmt.Sprintf("/p/P%d.vst3", i),
		}, nil)
		ids = append(ids, id)
	}

	AddToRecents(cat, ids[0], "host-a", 3)
	AddToRecents(cat, ids[1], "host-a", 3)
	AddToRecents(cat, ids[2], "host-a", 3)

	assert.Equal(t, ids[2]+"\n"+ids[1]+"\n"+ids[0]+"\n", Recents("host-a"))

	// re-adding moves to the front without duplicating
	AddToRecents(cat, ids[0], "host-a", 3)
	assert.Equal(t, ids[0]+"\n"+ids[2]+"\n"+ids[1]+"\n", Recents("host-a"))

	// exceeding the limit drops the oldest
	AddToRecents(cat, ids[3], "host-a", 3)
	assert.Equal(t, ids[3]+"\n"+ids[0]+"\n"+ids[2]+"\n", Recents("host-a"))

	// unknown hosts render empty
	assert.Equal(t, "", Recents("host-b"))

	// unresolvable ids are ignored
	AddToRecents(cat, "VST3-Nope-1", "host-a", 3)
	assert.Equal(t, ids[3]+"\n"+ids[0]+"\n"+ids[2]+"\n", Recents("host-a"))

	// hosts are independent
	AddToRecents(cat, ids[1], "host-c", 3)
	assert.Equal(t, ids[1]+"\n", Recents("host-c"))
}
