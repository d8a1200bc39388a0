package registry

import (
	"sync"

	"github.com/srg/blegate/internal/device"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record is one connection a remote client opened through the gateway.
type Record struct {
	ID            int
	Advertisement device.Advertisement
}

// Connections issues connection IDs and remembers what they were opened against.
// IDs start at 1 and are never reused, not even after Clear.
type Connections struct {
	mu      sync.Mutex
	lastID  int
	records *orderedmap.OrderedMap[int, Record]
}

// NewConnections creates an empty registry.
func NewConnections() *Connections {
	return &Connections{records: orderedmap.New[int, Record]()}
}

// Open records a new connection to adv under the next ID.
func (c *Connections) Open(adv device.Advertisement) Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastID++
	rec := Record{ID: c.lastID, Advertisement: adv}
	c.records.Set(rec.ID, rec)
	return rec
}

// Get returns the record with the given ID.
func (c *Connections) Get(id int) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records.Get(id)
}

// Records returns all outstanding records ordered by ID.
func (c *Connections) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Len returns the number of outstanding records.
func (c *Connections) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records.Len()
}

// Clear removes every record and returns what was removed, ordered by ID.
func (c *Connections) Clear() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.snapshotLocked()
	c.records = orderedmap.New[int, Record]()
	return removed
}

func (c *Connections) snapshotLocked() []Record {
	out := make([]Record, 0, c.records.Len())
	for pair := c.records.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}
