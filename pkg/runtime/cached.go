package runtime

import (
	"sync"

	"github.com/kminoda/CARET-analyze/pkg/record"
)

// cachedRecords memoizes one provider table. Composition walks every raw
// event table, so views fetch once and reuse until cleared.
type cachedRecords struct {
	mu    sync.Mutex
	fetch func() (*record.Records, error)
	recs  *record.Records
}

func (c *cachedRecords) get() (*record.Records, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recs == nil {
		recs, err := c.fetch()
		if err != nil {
			return nil, err
		}
		c.recs = recs
	}
	return c.recs, nil
}

func (c *cachedRecords) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = nil
}
