package runtime

import (
	"github.com/kminoda/CARET-analyze/pkg/record"
	"github.com/kminoda/CARET-analyze/pkg/trace"
)

// CallbackType distinguishes what schedules a callback.
type CallbackType string

const (
	// CallbackTimer marks callbacks fired by a timer
	CallbackTimer CallbackType = "timer_callback"
	// CallbackSubscription marks callbacks fired by message arrival
	CallbackSubscription CallbackType = "subscription_callback"
)

// CallbackBase is the view shared by all callback kinds: identity plus the
// cached activation table and the measurement views derived from it.
type CallbackBase struct {
	identity CallbackIdentity
	kind     CallbackType
	cache    cachedRecords
}

func newCallbackBase(provider RecordsProvider, id CallbackIdentity, kind CallbackType) CallbackBase {
	return CallbackBase{
		identity: id,
		kind:     kind,
		cache: cachedRecords{fetch: func() (*record.Records, error) {
			return provider.CallbackRecords(id)
		}},
	}
}

// NodeName returns the owning node's fully qualified name.
func (c *CallbackBase) NodeName() string { return c.identity.NodeName }

// Symbol returns the callback's source symbol.
func (c *CallbackBase) Symbol() string { return c.identity.Symbol }

// CallbackObject returns the callback's runtime object identifier.
func (c *CallbackBase) CallbackObject() int64 { return c.identity.CallbackObject }

// Type returns the callback kind.
func (c *CallbackBase) Type() CallbackType { return c.kind }

// ToRecords returns the callback activation table, one row per activation
// with its start and end timestamps. The table is fetched on first use and
// cached; it is shared, callers must not mutate it.
func (c *CallbackBase) ToRecords() (*record.Records, error) {
	return c.cache.get()
}

// Clear drops the cached table so the next ToRecords fetches it again.
func (c *CallbackBase) Clear() {
	c.cache.clear()
}

// Latency returns one row per activation holding the start timestamp and
// the execution duration.
func (c *CallbackBase) Latency() (*record.Records, error) {
	recs, err := c.ToRecords()
	if err != nil {
		return nil, err
	}
	lat, err := record.NewLatency(recs, trace.ColumnCallbackStart, trace.ColumnCallbackEnd)
	if err != nil {
		return nil, err
	}
	return lat.ToRecords(), nil
}

// Period returns one row per consecutive activation pair holding the
// earlier start timestamp and the distance to the next.
func (c *CallbackBase) Period() (*record.Records, error) {
	recs, err := c.ToRecords()
	if err != nil {
		return nil, err
	}
	per, err := record.NewPeriod(recs, trace.ColumnCallbackStart)
	if err != nil {
		return nil, err
	}
	return per.ToRecords(), nil
}

// Frequency returns one row per one-second window holding the window start
// and how many activations began inside it.
func (c *CallbackBase) Frequency() (*record.Records, error) {
	recs, err := c.ToRecords()
	if err != nil {
		return nil, err
	}
	freq, err := record.NewFrequency(recs, trace.ColumnCallbackStart)
	if err != nil {
		return nil, err
	}
	return freq.ToRecords(), nil
}

// TimerCallback is a callback fired on a fixed period.
type TimerCallback struct {
	CallbackBase
	period int64
}

// NewTimerCallback creates a timer callback view. period is the configured
// timer period in nanoseconds.
func NewTimerCallback(provider RecordsProvider, id CallbackIdentity, period int64) *TimerCallback {
	return &TimerCallback{
		CallbackBase: newCallbackBase(provider, id, CallbackTimer),
		period:       period,
	}
}

// TimerPeriod returns the configured timer period in nanoseconds.
func (t *TimerCallback) TimerPeriod() int64 { return t.period }

// SubscriptionCallback is a callback fired by message arrival on a topic.
type SubscriptionCallback struct {
	CallbackBase
	topic string
}

// NewSubscriptionCallback creates a subscription callback view.
func NewSubscriptionCallback(provider RecordsProvider, id CallbackIdentity, topic string) *SubscriptionCallback {
	return &SubscriptionCallback{
		CallbackBase: newCallbackBase(provider, id, CallbackSubscription),
		topic:        topic,
	}
}

// TopicName returns the subscribed topic.
func (s *SubscriptionCallback) TopicName() string { return s.topic }
