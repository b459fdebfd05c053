package runtime

import (
	"github.com/kminoda/CARET-analyze/pkg/record"
	"github.com/kminoda/CARET-analyze/pkg/trace"
)

// Publisher is the view over one publisher's publish stack.
type Publisher struct {
	handle   int64
	topic    string
	nodeName string
	cache    cachedRecords
}

// NewPublisher creates a publisher view.
func NewPublisher(provider RecordsProvider, handle int64, topic, nodeName string) *Publisher {
	return &Publisher{
		handle:   handle,
		topic:    topic,
		nodeName: nodeName,
		cache: cachedRecords{fetch: func() (*record.Records, error) {
			return provider.PublishRecords(handle)
		}},
	}
}

// Handle returns the publisher's runtime handle.
func (p *Publisher) Handle() int64 { return p.handle }

// TopicName returns the published topic.
func (p *Publisher) TopicName() string { return p.topic }

// NodeName returns the owning node's fully qualified name.
func (p *Publisher) NodeName() string { return p.nodeName }

// ToRecords returns the publish stack table, one row per publish call. The
// table is cached and shared; callers must not mutate it.
func (p *Publisher) ToRecords() (*record.Records, error) {
	return p.cache.get()
}

// Clear drops the cached table.
func (p *Publisher) Clear() {
	p.cache.clear()
}

// Period returns the interval between consecutive publish calls.
func (p *Publisher) Period() (*record.Records, error) {
	recs, err := p.ToRecords()
	if err != nil {
		return nil, err
	}
	per, err := record.NewPeriod(recs, trace.ColumnRclcppPublish)
	if err != nil {
		return nil, err
	}
	return per.ToRecords(), nil
}

// Frequency returns per-second publish counts.
func (p *Publisher) Frequency() (*record.Records, error) {
	recs, err := p.ToRecords()
	if err != nil {
		return nil, err
	}
	freq, err := record.NewFrequency(recs, trace.ColumnRclcppPublish)
	if err != nil {
		return nil, err
	}
	return freq.ToRecords(), nil
}

// Subscription is the view over one subscription's dispatch-to-callback
// pairing.
type Subscription struct {
	object   int64
	topic    string
	nodeName string
	cache    cachedRecords
}

// NewSubscription creates a subscription view. object is the callback
// object dispatched for the subscription.
func NewSubscription(provider RecordsProvider, object int64, topic, nodeName string) *Subscription {
	return &Subscription{
		object:   object,
		topic:    topic,
		nodeName: nodeName,
		cache: cachedRecords{fetch: func() (*record.Records, error) {
			return provider.SubscribeRecords(object)
		}},
	}
}

// CallbackObject returns the callback object dispatched for the
// subscription.
func (s *Subscription) CallbackObject() int64 { return s.object }

// TopicName returns the subscribed topic.
func (s *Subscription) TopicName() string { return s.topic }

// NodeName returns the owning node's fully qualified name.
func (s *Subscription) NodeName() string { return s.nodeName }

// ToRecords returns the subscribe table, one row per delivered message. The
// table is cached and shared; callers must not mutate it.
func (s *Subscription) ToRecords() (*record.Records, error) {
	return s.cache.get()
}

// Clear drops the cached table.
func (s *Subscription) Clear() {
	s.cache.clear()
}

// Communication is the view over one topic flow from a publisher to a
// subscription callback, inter- or intra-process.
type Communication struct {
	identity     CommunicationIdentity
	publisher    *Publisher
	subscription *Subscription
	cache        cachedRecords
}

// NewCommunication creates a communication view pairing publisher and
// subscription on a topic.
func NewCommunication(provider RecordsProvider, id CommunicationIdentity, pub *Publisher, sub *Subscription) *Communication {
	return &Communication{
		identity:     id,
		publisher:    pub,
		subscription: sub,
		cache: cachedRecords{fetch: func() (*record.Records, error) {
			return provider.CommunicationRecords(id)
		}},
	}
}

// TopicName returns the communicated topic.
func (c *Communication) TopicName() string { return c.identity.TopicName }

// IsIntraProcess reports whether the flow stays inside one process.
func (c *Communication) IsIntraProcess() bool { return c.identity.IsIntraProcess }

// Publisher returns the publishing side.
func (c *Communication) Publisher() *Publisher { return c.publisher }

// Subscription returns the subscribing side.
func (c *Communication) Subscription() *Subscription { return c.subscription }

// ToRecords returns the communication table, one row per published message
// with the consuming callback start when the message was consumed. The
// table is cached and shared; callers must not mutate it.
func (c *Communication) ToRecords() (*record.Records, error) {
	return c.cache.get()
}

// Clear drops the cached table.
func (c *Communication) Clear() {
	c.cache.clear()
}

// Latency returns one row per consumed message holding the publish
// timestamp and the delay until the consuming callback started.
func (c *Communication) Latency() (*record.Records, error) {
	recs, err := c.ToRecords()
	if err != nil {
		return nil, err
	}
	lat, err := record.NewLatency(recs, trace.ColumnRclcppPublish, trace.ColumnCallbackStart)
	if err != nil {
		return nil, err
	}
	return lat.ToRecords(), nil
}

// Period returns the interval between consecutive publishes of the flow.
func (c *Communication) Period() (*record.Records, error) {
	recs, err := c.ToRecords()
	if err != nil {
		return nil, err
	}
	per, err := record.NewPeriod(recs, trace.ColumnRclcppPublish)
	if err != nil {
		return nil, err
	}
	return per.ToRecords(), nil
}

// Frequency returns per-second publish counts of the flow.
func (c *Communication) Frequency() (*record.Records, error) {
	recs, err := c.ToRecords()
	if err != nil {
		return nil, err
	}
	freq, err := record.NewFrequency(recs, trace.ColumnRclcppPublish)
	if err != nil {
		return nil, err
	}
	return freq.ToRecords(), nil
}
