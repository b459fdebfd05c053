// Package runtime provides typed views over composed trace tables:
// callbacks, publishers, subscriptions and communications. Each view
// materializes its table lazily through a RecordsProvider and caches it
// until cleared.
package runtime

import (
	"github.com/kminoda/CARET-analyze/pkg/record"
)

// CallbackIdentity names one callback instance of the traced application.
type CallbackIdentity struct {
	NodeName       string
	Symbol         string
	CallbackObject int64
}

// CommunicationIdentity names one publisher-to-subscription flow on a topic.
type CommunicationIdentity struct {
	TopicName       string
	PublisherHandle int64
	CallbackObject  int64
	IsIntraProcess  bool
}

// RecordsProvider supplies composed trace tables to the typed views. The
// returned tables are shared: callers must not mutate them.
type RecordsProvider interface {
	// CallbackRecords returns the activation table of one callback.
	CallbackRecords(id CallbackIdentity) (*record.Records, error)

	// CommunicationRecords returns the publish-to-callback table of one
	// topic flow.
	CommunicationRecords(id CommunicationIdentity) (*record.Records, error)

	// PublishRecords returns the publish stack table of one publisher.
	PublishRecords(handle int64) (*record.Records, error)

	// SubscribeRecords returns the dispatch-to-callback table of one
	// subscription callback.
	SubscribeRecords(object int64) (*record.Records, error)
}
