package trace

import (
	"go.uber.org/zap"

	"github.com/kminoda/CARET-analyze/pkg/errors"
	"github.com/kminoda/CARET-analyze/pkg/logger"
	"github.com/kminoda/CARET-analyze/pkg/record"
)

// Tracepoint names.
const (
	EventCallbackStart                            = "callback_start"
	EventCallbackEnd                              = "callback_end"
	EventRclcppPublish                            = "rclcpp_publish"
	EventRclPublish                               = "rcl_publish"
	EventDDSWrite                                 = "dds_write"
	EventDDSBindAddrToStamp                       = "dds_bind_addr_to_stamp"
	EventRclcppIntraPublish                       = "rclcpp_intra_publish"
	EventMessageConstruct                         = "message_construct"
	EventDispatchSubscriptionCallback             = "dispatch_subscription_callback"
	EventDispatchIntraProcessSubscriptionCallback = "dispatch_intra_process_subscription_callback"

	EventRclInit                         = "rcl_init"
	EventRclNodeInit                     = "rcl_node_init"
	EventRclPublisherInit                = "rcl_publisher_init"
	EventRclSubscriptionInit             = "rcl_subscription_init"
	EventRclcppSubscriptionCallbackAdded = "rclcpp_subscription_callback_added"
	EventRclTimerInit                    = "rcl_timer_init"
	EventRclcppTimerCallbackAdded        = "rclcpp_timer_callback_added"
	EventRclcppTimerLinkNode             = "rclcpp_timer_link_node"
	EventRclcppCallbackRegister          = "rclcpp_callback_register"
)

// Column names of the raw and composed tables.
const (
	ColumnCallbackStart          = "callback_start_timestamp"
	ColumnCallbackEnd            = "callback_end_timestamp"
	ColumnCallbackObject         = "callback_object"
	ColumnIsIntraProcess         = "is_intra_process"
	ColumnPublisherHandle        = "publisher_handle"
	ColumnRclcppPublish          = "rclcpp_publish_timestamp"
	ColumnRclPublish             = "rcl_publish_timestamp"
	ColumnDDSWrite               = "dds_write_timestamp"
	ColumnDDSBind                = "dds_bind_timestamp"
	ColumnMessageAddr            = "message_addr"
	ColumnSourceTimestamp        = "source_timestamp"
	ColumnMessageTimestamp       = "message_timestamp"
	ColumnDispatch               = "dispatch_timestamp"
	ColumnRclcppIntraPublish     = "rclcpp_intra_publish_timestamp"
	ColumnMessageConstruct       = "message_construct_timestamp"
	ColumnOriginalMessageAddr    = "original_message_addr"
	ColumnConstructedMessageAddr = "constructed_message_addr"
)

// Payload field names of the wire format.
const (
	fieldCallback           = "callback"
	fieldIsIntraProcess     = "is_intra_process"
	fieldPublisherHandle    = "publisher_handle"
	fieldMessage            = "message"
	fieldMessageTimestamp   = "message_timestamp"
	fieldAddr               = "addr"
	fieldSourceTimestamp    = "source_timestamp"
	fieldOriginalMessage    = "original_message"
	fieldConstructedMessage = "constructed_message"
	fieldNodeHandle         = "node_handle"
	fieldNodeName           = "node_name"
	fieldNamespace          = "namespace"
	fieldTopicName          = "topic_name"
	fieldSubscriptionHandle = "subscription_handle"
	fieldTimerHandle        = "timer_handle"
	fieldPeriod             = "period"
	fieldSymbol             = "symbol"
	fieldVersion            = "version"
)

// ContextInfo describes one traced process runtime.
type ContextInfo struct {
	Pid     int64
	Version string
}

// NodeInfo describes a registered node.
type NodeInfo struct {
	Handle    int64
	Name      string
	Namespace string
	Pid       int64
}

// PublisherInfo describes a registered publisher.
type PublisherInfo struct {
	Handle     int64
	NodeHandle int64
	Topic      string
}

// SubscriptionInfo describes a registered subscription and, once linked, the
// callback object dispatched for it.
type SubscriptionInfo struct {
	Handle         int64
	NodeHandle     int64
	Topic          string
	CallbackObject int64
}

// TimerInfo describes a registered timer and, once linked, its owning node.
type TimerInfo struct {
	Handle         int64
	NodeHandle     int64
	Period         int64
	CallbackObject int64
}

type handlerFunc func(ev *Event) error

// DataModel accumulates raw per-tracepoint tables and the registration
// metadata of one trace. Events must be fed in timestamp order so the raw
// tables stay sorted on their timestamp columns, which the composition
// merges require.
type DataModel struct {
	log *zap.Logger

	callbackStart        *record.Records
	callbackEnd          *record.Records
	rclcppPublish        *record.Records
	rclPublish           *record.Records
	ddsWrite             *record.Records
	ddsBindAddrToStamp   *record.Records
	rclcppIntraPublish   *record.Records
	messageConstruct     *record.Records
	dispatchSubscription *record.Records
	dispatchIntraProcess *record.Records

	contexts      []ContextInfo
	nodes         []NodeInfo
	publishers    []PublisherInfo
	subscriptions []SubscriptionInfo
	timers        []TimerInfo
	symbols       map[int64]string

	subscriptionIndex map[int64]int
	timerIndex        map[int64]int

	counts   map[string]int
	handlers map[string]handlerFunc
}

// NewDataModel creates an empty DataModel with its table schemas declared.
func NewDataModel() *DataModel {
	d := &DataModel{
		log: logger.Named("trace.model"),

		callbackStart: record.NewRecords(
			record.NewColumnValue(ColumnCallbackStart, record.AttrSystemTime, record.AttrStartTime, record.AttrNodeIO),
			record.NewColumnValue(ColumnCallbackObject),
			record.NewColumnValue(ColumnIsIntraProcess),
		),
		callbackEnd: record.NewRecords(
			record.NewColumnValue(ColumnCallbackEnd, record.AttrSystemTime, record.AttrEndTime, record.AttrNodeIO),
			record.NewColumnValue(ColumnCallbackObject),
		),
		rclcppPublish: record.NewRecords(
			record.NewColumnValue(ColumnRclcppPublish, record.AttrSystemTime, record.AttrNodeIO),
			record.NewColumnValue(ColumnPublisherHandle),
			record.NewColumnValue(ColumnMessageAddr, record.AttrResourceID),
			record.NewColumnValue(ColumnMessageTimestamp),
		),
		rclPublish: record.NewRecords(
			record.NewColumnValue(ColumnRclPublish, record.AttrSystemTime),
			record.NewColumnValue(ColumnPublisherHandle),
			record.NewColumnValue(ColumnMessageAddr, record.AttrResourceID),
		),
		ddsWrite: record.NewRecords(
			record.NewColumnValue(ColumnDDSWrite, record.AttrSystemTime),
			record.NewColumnValue(ColumnMessageAddr, record.AttrResourceID),
		),
		ddsBindAddrToStamp: record.NewRecords(
			record.NewColumnValue(ColumnDDSBind, record.AttrSystemTime),
			record.NewColumnValue(ColumnMessageAddr, record.AttrResourceID),
			record.NewColumnValue(ColumnSourceTimestamp),
		),
		rclcppIntraPublish: record.NewRecords(
			record.NewColumnValue(ColumnRclcppIntraPublish, record.AttrSystemTime, record.AttrNodeIO),
			record.NewColumnValue(ColumnPublisherHandle),
			record.NewColumnValue(ColumnMessageAddr, record.AttrResourceID),
			record.NewColumnValue(ColumnMessageTimestamp),
		),
		messageConstruct: record.NewRecords(
			record.NewColumnValue(ColumnMessageConstruct, record.AttrSystemTime),
			record.NewColumnValue(ColumnOriginalMessageAddr, record.AttrResourceID),
			record.NewColumnValue(ColumnConstructedMessageAddr, record.AttrResourceID),
		),
		dispatchSubscription: record.NewRecords(
			record.NewColumnValue(ColumnDispatch, record.AttrSystemTime),
			record.NewColumnValue(ColumnCallbackObject),
			record.NewColumnValue(ColumnSourceTimestamp),
			record.NewColumnValue(ColumnMessageTimestamp),
		),
		dispatchIntraProcess: record.NewRecords(
			record.NewColumnValue(ColumnDispatch, record.AttrSystemTime),
			record.NewColumnValue(ColumnCallbackObject),
			record.NewColumnValue(ColumnMessageAddr, record.AttrResourceID),
			record.NewColumnValue(ColumnMessageTimestamp),
		),

		symbols:           make(map[int64]string),
		subscriptionIndex: make(map[int64]int),
		timerIndex:        make(map[int64]int),
		counts:            make(map[string]int),
	}

	d.handlers = map[string]handlerFunc{
		EventCallbackStart:                            d.onCallbackStart,
		EventCallbackEnd:                              d.onCallbackEnd,
		EventRclcppPublish:                            d.onRclcppPublish,
		EventRclPublish:                               d.onRclPublish,
		EventDDSWrite:                                 d.onDDSWrite,
		EventDDSBindAddrToStamp:                       d.onDDSBindAddrToStamp,
		EventRclcppIntraPublish:                       d.onRclcppIntraPublish,
		EventMessageConstruct:                         d.onMessageConstruct,
		EventDispatchSubscriptionCallback:             d.onDispatchSubscription,
		EventDispatchIntraProcessSubscriptionCallback: d.onDispatchIntraProcess,
		EventRclInit:                                  d.onRclInit,
		EventRclNodeInit:                              d.onRclNodeInit,
		EventRclPublisherInit:                         d.onRclPublisherInit,
		EventRclSubscriptionInit:                      d.onRclSubscriptionInit,
		EventRclcppSubscriptionCallbackAdded:          d.onSubscriptionCallbackAdded,
		EventRclTimerInit:                             d.onRclTimerInit,
		EventRclcppTimerCallbackAdded:                 d.onTimerCallbackAdded,
		EventRclcppTimerLinkNode:                      d.onTimerLinkNode,
		EventRclcppCallbackRegister:                   d.onCallbackRegister,
	}

	return d
}

// Handle dispatches one event to its tracepoint handler. Events with no
// handler are counted and skipped.
func (d *DataModel) Handle(ev *Event) error {
	d.counts[ev.Name]++
	h, ok := d.handlers[ev.Name]
	if !ok {
		return nil
	}
	return h(ev)
}

// Counts returns how many events of each name were handled.
func (d *DataModel) Counts() map[string]int {
	out := make(map[string]int, len(d.counts))
	for k, v := range d.counts {
		out[k] = v
	}
	return out
}

// Raw table accessors.

// CallbackStart returns the raw callback_start table.
func (d *DataModel) CallbackStart() *record.Records { return d.callbackStart }

// CallbackEnd returns the raw callback_end table.
func (d *DataModel) CallbackEnd() *record.Records { return d.callbackEnd }

// RclcppPublish returns the raw rclcpp_publish table.
func (d *DataModel) RclcppPublish() *record.Records { return d.rclcppPublish }

// RclPublish returns the raw rcl_publish table.
func (d *DataModel) RclPublish() *record.Records { return d.rclPublish }

// DDSWrite returns the raw dds_write table.
func (d *DataModel) DDSWrite() *record.Records { return d.ddsWrite }

// DDSBindAddrToStamp returns the raw dds_bind_addr_to_stamp table.
func (d *DataModel) DDSBindAddrToStamp() *record.Records { return d.ddsBindAddrToStamp }

// RclcppIntraPublish returns the raw rclcpp_intra_publish table.
func (d *DataModel) RclcppIntraPublish() *record.Records { return d.rclcppIntraPublish }

// MessageConstruct returns the raw message_construct table.
func (d *DataModel) MessageConstruct() *record.Records { return d.messageConstruct }

// DispatchSubscription returns the raw dispatch_subscription_callback table.
func (d *DataModel) DispatchSubscription() *record.Records { return d.dispatchSubscription }

// DispatchIntraProcess returns the raw
// dispatch_intra_process_subscription_callback table.
func (d *DataModel) DispatchIntraProcess() *record.Records { return d.dispatchIntraProcess }

// Registration metadata accessors.

// Contexts returns the traced process runtimes.
func (d *DataModel) Contexts() []ContextInfo { return d.contexts }

// Nodes returns the registered nodes.
func (d *DataModel) Nodes() []NodeInfo { return d.nodes }

// Publishers returns the registered publishers.
func (d *DataModel) Publishers() []PublisherInfo { return d.publishers }

// Subscriptions returns the registered subscriptions.
func (d *DataModel) Subscriptions() []SubscriptionInfo { return d.subscriptions }

// Timers returns the registered timers.
func (d *DataModel) Timers() []TimerInfo { return d.timers }

// CallbackSymbol returns the registered source symbol of a callback object.
func (d *DataModel) CallbackSymbol(object int64) (string, bool) {
	s, ok := d.symbols[object]
	return s, ok
}

func requireField(ev *Event, name string) (int64, error) {
	v, ok := ev.Field(name)
	if !ok {
		return 0, errors.Newf(errors.ErrorTypeData, "%s event at %d missing field %q", ev.Name, ev.Timestamp, name)
	}
	return v, nil
}

func requireString(ev *Event, name string) (string, error) {
	v, ok := ev.StringField(name)
	if !ok {
		return "", errors.Newf(errors.ErrorTypeData, "%s event at %d missing field %q", ev.Name, ev.Timestamp, name)
	}
	return v, nil
}

func (d *DataModel) onCallbackStart(ev *Event) error {
	obj, err := requireField(ev, fieldCallback)
	if err != nil {
		return err
	}
	d.callbackStart.Append(record.NewRecord(map[string]int64{
		ColumnCallbackStart:  ev.Timestamp,
		ColumnCallbackObject: obj,
		ColumnIsIntraProcess: ev.FieldOr(fieldIsIntraProcess, 0),
	}))
	return nil
}

func (d *DataModel) onCallbackEnd(ev *Event) error {
	obj, err := requireField(ev, fieldCallback)
	if err != nil {
		return err
	}
	d.callbackEnd.Append(record.NewRecord(map[string]int64{
		ColumnCallbackEnd:    ev.Timestamp,
		ColumnCallbackObject: obj,
	}))
	return nil
}

func (d *DataModel) onRclcppPublish(ev *Event) error {
	handle, err := requireField(ev, fieldPublisherHandle)
	if err != nil {
		return err
	}
	msg, err := requireField(ev, fieldMessage)
	if err != nil {
		return err
	}
	row := map[string]int64{
		ColumnRclcppPublish:   ev.Timestamp,
		ColumnPublisherHandle: handle,
		ColumnMessageAddr:     msg,
	}
	if ts, ok := ev.Field(fieldMessageTimestamp); ok {
		row[ColumnMessageTimestamp] = ts
	}
	d.rclcppPublish.Append(record.NewRecord(row))
	return nil
}

func (d *DataModel) onRclPublish(ev *Event) error {
	handle, err := requireField(ev, fieldPublisherHandle)
	if err != nil {
		return err
	}
	msg, err := requireField(ev, fieldMessage)
	if err != nil {
		return err
	}
	d.rclPublish.Append(record.NewRecord(map[string]int64{
		ColumnRclPublish:      ev.Timestamp,
		ColumnPublisherHandle: handle,
		ColumnMessageAddr:     msg,
	}))
	return nil
}

func (d *DataModel) onDDSWrite(ev *Event) error {
	msg, err := requireField(ev, fieldMessage)
	if err != nil {
		return err
	}
	d.ddsWrite.Append(record.NewRecord(map[string]int64{
		ColumnDDSWrite:    ev.Timestamp,
		ColumnMessageAddr: msg,
	}))
	return nil
}

func (d *DataModel) onDDSBindAddrToStamp(ev *Event) error {
	addr, err := requireField(ev, fieldAddr)
	if err != nil {
		return err
	}
	stamp, err := requireField(ev, fieldSourceTimestamp)
	if err != nil {
		return err
	}
	d.ddsBindAddrToStamp.Append(record.NewRecord(map[string]int64{
		ColumnDDSBind:         ev.Timestamp,
		ColumnMessageAddr:     addr,
		ColumnSourceTimestamp: stamp,
	}))
	return nil
}

func (d *DataModel) onRclcppIntraPublish(ev *Event) error {
	handle, err := requireField(ev, fieldPublisherHandle)
	if err != nil {
		return err
	}
	msg, err := requireField(ev, fieldMessage)
	if err != nil {
		return err
	}
	row := map[string]int64{
		ColumnRclcppIntraPublish: ev.Timestamp,
		ColumnPublisherHandle:    handle,
		ColumnMessageAddr:        msg,
	}
	if ts, ok := ev.Field(fieldMessageTimestamp); ok {
		row[ColumnMessageTimestamp] = ts
	}
	d.rclcppIntraPublish.Append(record.NewRecord(row))
	return nil
}

func (d *DataModel) onMessageConstruct(ev *Event) error {
	orig, err := requireField(ev, fieldOriginalMessage)
	if err != nil {
		return err
	}
	constructed, err := requireField(ev, fieldConstructedMessage)
	if err != nil {
		return err
	}
	d.messageConstruct.Append(record.NewRecord(map[string]int64{
		ColumnMessageConstruct:       ev.Timestamp,
		ColumnOriginalMessageAddr:    orig,
		ColumnConstructedMessageAddr: constructed,
	}))
	return nil
}

func (d *DataModel) onDispatchSubscription(ev *Event) error {
	obj, err := requireField(ev, fieldCallback)
	if err != nil {
		return err
	}
	stamp, err := requireField(ev, fieldSourceTimestamp)
	if err != nil {
		return err
	}
	row := map[string]int64{
		ColumnDispatch:        ev.Timestamp,
		ColumnCallbackObject:  obj,
		ColumnSourceTimestamp: stamp,
	}
	if ts, ok := ev.Field(fieldMessageTimestamp); ok {
		row[ColumnMessageTimestamp] = ts
	}
	d.dispatchSubscription.Append(record.NewRecord(row))
	return nil
}

func (d *DataModel) onDispatchIntraProcess(ev *Event) error {
	obj, err := requireField(ev, fieldCallback)
	if err != nil {
		return err
	}
	msg, err := requireField(ev, fieldMessage)
	if err != nil {
		return err
	}
	row := map[string]int64{
		ColumnDispatch:       ev.Timestamp,
		ColumnCallbackObject: obj,
		ColumnMessageAddr:    msg,
	}
	if ts, ok := ev.Field(fieldMessageTimestamp); ok {
		row[ColumnMessageTimestamp] = ts
	}
	d.dispatchIntraProcess.Append(record.NewRecord(row))
	return nil
}

func (d *DataModel) onRclInit(ev *Event) error {
	version, _ := ev.StringField(fieldVersion)
	d.contexts = append(d.contexts, ContextInfo{Pid: ev.Pid, Version: version})
	return nil
}

func (d *DataModel) onRclNodeInit(ev *Event) error {
	handle, err := requireField(ev, fieldNodeHandle)
	if err != nil {
		return err
	}
	name, err := requireString(ev, fieldNodeName)
	if err != nil {
		return err
	}
	namespace, _ := ev.StringField(fieldNamespace)
	d.nodes = append(d.nodes, NodeInfo{
		Handle:    handle,
		Name:      name,
		Namespace: namespace,
		Pid:       ev.Pid,
	})
	return nil
}

func (d *DataModel) onRclPublisherInit(ev *Event) error {
	handle, err := requireField(ev, fieldPublisherHandle)
	if err != nil {
		return err
	}
	node, err := requireField(ev, fieldNodeHandle)
	if err != nil {
		return err
	}
	topic, err := requireString(ev, fieldTopicName)
	if err != nil {
		return err
	}
	d.publishers = append(d.publishers, PublisherInfo{
		Handle:     handle,
		NodeHandle: node,
		Topic:      topic,
	})
	return nil
}

func (d *DataModel) onRclSubscriptionInit(ev *Event) error {
	handle, err := requireField(ev, fieldSubscriptionHandle)
	if err != nil {
		return err
	}
	node, err := requireField(ev, fieldNodeHandle)
	if err != nil {
		return err
	}
	topic, err := requireString(ev, fieldTopicName)
	if err != nil {
		return err
	}
	d.subscriptionIndex[handle] = len(d.subscriptions)
	d.subscriptions = append(d.subscriptions, SubscriptionInfo{
		Handle:     handle,
		NodeHandle: node,
		Topic:      topic,
	})
	return nil
}

func (d *DataModel) onSubscriptionCallbackAdded(ev *Event) error {
	handle, err := requireField(ev, fieldSubscriptionHandle)
	if err != nil {
		return err
	}
	obj, err := requireField(ev, fieldCallback)
	if err != nil {
		return err
	}
	i, ok := d.subscriptionIndex[handle]
	if !ok {
		return errors.Newf(errors.ErrorTypeData, "callback added to unregistered subscription %#x", handle)
	}
	d.subscriptions[i].CallbackObject = obj
	return nil
}

func (d *DataModel) onRclTimerInit(ev *Event) error {
	handle, err := requireField(ev, fieldTimerHandle)
	if err != nil {
		return err
	}
	d.timerIndex[handle] = len(d.timers)
	d.timers = append(d.timers, TimerInfo{
		Handle: handle,
		Period: ev.FieldOr(fieldPeriod, 0),
	})
	return nil
}

func (d *DataModel) onTimerCallbackAdded(ev *Event) error {
	handle, err := requireField(ev, fieldTimerHandle)
	if err != nil {
		return err
	}
	obj, err := requireField(ev, fieldCallback)
	if err != nil {
		return err
	}
	i, ok := d.timerIndex[handle]
	if !ok {
		return errors.Newf(errors.ErrorTypeData, "callback added to unregistered timer %#x", handle)
	}
	d.timers[i].CallbackObject = obj
	return nil
}

func (d *DataModel) onTimerLinkNode(ev *Event) error {
	handle, err := requireField(ev, fieldTimerHandle)
	if err != nil {
		return err
	}
	node, err := requireField(ev, fieldNodeHandle)
	if err != nil {
		return err
	}
	i, ok := d.timerIndex[handle]
	if !ok {
		return errors.Newf(errors.ErrorTypeData, "node linked to unregistered timer %#x", handle)
	}
	d.timers[i].NodeHandle = node
	return nil
}

func (d *DataModel) onCallbackRegister(ev *Event) error {
	obj, err := requireField(ev, fieldCallback)
	if err != nil {
		return err
	}
	symbol, err := requireString(ev, fieldSymbol)
	if err != nil {
		return err
	}
	d.symbols[obj] = symbol
	return nil
}
