package session

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kminoda/CARET-analyze/pkg/compression"
	"github.com/kminoda/CARET-analyze/pkg/config"
	"github.com/kminoda/CARET-analyze/pkg/errors"
	"github.com/kminoda/CARET-analyze/pkg/jsonutil"
	"github.com/kminoda/CARET-analyze/pkg/record"
	"github.com/kminoda/CARET-analyze/pkg/runtime"
	"github.com/kminoda/CARET-analyze/pkg/testutil"
	"github.com/kminoda/CARET-analyze/pkg/trace"
)

func ev(name string, ts int64, fields map[string]int64) trace.Event {
	return trace.Event{Name: name, Timestamp: ts, Tid: 42, Pid: 7, Fields: fields}
}

func regEv(name string, ts int64, fields map[string]int64, strs map[string]string) trace.Event {
	e := ev(name, ts, fields)
	e.Strings = strs
	return e
}

// demoTrace is a two-node recording: /demo/talker publishes twice on
// /chatter (message address 0xA0 reused) and runs a timer, /demo/listener
// consumes both messages through callback 0x400.
func demoTrace() []trace.Event {
	return []trace.Event{
		regEv(trace.EventRclInit, 1, nil, map[string]string{"version": "1.0"}),
		regEv(trace.EventRclNodeInit, 2,
			map[string]int64{"node_handle": 0x100},
			map[string]string{"node_name": "talker", "namespace": "/demo"}),
		regEv(trace.EventRclNodeInit, 3,
			map[string]int64{"node_handle": 0x200},
			map[string]string{"node_name": "listener", "namespace": "/demo"}),
		regEv(trace.EventRclPublisherInit, 4,
			map[string]int64{"publisher_handle": 0x10, "node_handle": 0x100},
			map[string]string{"topic_name": "/chatter"}),
		regEv(trace.EventRclSubscriptionInit, 5,
			map[string]int64{"subscription_handle": 0x300, "node_handle": 0x200},
			map[string]string{"topic_name": "/chatter"}),
		ev(trace.EventRclcppSubscriptionCallbackAdded, 6,
			map[string]int64{"subscription_handle": 0x300, "callback": 0x400}),
		ev(trace.EventRclTimerInit, 7,
			map[string]int64{"timer_handle": 0x500, "period": 100000000}),
		ev(trace.EventRclcppTimerCallbackAdded, 8,
			map[string]int64{"timer_handle": 0x500, "callback": 0x600}),
		ev(trace.EventRclcppTimerLinkNode, 9,
			map[string]int64{"timer_handle": 0x500, "node_handle": 0x100}),
		regEv(trace.EventRclcppCallbackRegister, 10,
			map[string]int64{"callback": 0x400},
			map[string]string{"symbol": "Listener::on_message"}),
		regEv(trace.EventRclcppCallbackRegister, 11,
			map[string]int64{"callback": 0x600},
			map[string]string{"symbol": "Talker::on_timer"}),

		ev(trace.EventRclcppPublish, 1000,
			map[string]int64{"publisher_handle": 0x10, "message": 0xA0, "message_timestamp": 900}),
		ev(trace.EventRclPublish, 1010,
			map[string]int64{"publisher_handle": 0x10, "message": 0xA0}),
		ev(trace.EventDDSWrite, 1020, map[string]int64{"message": 0xA0}),
		ev(trace.EventDDSBindAddrToStamp, 1030,
			map[string]int64{"addr": 0xA0, "source_timestamp": 5001}),
		ev(trace.EventDispatchSubscriptionCallback, 1100,
			map[string]int64{"callback": 0x400, "source_timestamp": 5001, "message_timestamp": 900}),
		ev(trace.EventCallbackStart, 1150,
			map[string]int64{"callback": 0x400, "is_intra_process": 0}),
		ev(trace.EventCallbackEnd, 1200, map[string]int64{"callback": 0x400}),

		ev(trace.EventCallbackStart, 1300, map[string]int64{"callback": 0x600}),
		ev(trace.EventCallbackEnd, 1350, map[string]int64{"callback": 0x600}),
		ev(trace.EventCallbackStart, 1400, map[string]int64{"callback": 0x600}),
		ev(trace.EventCallbackEnd, 1450, map[string]int64{"callback": 0x600}),

		ev(trace.EventRclcppPublish, 2000,
			map[string]int64{"publisher_handle": 0x10, "message": 0xA0, "message_timestamp": 1900}),
		ev(trace.EventRclPublish, 2010,
			map[string]int64{"publisher_handle": 0x10, "message": 0xA0}),
		ev(trace.EventDDSWrite, 2020, map[string]int64{"message": 0xA0}),
		ev(trace.EventDDSBindAddrToStamp, 2030,
			map[string]int64{"addr": 0xA0, "source_timestamp": 5002}),
		ev(trace.EventDispatchSubscriptionCallback, 2100,
			map[string]int64{"callback": 0x400, "source_timestamp": 5002, "message_timestamp": 1900}),
		ev(trace.EventCallbackStart, 2150,
			map[string]int64{"callback": 0x400, "is_intra_process": 0}),
		ev(trace.EventCallbackEnd, 2200, map[string]int64{"callback": 0x400}),
	}
}

func writeTrace(t *testing.T, path string, events []trace.Event) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	enc := jsonutil.NewLineEncoder(f)
	for i := range events {
		require.NoError(t, enc.Encode(&events[i]))
	}
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

// fixtureConfig writes the demo trace into a fresh directory and returns a
// config pointed at it, with caching off and logging quiet.
func fixtureConfig(t *testing.T) *config.AnalysisConfig {
	t.Helper()

	dir := t.TempDir()
	writeTrace(t, filepath.Join(dir, "demo.jsonl"), demoTrace())

	cfg := config.DefaultAnalysisConfig("test")
	cfg.Trace.Dir = dir
	cfg.Trace.CacheEnabled = false
	cfg.Logging.Level = "error"
	return cfg
}

func openFixture(t *testing.T) *Session {
	t.Helper()

	ctx, cancel := testutil.TestContext(t)
	t.Cleanup(cancel)
	sess, err := Open(ctx, fixtureConfig(t))
	require.NoError(t, err)
	return sess
}

func rowMaps(recs *record.Records) []map[string]int64 {
	out := make([]map[string]int64, 0, recs.Len())
	recs.Each(func(_ int, rec *record.Record) bool {
		m := make(map[string]int64, rec.Len())
		for _, name := range rec.Columns() {
			v, _ := rec.Get(name)
			m[name] = v
		}
		out = append(out, m)
		return true
	})
	return out
}

func TestOpenValidatesConfig(t *testing.T) {
	cfg := config.DefaultAnalysisConfig("test")

	_, err := Open(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestOpenNoTraceFiles(t *testing.T) {
	cfg := config.DefaultAnalysisConfig("test")
	cfg.Trace.Dir = t.TempDir()
	cfg.Logging.Level = "error"

	_, err := Open(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestOpenForcedTraceCompression(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "demo.jsonl"))
	require.NoError(t, err)
	w, err := compression.NewWriter(f, compression.Gzip, compression.Default)
	require.NoError(t, err)
	enc := jsonutil.NewLineEncoder(w)
	events := demoTrace()
	for i := range events {
		require.NoError(t, enc.Encode(&events[i]))
	}
	require.NoError(t, enc.Close())
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	cfg := config.DefaultAnalysisConfig("test")
	cfg.Trace.Dir = dir
	cfg.Trace.Compression = "gzip"
	cfg.Trace.CacheEnabled = false
	cfg.Logging.Level = "error"

	ctx, cancel := testutil.TestContext(t)
	t.Cleanup(cancel)
	sess, err := Open(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, sess.Data().CallbackStart().Len())
}

func TestOpenBuildsDataModel(t *testing.T) {
	sess := openFixture(t)

	data := sess.Data()
	assert.Equal(t, 4, data.CallbackStart().Len())
	assert.Equal(t, 2, data.RclcppPublish().Len())
	require.Len(t, data.Nodes(), 2)
	require.Len(t, data.Publishers(), 1)
	require.Len(t, data.Subscriptions(), 1)
	require.Len(t, data.Timers(), 1)
}

func TestSessionSubscriptionCallbacks(t *testing.T) {
	sess := openFixture(t)

	cbs := sess.SubscriptionCallbacks()
	require.Len(t, cbs, 1)
	cb := cbs[0]
	assert.Equal(t, "/demo/listener", cb.NodeName())
	assert.Equal(t, "Listener::on_message", cb.Symbol())
	assert.Equal(t, int64(0x400), cb.CallbackObject())
	assert.Equal(t, "/chatter", cb.TopicName())
	assert.Equal(t, runtime.CallbackSubscription, cb.Type())

	recs, err := cb.ToRecords()
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{
		{trace.ColumnCallbackStart: 1150, trace.ColumnCallbackEnd: 1200,
			trace.ColumnIsIntraProcess: 0, trace.ColumnCallbackObject: 0x400},
		{trace.ColumnCallbackStart: 2150, trace.ColumnCallbackEnd: 2200,
			trace.ColumnIsIntraProcess: 0, trace.ColumnCallbackObject: 0x400},
	}, rowMaps(recs))

	lat, err := cb.Latency()
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{
		{trace.ColumnCallbackStart: 1150, record.ColumnLatency: 50},
		{trace.ColumnCallbackStart: 2150, record.ColumnLatency: 50},
	}, rowMaps(lat))
}

func TestSessionTimerCallbacks(t *testing.T) {
	sess := openFixture(t)

	cbs := sess.TimerCallbacks()
	require.Len(t, cbs, 1)
	cb := cbs[0]
	assert.Equal(t, "/demo/talker", cb.NodeName())
	assert.Equal(t, "Talker::on_timer", cb.Symbol())
	assert.Equal(t, int64(100000000), cb.TimerPeriod())
	assert.Equal(t, runtime.CallbackTimer, cb.Type())

	recs, err := cb.ToRecords()
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{
		{trace.ColumnCallbackStart: 1300, trace.ColumnCallbackEnd: 1350,
			trace.ColumnIsIntraProcess: 0, trace.ColumnCallbackObject: 0x600},
		{trace.ColumnCallbackStart: 1400, trace.ColumnCallbackEnd: 1450,
			trace.ColumnIsIntraProcess: 0, trace.ColumnCallbackObject: 0x600},
	}, rowMaps(recs))
}

func TestSessionPublishers(t *testing.T) {
	sess := openFixture(t)

	pubs := sess.Publishers()
	require.Len(t, pubs, 1)
	pub := pubs[0]
	assert.Equal(t, int64(0x10), pub.Handle())
	assert.Equal(t, "/chatter", pub.TopicName())
	assert.Equal(t, "/demo/talker", pub.NodeName())

	recs, err := pub.ToRecords()
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{
		{trace.ColumnPublisherHandle: 0x10, trace.ColumnRclcppPublish: 1000,
			trace.ColumnRclPublish: 1010, trace.ColumnDDSWrite: 1020,
			trace.ColumnSourceTimestamp: 5001, trace.ColumnMessageTimestamp: 900},
		{trace.ColumnPublisherHandle: 0x10, trace.ColumnRclcppPublish: 2000,
			trace.ColumnRclPublish: 2010, trace.ColumnDDSWrite: 2020,
			trace.ColumnSourceTimestamp: 5002, trace.ColumnMessageTimestamp: 1900},
	}, rowMaps(recs))
}

func TestSessionCommunications(t *testing.T) {
	sess := openFixture(t)

	comms := sess.Communications()
	require.Len(t, comms, 1)
	comm := comms[0]
	assert.Equal(t, "/chatter", comm.TopicName())
	assert.False(t, comm.IsIntraProcess())
	assert.Equal(t, int64(0x10), comm.Publisher().Handle())
	assert.Equal(t, "/demo/listener", comm.Subscription().NodeName())

	lat, err := comm.Latency()
	require.NoError(t, err)
	assert.Equal(t, []map[string]int64{
		{trace.ColumnRclcppPublish: 1000, record.ColumnLatency: 150},
		{trace.ColumnRclcppPublish: 2000, record.ColumnLatency: 150},
	}, rowMaps(lat))
}

func TestSessionProviderFiltersByIdentity(t *testing.T) {
	sess := openFixture(t)

	recs, err := sess.PublishRecords(0x10)
	require.NoError(t, err)
	assert.Equal(t, 2, recs.Len())

	recs, err = sess.PublishRecords(0x99)
	require.NoError(t, err)
	assert.Equal(t, 0, recs.Len())

	recs, err = sess.SubscribeRecords(0x400)
	require.NoError(t, err)
	assert.Equal(t, 2, recs.Len())

	recs, err = sess.CallbackRecords(runtime.CallbackIdentity{CallbackObject: 0x600})
	require.NoError(t, err)
	assert.Equal(t, 2, recs.Len())

	id := runtime.CommunicationIdentity{
		TopicName:       "/chatter",
		PublisherHandle: 0x10,
		CallbackObject:  0x400,
	}
	recs, err = sess.CommunicationRecords(id)
	require.NoError(t, err)
	assert.Equal(t, 2, recs.Len())

	id.IsIntraProcess = true
	recs, err = sess.CommunicationRecords(id)
	require.NoError(t, err)
	assert.Equal(t, 0, recs.Len())
}

func TestSessionPrecompose(t *testing.T) {
	sess := openFixture(t)

	require.NoError(t, sess.Precompose(context.Background()))

	recs, err := sess.CommunicationRecords(runtime.CommunicationIdentity{
		TopicName:       "/chatter",
		PublisherHandle: 0x10,
		CallbackObject:  0x400,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, recs.Len())
}

func TestSessionPrecomposeCanceled(t *testing.T) {
	sess := openFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sess.Precompose(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
}

func TestOpenAppliesFilters(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.Filters.Events = []string{trace.EventCallbackStart, trace.EventCallbackEnd}

	sess, err := Open(context.Background(), cfg)
	require.NoError(t, err)

	// Registration events always pass, data events outside the list do not.
	assert.Equal(t, 4, sess.Data().CallbackStart().Len())
	assert.Equal(t, 0, sess.Data().RclcppPublish().Len())
	require.Len(t, sess.Data().Publishers(), 1)
}

func TestOpenServesFromEventCache(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.Trace.CacheEnabled = true
	tracePath := filepath.Join(cfg.Trace.Dir, "demo.jsonl")

	first, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfg.Trace.Dir, "converted_cache.zst"))

	// Replace the trace file with garbage of identical size and mtime. The
	// second open can only succeed if it never re-reads the file.
	info, err := os.Stat(tracePath)
	require.NoError(t, err)
	garbage := bytes.Repeat([]byte("x"), int(info.Size()))
	require.NoError(t, os.WriteFile(tracePath, garbage, 0644))
	require.NoError(t, os.Chtimes(tracePath, info.ModTime(), info.ModTime()))

	second, err := Open(context.Background(), cfg)
	require.NoError(t, err)

	want, err := first.Source().CallbackRecords()
	require.NoError(t, err)
	got, err := second.Source().CallbackRecords()
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestOpenInvalidatesStaleCache(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.Trace.CacheEnabled = true
	tracePath := filepath.Join(cfg.Trace.Dir, "demo.jsonl")

	_, err := Open(context.Background(), cfg)
	require.NoError(t, err)

	// Growing the file changes its fingerprint, so the cache must miss and
	// the new event must show up.
	f, err := os.OpenFile(tracePath, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	enc := jsonutil.NewLineEncoder(f)
	extra := ev(trace.EventCallbackStart, 3000, map[string]int64{"callback": 0x400})
	require.NoError(t, enc.Encode(&extra))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	sess, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, sess.Data().CallbackStart().Len())
}

func TestSessionExportArrow(t *testing.T) {
	sess := openFixture(t)
	sess.cfg.Output.Dir = t.TempDir()
	sess.cfg.Output.Format = "arrow"

	recs, err := sess.Source().CallbackRecords()
	require.NoError(t, err)

	path, err := sess.ExportTable("callbacks", recs)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "callbacks.arrow"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSessionExportNDJSONCompressed(t *testing.T) {
	sess := openFixture(t)
	sess.cfg.Output.Dir = t.TempDir()
	sess.cfg.Output.Format = "jsonl"
	sess.cfg.Output.Compression = "zstd"

	recs, err := sess.Source().CallbackRecords()
	require.NoError(t, err)

	path, err := sess.ExportTable("callbacks", recs)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "callbacks.jsonl.zst"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := compression.NewReader(f, compression.Zstd)
	require.NoError(t, err)
	defer r.Close()

	lines := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, recs.Len(), lines)
}

func TestSessionExportRequiresDir(t *testing.T) {
	sess := openFixture(t)
	sess.cfg.Output.Dir = ""

	_, err := sess.ExportTable("callbacks", record.NewRecords())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestMemoFetchesOnce(t *testing.T) {
	calls := 0
	table := record.NewRecords()
	var m memo

	fetch := func() (*record.Records, error) {
		calls++
		return table, nil
	}

	got, err := m.get(fetch)
	require.NoError(t, err)
	got2, err := m.get(fetch)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Same(t, got, got2)
}
