// Package session ties the analysis pipeline together. A Session loads the
// trace event files of one recording, applies the configured filters, builds
// the data model and serves composed tables to the runtime views.
//
// Example usage:
//
//	cfg := config.DefaultAnalysisConfig("e2e-latency")
//	cfg.Trace.Dir = "/var/trace/session-1"
//
//	sess, err := session.Open(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, cb := range sess.SubscriptionCallbacks() {
//	    latency, err := cb.Latency()
//	    ...
//	}
package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/kminoda/CARET-analyze/pkg/compression"
	"github.com/kminoda/CARET-analyze/pkg/config"
	"github.com/kminoda/CARET-analyze/pkg/errors"
	"github.com/kminoda/CARET-analyze/pkg/export"
	"github.com/kminoda/CARET-analyze/pkg/logger"
	"github.com/kminoda/CARET-analyze/pkg/record"
	"github.com/kminoda/CARET-analyze/pkg/runtime"
	"github.com/kminoda/CARET-analyze/pkg/trace"
)

// Session holds the loaded trace of one recording and composes its analysis
// tables on demand. Each composed table is built once and shared by every
// view; a Session is safe for concurrent use after Open returns.
type Session struct {
	cfg    *config.AnalysisConfig
	log    *zap.Logger
	data   *trace.DataModel
	source *trace.Source

	callback  memo
	publish   memo
	subscribe memo
	inter     memo
	intra     memo
}

// memo builds a composed table once. The trace is immutable after Open, so
// recomposition could never produce a different table.
type memo struct {
	once sync.Once
	recs *record.Records
	err  error
}

func (m *memo) get(fetch func() (*record.Records, error)) (*record.Records, error) {
	m.once.Do(func() {
		m.recs, m.err = fetch()
	})
	return m.recs, m.err
}

// compose memoizes a table composition, logging a failure once.
func (s *Session) compose(m *memo, table string, fetch func() (*record.Records, error)) (*record.Records, error) {
	return m.get(func() (*record.Records, error) {
		recs, err := fetch()
		if err != nil {
			s.log.Error("table composition failed", zap.String("table", table), zap.Error(err))
		}
		return recs, err
	})
}

// Open loads the trace named by cfg and returns a ready Session. It fails
// when the configuration is invalid, no trace files match, any file is
// malformed, or an event violates the data model.
func Open(ctx context.Context, cfg *config.AnalysisConfig) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := initLogging(&cfg.Logging); err != nil {
		return nil, err
	}
	log := logger.Named("session").With(zap.String("name", cfg.Name))

	files, err := trace.ListFiles(cfg.Trace.Dir, cfg.Trace.Pattern)
	if err != nil {
		return nil, err
	}

	col, err := loadEvents(ctx, cfg, files, log)
	if err != nil {
		return nil, err
	}

	events := col.Apply(buildFilters(&cfg.Filters)...)
	log.Info("trace loaded",
		zap.Int("files", len(files)),
		zap.Int("events", col.Len()),
		zap.Int("admitted", len(events)),
	)

	data := trace.NewDataModel()
	for i := range events {
		if err := data.Handle(&events[i]); err != nil {
			return nil, err
		}
	}

	return &Session{
		cfg:    cfg,
		log:    log,
		data:   data,
		source: trace.NewSource(data),
	}, nil
}

func initLogging(lc *config.LoggingConfig) error {
	logCfg := logger.Config{
		Level:       lc.Level,
		Development: lc.Development,
		Encoding:    lc.Encoding,
	}
	if err := logger.Init(logCfg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logging")
	}
	return nil
}

// loadEvents returns the sorted, unfiltered event collection, served from
// the event cache when one matches the trace files.
func loadEvents(ctx context.Context, cfg *config.AnalysisConfig, files []string, log *zap.Logger) (*trace.Collection, error) {
	var cache *trace.EventCache
	if cfg.Trace.CacheEnabled {
		cache = trace.NewEventCache(cfg.Trace.CacheLocation())
		if col, ok := cache.Load(ctx, files); ok {
			log.Debug("event cache hit", zap.Int("events", col.Len()))
			return col, nil
		}
	}

	opts := []trace.ReaderOption{
		trace.WithWorkers(cfg.Performance.GetWorkers()),
		trace.WithLogger(log),
	}
	if name := cfg.Trace.Compression; name != "" && name != "auto" {
		algo, err := compression.ParseAlgorithm(name)
		if err != nil {
			return nil, err
		}
		opts = append(opts, trace.WithCompression(algo))
	}

	col, err := trace.NewReader(opts...).LoadFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		// A failed store only costs the next session a reload.
		if err := cache.Store(ctx, files, col); err != nil {
			log.Warn("failed to store event cache", zap.Error(err))
		}
	}
	return col, nil
}

func buildFilters(fc *config.FilterConfig) []trace.Filter {
	var filters []trace.Filter
	if len(fc.Events) > 0 {
		filters = append(filters, trace.PassFilter(fc.Events...))
	}
	if fc.StripLeadSeconds > 0 || fc.StripTrailSeconds > 0 {
		filters = append(filters, trace.StripFilter(fc.StripLeadSeconds, fc.StripTrailSeconds))
	}
	if fc.DurationSeconds > 0 {
		filters = append(filters, trace.DurationFilter(fc.DurationSeconds, fc.OffsetSeconds))
	}
	return filters
}

// Precompose builds all five composed tables up front, bounded by the
// configured worker count. The compositions are independent and the memos
// synchronize, so later accessors just reuse the results. Returns the first
// composition error.
func (s *Session) Precompose(ctx context.Context) error {
	type job struct {
		m     *memo
		table string
		fetch func() (*record.Records, error)
	}
	jobs := []job{
		{&s.callback, "callback", s.source.CallbackRecords},
		{&s.publish, "publish", s.source.PublishRecords},
		{&s.subscribe, "subscribe", s.source.SubscribeRecords},
		{&s.inter, "inter_process_comm", s.source.InterProcessCommRecords},
		{&s.intra, "intra_process_comm", s.source.IntraProcessCommRecords},
	}

	sem := make(chan struct{}, s.cfg.Performance.GetWorkers())
	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		if err := ctx.Err(); err != nil {
			errs[i] = errors.Wrap(err, errors.ErrorTypeInternal, "precompose canceled")
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, j job) {
			defer wg.Done()
			defer func() { <-sem }()
			_, errs[i] = s.compose(j.m, j.table, j.fetch)
		}(i, j)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Data exposes the raw per-tracepoint tables and registration metadata.
func (s *Session) Data() *trace.DataModel { return s.data }

// Source exposes the table compositions without identity filtering.
func (s *Session) Source() *trace.Source { return s.source }

// CallbackRecords implements runtime.RecordsProvider.
func (s *Session) CallbackRecords(id runtime.CallbackIdentity) (*record.Records, error) {
	recs, err := s.compose(&s.callback, "callback", s.source.CallbackRecords)
	if err != nil {
		return nil, err
	}
	return filterByColumn(recs, trace.ColumnCallbackObject, id.CallbackObject), nil
}

// CommunicationRecords implements runtime.RecordsProvider. Publishes never
// consumed by the identified callback are excluded: an unmatched publish
// carries no callback object to attribute it with.
func (s *Session) CommunicationRecords(id runtime.CommunicationIdentity) (*record.Records, error) {
	m, table, fetch := &s.inter, "inter_process_comm", s.source.InterProcessCommRecords
	if id.IsIntraProcess {
		m, table, fetch = &s.intra, "intra_process_comm", s.source.IntraProcessCommRecords
	}
	recs, err := s.compose(m, table, fetch)
	if err != nil {
		return nil, err
	}
	return recs.Filter(func(rec *record.Record) bool {
		handle, ok := rec.Get(trace.ColumnPublisherHandle)
		if !ok || handle != id.PublisherHandle {
			return false
		}
		obj, ok := rec.Get(trace.ColumnCallbackObject)
		return ok && obj == id.CallbackObject
	}), nil
}

// PublishRecords implements runtime.RecordsProvider.
func (s *Session) PublishRecords(handle int64) (*record.Records, error) {
	recs, err := s.compose(&s.publish, "publish", s.source.PublishRecords)
	if err != nil {
		return nil, err
	}
	return filterByColumn(recs, trace.ColumnPublisherHandle, handle), nil
}

// SubscribeRecords implements runtime.RecordsProvider.
func (s *Session) SubscribeRecords(object int64) (*record.Records, error) {
	recs, err := s.compose(&s.subscribe, "subscribe", s.source.SubscribeRecords)
	if err != nil {
		return nil, err
	}
	return filterByColumn(recs, trace.ColumnCallbackObject, object), nil
}

func filterByColumn(recs *record.Records, column string, value int64) *record.Records {
	return recs.Filter(func(rec *record.Record) bool {
		v, ok := rec.Get(column)
		return ok && v == value
	})
}

// TimerCallbacks returns a view for every timer whose callback was
// registered, in registration order.
func (s *Session) TimerCallbacks() []*runtime.TimerCallback {
	var callbacks []*runtime.TimerCallback
	for _, tm := range s.data.Timers() {
		if tm.CallbackObject == 0 {
			continue
		}
		id := runtime.CallbackIdentity{
			NodeName:       s.nodeName(tm.NodeHandle),
			Symbol:         s.symbol(tm.CallbackObject),
			CallbackObject: tm.CallbackObject,
		}
		callbacks = append(callbacks, runtime.NewTimerCallback(s, id, tm.Period))
	}
	return callbacks
}

// SubscriptionCallbacks returns a view for every subscription whose callback
// was registered, in registration order.
func (s *Session) SubscriptionCallbacks() []*runtime.SubscriptionCallback {
	var callbacks []*runtime.SubscriptionCallback
	for _, sub := range s.data.Subscriptions() {
		if sub.CallbackObject == 0 {
			continue
		}
		id := runtime.CallbackIdentity{
			NodeName:       s.nodeName(sub.NodeHandle),
			Symbol:         s.symbol(sub.CallbackObject),
			CallbackObject: sub.CallbackObject,
		}
		callbacks = append(callbacks, runtime.NewSubscriptionCallback(s, id, sub.Topic))
	}
	return callbacks
}

// Publishers returns a view for every registered publisher.
func (s *Session) Publishers() []*runtime.Publisher {
	var pubs []*runtime.Publisher
	for _, p := range s.data.Publishers() {
		pubs = append(pubs, runtime.NewPublisher(s, p.Handle, p.Topic, s.nodeName(p.NodeHandle)))
	}
	return pubs
}

// Subscriptions returns a view for every subscription whose callback was
// registered.
func (s *Session) Subscriptions() []*runtime.Subscription {
	var subs []*runtime.Subscription
	for _, sub := range s.data.Subscriptions() {
		if sub.CallbackObject == 0 {
			continue
		}
		subs = append(subs, runtime.NewSubscription(s, sub.CallbackObject, sub.Topic, s.nodeName(sub.NodeHandle)))
	}
	return subs
}

// Communications pairs every publisher with every subscription callback on
// the same topic as an inter-process flow. Intra-process flows are reachable
// through CommunicationRecords with IsIntraProcess set, or through Source.
func (s *Session) Communications() []*runtime.Communication {
	var comms []*runtime.Communication
	for _, p := range s.data.Publishers() {
		for _, sub := range s.data.Subscriptions() {
			if sub.Topic != p.Topic || sub.CallbackObject == 0 {
				continue
			}
			id := runtime.CommunicationIdentity{
				TopicName:       p.Topic,
				PublisherHandle: p.Handle,
				CallbackObject:  sub.CallbackObject,
			}
			comms = append(comms, runtime.NewCommunication(s, id,
				runtime.NewPublisher(s, p.Handle, p.Topic, s.nodeName(p.NodeHandle)),
				runtime.NewSubscription(s, sub.CallbackObject, sub.Topic, s.nodeName(sub.NodeHandle)),
			))
		}
	}
	return comms
}

// nodeName returns the fully qualified name for a node handle, or the empty
// string when the handle was never registered.
func (s *Session) nodeName(handle int64) string {
	for _, n := range s.data.Nodes() {
		if n.Handle != handle {
			continue
		}
		if n.Namespace == "/" {
			return "/" + n.Name
		}
		return n.Namespace + "/" + n.Name
	}
	return ""
}

func (s *Session) symbol(object int64) string {
	sym, _ := s.data.CallbackSymbol(object)
	return sym
}

// ExportTable writes recs under the configured output directory and returns
// the written file path. The arrow format ignores output compression; jsonl
// output is wrapped with the configured algorithm.
func (s *Session) ExportTable(name string, recs *record.Records) (string, error) {
	if s.cfg.Output.Dir == "" {
		return "", errors.New(errors.ErrorTypeConfig, "output.dir is required for export")
	}
	if err := os.MkdirAll(s.cfg.Output.Dir, 0o755); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory")
	}

	format := s.cfg.Output.Format
	if format == "" {
		format = "arrow"
	}

	var path string
	var err error
	switch format {
	case "arrow":
		path, err = s.exportArrow(name, recs)
	case "jsonl":
		path, err = s.exportNDJSON(name, recs)
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown output format %q", format)
	}
	if err != nil {
		return "", err
	}
	s.log.Info("exported table",
		zap.String("table", name),
		zap.String("path", path),
		zap.Int("rows", recs.Len()),
	)
	return path, nil
}

func (s *Session) exportArrow(name string, recs *record.Records) (string, error) {
	path := filepath.Join(s.cfg.Output.Dir, name+".arrow")
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrorTypeFile, "failed to create %s", path)
	}
	if err := export.WriteArrowFile(f, recs); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, errors.ErrorTypeFile, "failed to close %s", path)
	}
	return path, nil
}

func (s *Session) exportNDJSON(name string, recs *record.Records) (string, error) {
	algoName := s.cfg.Output.Compression
	if algoName == "auto" {
		algoName = "none"
	}
	algo, err := compression.ParseAlgorithm(algoName)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.cfg.Output.Dir, name+".jsonl"+algo.Extension())
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrorTypeFile, "failed to create %s", path)
	}
	w, err := compression.NewWriter(f, algo, compression.Default)
	if err != nil {
		f.Close()
		return "", err
	}
	if err := export.WriteNDJSON(w, recs); err != nil {
		w.Close()
		f.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return "", errors.Wrapf(err, errors.ErrorTypeFile, "failed to finish %s", path)
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, errors.ErrorTypeFile, "failed to close %s", path)
	}
	return path, nil
}
