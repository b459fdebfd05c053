package trace

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kminoda/CARET-analyze/pkg/compression"
	"github.com/kminoda/CARET-analyze/pkg/errors"
	"github.com/kminoda/CARET-analyze/pkg/jsonutil"
	"github.com/kminoda/CARET-analyze/pkg/logger"
)

// DefaultPattern selects trace event files when the configuration names none.
const DefaultPattern = "*.jsonl*"

const readBufferSize = 256 * 1024

// Collection holds the decoded events of one trace, globally sorted by
// timestamp, together with the trace time range.
type Collection struct {
	Events []Event
	Range  TimeRange
}

// Len returns the number of events.
func (c *Collection) Len() int { return len(c.Events) }

// Apply returns the events admitted by every filter, preserving order.
// With no filters it returns the events unchanged.
func (c *Collection) Apply(filters ...Filter) []Event {
	if len(filters) == 0 {
		return c.Events
	}
	kept := make([]Event, 0, len(c.Events))
	for i := range c.Events {
		accepted := true
		for _, f := range filters {
			if !f.Accept(&c.Events[i], c.Range) {
				accepted = false
				break
			}
		}
		if accepted {
			kept = append(kept, c.Events[i])
		}
	}
	return kept
}

// Reader loads NDJSON trace event files. Files compressed with a recognized
// extension (.zst, .gz, .lz4, .s2) are decompressed on the fly. Files are
// decoded concurrently, then merged into a single timestamp-sorted stream.
type Reader struct {
	log     *zap.Logger
	workers int
	algo    compression.Algorithm
	forced  bool
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithWorkers sets how many files are decoded concurrently.
func WithWorkers(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger sets the reader's logger.
func WithLogger(log *zap.Logger) ReaderOption {
	return func(r *Reader) {
		r.log = log
	}
}

// WithCompression decodes every file with algo instead of detecting the
// compression from the file extension.
func WithCompression(algo compression.Algorithm) ReaderOption {
	return func(r *Reader) {
		r.algo = algo
		r.forced = true
	}
}

// NewReader creates a Reader.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{
		log:     logger.Named("trace.reader"),
		workers: 4,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListFiles returns the trace event files under dir matching pattern, in
// lexical order. An empty pattern means DefaultPattern.
func ListFiles(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeValidation, "bad trace file pattern %q", pattern)
	}
	if len(files) == 0 {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "no trace files matching %q under %s", pattern, dir)
	}
	sort.Strings(files)
	return files, nil
}

// Load reads every file under dir matching pattern.
func (r *Reader) Load(ctx context.Context, dir, pattern string) (*Collection, error) {
	files, err := ListFiles(dir, pattern)
	if err != nil {
		return nil, err
	}
	return r.LoadFiles(ctx, files)
}

// LoadFiles reads the given event files and returns their events as one
// sorted collection. Any malformed file fails the whole load.
func (r *Reader) LoadFiles(ctx context.Context, files []string) (*Collection, error) {
	start := time.Now()

	perFile := make([][]Event, len(files))
	errs := make([]error, len(files))

	var wg sync.WaitGroup
	sem := make(chan struct{}, r.workers)
	for i, path := range files {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			perFile[i], errs[i] = r.readFile(ctx, path)
		}(i, path)
	}
	wg.Wait()

	total := 0
	for i := range files {
		if errs[i] != nil {
			return nil, errs[i]
		}
		total += len(perFile[i])
	}
	if total == 0 {
		return nil, errors.New(errors.ErrorTypeNotFound, "trace files contain no events")
	}

	events := make([]Event, 0, total)
	for _, evs := range perFile {
		events = append(events, evs...)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})

	col := &Collection{
		Events: events,
		Range: TimeRange{
			Start: events[0].Timestamp,
			End:   events[len(events)-1].Timestamp,
		},
	}

	r.log.Info("loaded trace events",
		zap.Int("files", len(files)),
		zap.Int("events", total),
		zap.Duration("elapsed", time.Since(start)))

	return col, nil
}

func (r *Reader) readFile(ctx context.Context, path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeFile, "failed to open trace file %s", path)
	}
	defer f.Close()

	algo := r.algo
	if !r.forced {
		algo, _ = compression.DetectByExtension(path)
	}
	src, err := compression.NewReader(bufio.NewReaderSize(f, readBufferSize), algo)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeData, "failed to open %s", path)
	}
	defer src.Close()

	return decodeEvents(ctx, src, path)
}

// decodeEvents reads an NDJSON event stream until EOF.
func decodeEvents(ctx context.Context, src io.Reader, path string) ([]Event, error) {
	dec := jsonutil.GetDecoder(src)
	defer jsonutil.PutDecoder(dec)

	var events []Event
	for {
		if len(events)%8192 == 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Wrapf(ctx.Err(), errors.ErrorTypeInternal, "trace load canceled at %s", path)
			default:
			}
		}

		var ev Event
		if err := dec.Decode(&ev); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, errors.ErrorTypeData, "failed to decode event %d of %s", len(events), path)
		}
		events = append(events, ev)
	}
	return events, nil
}
