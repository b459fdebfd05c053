package trace

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kminoda/CARET-analyze/pkg/compression"
	"github.com/kminoda/CARET-analyze/pkg/errors"
	"github.com/kminoda/CARET-analyze/pkg/jsonutil"
	"github.com/kminoda/CARET-analyze/pkg/logger"
)

// The cache file name must not match DefaultPattern: the cache usually lives
// in the trace directory itself.
const (
	cacheFileName = "converted_cache.zst"
	cacheMetaName = "converted_cache.meta.json"
)

// EventCache persists a decoded, sorted event collection as zstd-compressed
// NDJSON so later sessions skip the raw decode. The cache stores the
// unfiltered stream: filters are cheap and may change between sessions, the
// decode is not.
//
// A cache entry is valid only while the source files it was built from are
// unchanged (same names, sizes and modification times).
type EventCache struct {
	dir string
	log *zap.Logger
}

// NewEventCache creates a cache rooted at dir.
func NewEventCache(dir string) *EventCache {
	return &EventCache{
		dir: dir,
		log: logger.Named("trace.cache"),
	}
}

type cacheMeta struct {
	Files []cacheFileInfo `json:"files"`
}

type cacheFileInfo struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"mod_time"`
}

func describeFiles(files []string) (*cacheMeta, error) {
	meta := &cacheMeta{Files: make([]cacheFileInfo, 0, len(files))}
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeFile, "failed to stat trace file %s", path)
		}
		meta.Files = append(meta.Files, cacheFileInfo{
			Name:    filepath.Base(path),
			Size:    info.Size(),
			ModTime: info.ModTime().UnixNano(),
		})
	}
	return meta, nil
}

func (m *cacheMeta) equal(other *cacheMeta) bool {
	if len(m.Files) != len(other.Files) {
		return false
	}
	for i := range m.Files {
		if m.Files[i] != other.Files[i] {
			return false
		}
	}
	return true
}

// Load returns the cached collection for the given source files. The second
// return value is false when there is no usable cache entry: none stored,
// source files changed, or the entry is unreadable.
func (c *EventCache) Load(ctx context.Context, files []string) (*Collection, bool) {
	metaPath := filepath.Join(c.dir, cacheMetaName)
	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, false
	}

	var stored cacheMeta
	if err := jsonutil.Unmarshal(metaData, &stored); err != nil {
		c.log.Warn("discarding unreadable cache meta", zap.String("path", metaPath), zap.Error(err))
		return nil, false
	}

	current, err := describeFiles(files)
	if err != nil || !current.equal(&stored) {
		return nil, false
	}

	cachePath := filepath.Join(c.dir, cacheFileName)
	f, err := os.Open(cachePath)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	src, err := compression.NewReader(bufio.NewReaderSize(f, readBufferSize), compression.Zstd)
	if err != nil {
		c.log.Warn("discarding unreadable cache", zap.String("path", cachePath), zap.Error(err))
		return nil, false
	}
	defer src.Close()

	events, err := decodeEvents(ctx, src, cachePath)
	if err != nil || len(events) == 0 {
		if err != nil {
			c.log.Warn("discarding corrupt cache", zap.String("path", cachePath), zap.Error(err))
		}
		return nil, false
	}

	c.log.Info("found converted cache", zap.String("path", cachePath), zap.Int("events", len(events)))

	return &Collection{
		Events: events,
		Range: TimeRange{
			Start: events[0].Timestamp,
			End:   events[len(events)-1].Timestamp,
		},
	}, true
}

// Store writes the collection and the source-file fingerprint it was built
// from. The entry becomes visible atomically via rename.
func (c *EventCache) Store(ctx context.Context, files []string, col *Collection) error {
	meta, err := describeFiles(files)
	if err != nil {
		return err
	}

	cachePath := filepath.Join(c.dir, cacheFileName)
	tmpPath := cachePath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeFile, "failed to create cache file %s", tmpPath)
	}
	defer os.Remove(tmpPath)

	if err := writeCacheEvents(ctx, f, col.Events); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeFile, "failed to close cache file %s", tmpPath)
	}
	if err := os.Rename(tmpPath, cachePath); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeFile, "failed to publish cache file %s", cachePath)
	}

	metaData, err := jsonutil.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal cache meta")
	}
	metaPath := filepath.Join(c.dir, cacheMetaName)
	if err := os.WriteFile(metaPath, metaData, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeFile, "failed to write cache meta %s", metaPath)
	}

	c.log.Info("stored converted cache", zap.String("path", cachePath), zap.Int("events", len(col.Events)))
	return nil
}

func writeCacheEvents(ctx context.Context, f *os.File, events []Event) error {
	buf := bufio.NewWriterSize(f, readBufferSize)
	w, err := compression.NewWriter(buf, compression.Zstd, compression.Default)
	if err != nil {
		return err
	}

	enc := jsonutil.NewLineEncoder(w)
	defer enc.Close()

	for i := range events {
		if i%8192 == 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrorTypeInternal, "cache store canceled")
			default:
			}
		}
		if err := enc.Encode(&events[i]); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode cached event")
		}
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish cache stream")
	}
	return buf.Flush()
}
