// Package jsonutil is the JSON entry point for the analysis packages,
// backed by github.com/goccy/go-json. Trace ingestion decodes millions of
// NDJSON events per run and export writes composed rows back out line by
// line; everything JSON-shaped goes through here so number handling stays
// consistent. Decoders always carry UseNumber: nanosecond timestamps and
// object addresses exceed float64 precision and would corrupt silently.
package jsonutil

import (
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// Marshal encodes v.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalIndent encodes v with indentation, for small files a person may
// open in an editor.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

var decoders = sync.Pool{
	New: func() interface{} {
		return new(Decoder)
	},
}

// Decoder decodes one JSON stream with exact number semantics. Obtain it
// with GetDecoder and release it with PutDecoder when the stream is done.
type Decoder struct {
	*gojson.Decoder
}

// GetDecoder returns a pooled Decoder reading from r with UseNumber set.
// goccy decoders bind to their stream at construction and cannot be
// reset, so the pool recycles the wrapper around a fresh decoder.
func GetDecoder(r io.Reader) *Decoder {
	d := decoders.Get().(*Decoder)
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	d.Decoder = dec
	return d
}

// PutDecoder releases d. It must not be used afterwards.
func PutDecoder(d *Decoder) {
	d.Decoder = nil
	decoders.Put(d)
}

// LineEncoder writes values as newline-delimited JSON and counts them, so
// writers can report row totals without a second pass over the data.
type LineEncoder struct {
	enc   *gojson.Encoder
	count int
}

// NewLineEncoder creates a LineEncoder writing NDJSON to w.
func NewLineEncoder(w io.Writer) *LineEncoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &LineEncoder{enc: enc}
}

// Encode writes one value and its trailing newline.
func (le *LineEncoder) Encode(v interface{}) error {
	if err := le.enc.Encode(v); err != nil {
		return err
	}
	le.count++
	return nil
}

// Count reports how many values have been encoded.
func (le *LineEncoder) Count() int {
	return le.count
}

// Close invalidates the encoder. Count stays readable; the underlying
// writer is not closed.
func (le *LineEncoder) Close() error {
	le.enc = nil
	return nil
}
