package trace

import (
	"bytes"
	stdjson "encoding/json"

	"github.com/kminoda/CARET-analyze/pkg/errors"
	"github.com/kminoda/CARET-analyze/pkg/jsonutil"
)

// Envelope keys of the NDJSON wire format. The underscore prefix keeps them
// from colliding with tracepoint payload fields.
const (
	keyName      = "_name"
	keyTimestamp = "_timestamp"
	keyTid       = "_tid"
	keyPid       = "_pid"
	keyProcname  = "_procname"
)

// Event is one decoded instrumentation event. Numeric payload fields land in
// Fields, string payload fields (entity names, callback symbols) in Strings.
// Both maps are sparse: a field an event never recorded is simply absent.
type Event struct {
	Name      string
	Timestamp int64
	Tid       int64
	Pid       int64
	Procname  string
	Fields    map[string]int64
	Strings   map[string]string
}

// Field returns a numeric payload field. The second return value reports
// whether the event carries it.
func (e *Event) Field(name string) (int64, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

// FieldOr returns a numeric payload field, or def when absent.
func (e *Event) FieldOr(name string, def int64) int64 {
	if v, ok := e.Fields[name]; ok {
		return v
	}
	return def
}

// StringField returns a string payload field.
func (e *Event) StringField(name string) (string, bool) {
	v, ok := e.Strings[name]
	return v, ok
}

// MarshalJSON encodes the event as a flat JSON object: envelope keys plus
// payload fields.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, 5+len(e.Fields)+len(e.Strings))
	m[keyName] = e.Name
	m[keyTimestamp] = e.Timestamp
	m[keyTid] = e.Tid
	m[keyPid] = e.Pid
	if e.Procname != "" {
		m[keyProcname] = e.Procname
	}
	for k, v := range e.Fields {
		m[k] = v
	}
	for k, v := range e.Strings {
		m[k] = v
	}
	return jsonutil.Marshal(m)
}

// UnmarshalJSON decodes a flat JSON object. Numbers are decoded through
// json.Number so nanosecond timestamps and addresses survive beyond float64
// precision.
func (e *Event) UnmarshalJSON(data []byte) error {
	dec := jsonutil.GetDecoder(bytes.NewReader(data))
	defer jsonutil.PutDecoder(dec)

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "malformed event object")
	}
	return e.fromRaw(raw)
}

func (e *Event) fromRaw(raw map[string]interface{}) error {
	for k, v := range raw {
		switch k {
		case keyName:
			s, ok := v.(string)
			if !ok {
				return errors.Newf(errors.ErrorTypeData, "event field %s must be a string", keyName)
			}
			e.Name = s
		case keyProcname:
			s, ok := v.(string)
			if !ok {
				return errors.Newf(errors.ErrorTypeData, "event field %s must be a string", keyProcname)
			}
			e.Procname = s
		case keyTimestamp, keyTid, keyPid:
			n, err := asInt64(v)
			if err != nil {
				return errors.Wrapf(err, errors.ErrorTypeData, "event field %s", k)
			}
			switch k {
			case keyTimestamp:
				e.Timestamp = n
			case keyTid:
				e.Tid = n
			case keyPid:
				e.Pid = n
			}
		default:
			if s, ok := v.(string); ok {
				if e.Strings == nil {
					e.Strings = make(map[string]string, 2)
				}
				e.Strings[k] = s
				continue
			}
			n, err := asInt64(v)
			if err != nil {
				return errors.Wrapf(err, errors.ErrorTypeData, "event field %s", k)
			}
			if e.Fields == nil {
				e.Fields = make(map[string]int64, 4)
			}
			e.Fields[k] = n
		}
	}

	if e.Name == "" {
		return errors.Newf(errors.ErrorTypeData, "event missing %s", keyName)
	}
	return nil
}

func asInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case stdjson.Number:
		return n.Int64()
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errors.Newf(errors.ErrorTypeData, "unsupported field type %T", v)
	}
}
