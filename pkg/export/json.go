package export

import (
	"io"

	"github.com/kminoda/CARET-analyze/pkg/errors"
	"github.com/kminoda/CARET-analyze/pkg/jsonutil"
	"github.com/kminoda/CARET-analyze/pkg/record"
)

// WriteNDJSON writes a table as newline-delimited JSON, one object per row.
// Only set columns appear; keys are emitted in sorted order.
func WriteNDJSON(w io.Writer, recs *record.Records) error {
	enc := jsonutil.NewLineEncoder(w)
	defer enc.Close()

	var encErr error
	recs.Each(func(i int, rec *record.Record) bool {
		row := make(map[string]int64, rec.Len())
		for _, name := range rec.Columns() {
			v, _ := rec.Get(name)
			row[name] = v
		}
		if err := enc.Encode(row); err != nil {
			encErr = errors.Wrapf(err, errors.ErrorTypeFile, "failed to encode row %d", i)
			return false
		}
		return true
	})
	return encErr
}
