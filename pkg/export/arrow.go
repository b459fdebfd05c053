// Package export writes composed trace tables to external formats: Arrow
// IPC files for columnar analysis tooling and NDJSON for line-oriented
// consumers. Unset cells export as Arrow nulls or omitted JSON keys.
package export

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/kminoda/CARET-analyze/pkg/errors"
	"github.com/kminoda/CARET-analyze/pkg/record"
)

// arrowBatchSize is how many rows go into one IPC record batch.
const arrowBatchSize = 8192

// ArrowSchema maps a table schema to an Arrow schema: one nullable int64
// field per column, in schema order.
func ArrowSchema(columns *record.Columns) *arrow.Schema {
	fields := make([]arrow.Field, 0, columns.Len())
	for i := 0; i < columns.Len(); i++ {
		fields = append(fields, arrow.Field{
			Name:     columns.At(i).Name(),
			Type:     arrow.PrimitiveTypes.Int64,
			Nullable: true,
		})
	}
	return arrow.NewSchema(fields, nil)
}

// NewArrowRecord converts a table into one Arrow record batch. Unset cells
// become nulls. A nil allocator selects the default Go allocator. The caller
// must Release the returned record.
func NewArrowRecord(recs *record.Records, alloc memory.Allocator) (arrow.Record, error) {
	if alloc == nil {
		alloc = memory.NewGoAllocator()
	}
	schema := ArrowSchema(recs.Columns())

	builder := array.NewRecordBuilder(alloc, schema)
	defer builder.Release()

	if err := appendRows(builder, schema, recs, 0, recs.Len()); err != nil {
		return nil, err
	}
	return builder.NewRecord(), nil
}

// WriteArrowFile writes a table as an Arrow IPC file, in batches of
// arrowBatchSize rows.
func WriteArrowFile(w io.Writer, recs *record.Records) error {
	alloc := memory.NewGoAllocator()
	schema := ArrowSchema(recs.Columns())

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(alloc))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create arrow file writer")
	}

	builder := array.NewRecordBuilder(alloc, schema)
	defer builder.Release()

	for from := 0; from < recs.Len(); from += arrowBatchSize {
		to := from + arrowBatchSize
		if to > recs.Len() {
			to = recs.Len()
		}
		if err := appendRows(builder, schema, recs, from, to); err != nil {
			fw.Close()
			return err
		}
		batch := builder.NewRecord()
		err := fw.Write(batch)
		batch.Release()
		if err != nil {
			fw.Close()
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write arrow record batch")
		}
	}

	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close arrow file writer")
	}
	return nil
}

// appendRows appends rows [from, to) to the builder's field arrays.
func appendRows(builder *array.RecordBuilder, schema *arrow.Schema, recs *record.Records, from, to int) error {
	for i, field := range schema.Fields() {
		fb, ok := builder.Field(i).(*array.Int64Builder)
		if !ok {
			return errors.Newf(errors.ErrorTypeInternal, "field %q is not an int64 builder", field.Name)
		}
		for row := from; row < to; row++ {
			if v, ok := recs.At(row).Get(field.Name); ok {
				fb.Append(v)
			} else {
				fb.AppendNull()
			}
		}
	}
	return nil
}
