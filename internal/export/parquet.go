package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/basekick-labs/mppread/internal/pipeline"
	"github.com/basekick-labs/mppread/internal/storage"
	"github.com/basekick-labs/mppread/pkg/models"
)

// memory.GoAllocator is safe for concurrent use.
var allocator = memory.NewGoAllocator()

func parseCompression(s string) (compress.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	default:
		return 0, fmt.Errorf("unsupported parquet compression: %s", s)
	}
}

// parquetSink writes one file per class under base/, plus timephased.parquet
// when any assignment carries timephased work.
type parquetSink struct {
	compression compress.Compression
}

func (s parquetSink) write(ctx context.Context, e *Exporter, result *pipeline.Result, base string) (outputs []Output, err error) {
	// A failed export removes the files it already wrote.
	defer func() {
		if err != nil {
			e.remove(outputs)
			outputs = nil
		}
	}()

	for _, c := range result.Classes {
		schema, arrays, err := entityArrays(c.Entities)
		if err != nil {
			return outputs, fmt.Errorf("class %s: %w", c.Class, err)
		}
		data, err := s.encode(schema, arrays)
		if err != nil {
			return outputs, fmt.Errorf("class %s: %w", c.Class, err)
		}
		out, err := e.put(ctx, storage.JoinKey(base, c.Class.String()+".parquet"), data)
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, out)
	}

	rows := timephasedRows(result)
	if len(rows) > 0 {
		schema, arrays := timephasedArrays(rows)
		data, err := s.encode(schema, arrays)
		if err != nil {
			return outputs, fmt.Errorf("timephased: %w", err)
		}
		out, err := e.put(ctx, storage.JoinKey(base, "timephased.parquet"), data)
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// entityArrays builds a unique_id column followed by one nullable column per
// decoded field.
func entityArrays(entities []*models.Entity) (*arrow.Schema, []arrow.Array, error) {
	cols := columnsOf(entities)
	fields := make([]arrow.Field, 0, len(cols)+1)
	fields = append(fields, arrow.Field{Name: "unique_id", Type: arrow.PrimitiveTypes.Int64})
	for _, col := range cols {
		fields = append(fields, arrow.Field{Name: col.name, Type: arrowType(col.kind), Nullable: true})
	}
	schema := arrow.NewSchema(fields, nil)

	arrays := make([]arrow.Array, 0, len(fields))
	ids := array.NewInt64Builder(allocator)
	defer ids.Release()
	for _, ent := range entities {
		ids.Append(int64(ent.UniqueID))
	}
	arrays = append(arrays, ids.NewArray())

	for _, col := range cols {
		arr, err := buildColumn(col, entities)
		if err != nil {
			releaseAll(arrays)
			return nil, nil, err
		}
		arrays = append(arrays, arr)
	}
	return schema, arrays, nil
}

func arrowType(k columnKind) arrow.DataType {
	switch k {
	case kindInt:
		return arrow.PrimitiveTypes.Int64
	case kindFloat:
		return arrow.PrimitiveTypes.Float64
	case kindBool:
		return arrow.FixedWidthTypes.Boolean
	case kindTime:
		return arrow.FixedWidthTypes.Timestamp_us
	default:
		return arrow.BinaryTypes.String
	}
}

func buildColumn(col column, entities []*models.Entity) (arrow.Array, error) {
	switch col.kind {
	case kindInt:
		b := array.NewInt64Builder(allocator)
		defer b.Release()
		for _, ent := range entities {
			if n, ok := asInt(ent.Values[col.name]); ok {
				b.Append(n)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray(), nil

	case kindFloat:
		b := array.NewFloat64Builder(allocator)
		defer b.Release()
		for _, ent := range entities {
			if f, ok := asFloat(ent.Values[col.name]); ok {
				b.Append(f)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray(), nil

	case kindBool:
		b := array.NewBooleanBuilder(allocator)
		defer b.Release()
		for _, ent := range entities {
			if v, ok := ent.Values[col.name].(bool); ok {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray(), nil

	case kindTime:
		b := array.NewTimestampBuilder(allocator, arrow.FixedWidthTypes.Timestamp_us.(*arrow.TimestampType))
		defer b.Release()
		for _, ent := range entities {
			if t, ok := ent.Values[col.name].(time.Time); ok {
				b.Append(arrow.Timestamp(t.UnixMicro()))
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray(), nil

	case kindString:
		b := array.NewStringBuilder(allocator)
		defer b.Release()
		for _, ent := range entities {
			if v, ok := ent.Values[col.name]; ok {
				b.Append(stringValue(v))
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray(), nil

	default:
		return nil, fmt.Errorf("unsupported column kind %s for %s", col.kind, col.name)
	}
}

// timephasedRow is one span of one assignment.
type timephasedRow struct {
	assignment int32
	kind       string
	seq        int
	span       models.TimephasedWork
	cost       float64
	isCost     bool
}

func timephasedRows(result *pipeline.Result) []timephasedRow {
	asg := result.Class(models.AssignmentClass)
	if asg == nil {
		return nil
	}
	var rows []timephasedRow
	for _, ent := range asg.Entities {
		if ent.Work == nil {
			continue
		}
		add := func(kind string, list []models.TimephasedWork) {
			for i, span := range list {
				rows = append(rows, timephasedRow{assignment: ent.UniqueID, kind: kind, seq: i, span: span})
			}
		}
		add(pipeline.KindComplete, ent.Work.Complete)
		add(pipeline.KindPlanned, ent.Work.Planned)
		add(pipeline.KindBaseline, ent.Work.Baseline)
		for i, c := range ent.Work.BaselineCost {
			rows = append(rows, timephasedRow{
				assignment: ent.UniqueID,
				kind:       pipeline.KindBaselineCost,
				seq:        i,
				span:       models.TimephasedWork{Start: c.Start, Finish: c.Finish},
				cost:       c.TotalAmount,
				isCost:     true,
			})
		}
	}
	return rows
}

func timephasedArrays(rows []timephasedRow) (*arrow.Schema, []arrow.Array) {
	ts := arrow.FixedWidthTypes.Timestamp_us.(*arrow.TimestampType)
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "assignment_unique_id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "kind", Type: arrow.BinaryTypes.String},
		{Name: "seq", Type: arrow.PrimitiveTypes.Int64},
		{Name: "start", Type: ts},
		{Name: "finish", Type: ts},
		{Name: "total", Type: arrow.PrimitiveTypes.Float64},
		{Name: "units", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "per_day", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "modified", Type: arrow.FixedWidthTypes.Boolean},
	}, nil)

	b := array.NewRecordBuilder(allocator, schema)
	defer b.Release()
	for _, r := range rows {
		b.Field(0).(*array.Int64Builder).Append(int64(r.assignment))
		b.Field(1).(*array.StringBuilder).Append(r.kind)
		b.Field(2).(*array.Int64Builder).Append(int64(r.seq))
		b.Field(3).(*array.TimestampBuilder).Append(arrow.Timestamp(r.span.Start.UnixMicro()))
		b.Field(4).(*array.TimestampBuilder).Append(arrow.Timestamp(r.span.Finish.UnixMicro()))
		if r.isCost {
			b.Field(5).(*array.Float64Builder).Append(r.cost)
			b.Field(6).(*array.StringBuilder).AppendNull()
			b.Field(7).(*array.Float64Builder).AppendNull()
		} else {
			b.Field(5).(*array.Float64Builder).Append(r.span.TotalAmount.Value)
			b.Field(6).(*array.StringBuilder).Append(r.span.TotalAmount.Units.String())
			b.Field(7).(*array.Float64Builder).Append(r.span.AmountPerDay.Value)
		}
		b.Field(8).(*array.BooleanBuilder).Append(r.span.Modified)
	}

	rec := b.NewRecord()
	defer rec.Release()
	arrays := make([]arrow.Array, rec.NumCols())
	for i, col := range rec.Columns() {
		col.Retain()
		arrays[i] = col
	}
	return schema, arrays
}

func releaseAll(arrays []arrow.Array) {
	for _, a := range arrays {
		if a != nil {
			a.Release()
		}
	}
}

// encode writes one record batch to an in-memory Parquet file and releases
// arrays.
func (s parquetSink) encode(schema *arrow.Schema, arrays []arrow.Array) ([]byte, error) {
	defer releaseAll(arrays)

	record := array.NewRecord(schema, arrays, -1)
	defer record.Release()

	var buf bytes.Buffer
	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(s.compression),
		parquet.WithDictionaryDefault(true),
		parquet.WithStats(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, &buf, writerProps, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write record batch: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
