package export

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/basekick-labs/mppread/internal/pipeline"
	"github.com/vmihailenco/msgpack/v5"
)

// document is the JSON and MessagePack export layout.
type document struct {
	Generator  string           `json:"generator" msgpack:"generator"`
	ExportedAt time.Time        `json:"exported_at" msgpack:"exported_at"`
	Result     *pipeline.Result `json:"result" msgpack:"result"`
}

func newDocument(result *pipeline.Result) document {
	return document{Generator: "mppread", ExportedAt: time.Now().UTC(), Result: result}
}

type jsonSink struct {
	pretty bool
}

func (s jsonSink) write(ctx context.Context, e *Exporter, result *pipeline.Result, base string) ([]Output, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if s.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(newDocument(result)); err != nil {
		return nil, err
	}
	out, err := e.put(ctx, base+".json", buf.Bytes())
	if err != nil {
		return nil, err
	}
	return []Output{out}, nil
}

type msgpackSink struct{}

func (msgpackSink) write(ctx context.Context, e *Exporter, result *pipeline.Result, base string) ([]Output, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	if err := enc.Encode(newDocument(result)); err != nil {
		return nil, err
	}
	out, err := e.put(ctx, base+".msgpack", buf.Bytes())
	if err != nil {
		return nil, err
	}
	return []Output{out}, nil
}

// ReadMsgpack decodes a MessagePack export into a generic document.
func ReadMsgpack(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
