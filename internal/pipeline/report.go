package pipeline

import (
	"time"

	"github.com/basekick-labs/mppread/internal/logger"
	"github.com/basekick-labs/mppread/internal/metrics"
	"github.com/basekick-labs/mppread/internal/varstore"
)

// Report summarises one Run.
type Report struct {
	RunID      string           `json:"run_id" msgpack:"run_id"`
	Bundle     string           `json:"bundle,omitempty" msgpack:"bundle,omitempty"`
	Version    string           `json:"version" msgpack:"version"`
	Calendar   string           `json:"calendar" msgpack:"calendar"`
	Policy     string           `json:"merge_policy" msgpack:"merge_policy"`
	StartedAt  time.Time        `json:"started_at" msgpack:"started_at"`
	Duration   time.Duration    `json:"duration_ns" msgpack:"duration_ns"`
	Classes    []ClassReport    `json:"classes" msgpack:"classes"`
	Timephased map[string]int   `json:"timephased,omitempty" msgpack:"timephased,omitempty"`
	Metrics    metrics.Snapshot `json:"metrics" msgpack:"metrics"`
	Warnings   []logger.Entry   `json:"warnings,omitempty" msgpack:"warnings,omitempty"`
}

// ClassReport describes how one class decoded.
type ClassReport struct {
	Class    string          `json:"class" msgpack:"class"`
	Fields   int             `json:"fields" msgpack:"fields"`
	Embedded bool            `json:"embedded_field_map" msgpack:"embedded_field_map"`
	Records  int             `json:"records" msgpack:"records"`
	Decoded  int             `json:"decoded" msgpack:"decoded"`
	Skipped  map[string]int  `json:"skipped,omitempty" msgpack:"skipped,omitempty"`
	Var      *varstore.Stats `json:"var,omitempty" msgpack:"var,omitempty"`
}

// Entities returns the number of entities decoded across classes.
func (r *Report) Entities() int {
	n := 0
	for _, c := range r.Classes {
		n += c.Decoded
	}
	return n
}

// Skipped returns the number of records skipped across classes.
func (r *Report) Skipped() int {
	n := 0
	for _, c := range r.Classes {
		for _, k := range c.Skipped {
			n += k
		}
	}
	return n
}
