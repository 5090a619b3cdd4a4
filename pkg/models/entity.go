package models

import (
	"sort"
	"time"
)

// FieldContainer receives decoded field values.
type FieldContainer interface {
	Set(id FieldID, value any)
}

// Entity is one decoded task, resource, assignment or relation. Only fields
// that decoded successfully are present.
type Entity struct {
	Class    FieldClass            `json:"class" msgpack:"class"`
	UniqueID int32                 `json:"unique_id" msgpack:"unique_id"`
	Fields   map[FieldID]any       `json:"-" msgpack:"-"`
	Values   map[string]any        `json:"fields" msgpack:"fields"`
	Work     *AssignmentTimephased `json:"timephased,omitempty" msgpack:"timephased,omitempty"`
}

// NewEntity creates an empty entity.
func NewEntity(class FieldClass, uniqueID int32) *Entity {
	return &Entity{
		Class:    class,
		UniqueID: uniqueID,
		Fields:   make(map[FieldID]any),
		Values:   make(map[string]any),
	}
}

// Set stores a field value; nil values are ignored.
func (e *Entity) Set(id FieldID, value any) {
	if value == nil {
		return
	}
	e.Fields[id] = value
	if def, ok := LookupField(id); ok {
		e.Values[def.Name] = value
	} else {
		e.Values[id.String()] = value
	}
}

// Unset removes a field value.
func (e *Entity) Unset(id FieldID) {
	if _, ok := e.Fields[id]; !ok {
		return
	}
	delete(e.Fields, id)
	if def, ok := LookupField(id); ok {
		delete(e.Values, def.Name)
	} else {
		delete(e.Values, id.String())
	}
}

// Get returns a field value.
func (e *Entity) Get(id FieldID) (any, bool) {
	v, ok := e.Fields[id]
	return v, ok
}

// Time returns a date field.
func (e *Entity) Time(id FieldID) (time.Time, bool) {
	v, ok := e.Fields[id].(time.Time)
	return v, ok
}

// Float returns a numeric field.
func (e *Entity) Float(id FieldID) (float64, bool) {
	v, ok := e.Fields[id].(float64)
	return v, ok
}

// Bytes returns a binary field.
func (e *Entity) Bytes(id FieldID) ([]byte, bool) {
	v, ok := e.Fields[id].([]byte)
	return v, ok
}

// SortedFields returns the populated field IDs in ascending order.
func (e *Entity) SortedFields() []FieldID {
	ids := make([]FieldID, 0, len(e.Fields))
	for id := range e.Fields {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TimephasedWork is work performed or planned over a contiguous date range.
type TimephasedWork struct {
	Start        time.Time `json:"start" msgpack:"start"`
	Finish       time.Time `json:"finish" msgpack:"finish"`
	TotalAmount  Duration  `json:"total_amount" msgpack:"total_amount"`
	AmountPerDay Duration  `json:"amount_per_day" msgpack:"amount_per_day"`
	Modified     bool      `json:"modified" msgpack:"modified"`
}

// TimephasedCost is a cost incurred over a contiguous date range.
type TimephasedCost struct {
	Start       time.Time `json:"start" msgpack:"start"`
	Finish      time.Time `json:"finish" msgpack:"finish"`
	TotalAmount float64   `json:"total_amount" msgpack:"total_amount"`
}

// AssignmentTimephased is the timephased view of one resource assignment.
type AssignmentTimephased struct {
	Complete     []TimephasedWork `json:"complete,omitempty" msgpack:"complete,omitempty"`
	Planned      []TimephasedWork `json:"planned,omitempty" msgpack:"planned,omitempty"`
	Baseline     []TimephasedWork `json:"baseline,omitempty" msgpack:"baseline,omitempty"`
	BaselineCost []TimephasedCost `json:"baseline_cost,omitempty" msgpack:"baseline_cost,omitempty"`
	Modified     bool             `json:"modified" msgpack:"modified"`
}
