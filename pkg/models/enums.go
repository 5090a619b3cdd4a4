package models

import "fmt"

// ConstraintType is the scheduling constraint of a task.
type ConstraintType int

const (
	AsSoonAsPossible ConstraintType = iota
	AsLateAsPossible
	MustStartOn
	MustFinishOn
	StartNoEarlierThan
	StartNoLaterThan
	FinishNoEarlierThan
	FinishNoLaterThan
)

var constraintNames = [...]string{
	"as_soon_as_possible",
	"as_late_as_possible",
	"must_start_on",
	"must_finish_on",
	"start_no_earlier_than",
	"start_no_later_than",
	"finish_no_earlier_than",
	"finish_no_later_than",
}

// ConstraintTypeFromInt maps a stored value to a ConstraintType.
func ConstraintTypeFromInt(v int) (ConstraintType, bool) {
	if v < 0 || v >= len(constraintNames) {
		return AsSoonAsPossible, false
	}
	return ConstraintType(v), true
}

func (c ConstraintType) String() string {
	if c < 0 || int(c) >= len(constraintNames) {
		return fmt.Sprintf("ConstraintType(%d)", int(c))
	}
	return constraintNames[c]
}

// Priority is a task or project priority in the range 0-1000.
type Priority int

const (
	PriorityLowest     Priority = 100
	PriorityMedium     Priority = 500
	PriorityHighest    Priority = 900
	PriorityDoNotLevel Priority = 1000
)

var priorityNames = map[Priority]string{
	100:  "lowest",
	200:  "very_low",
	300:  "lower",
	400:  "low",
	500:  "medium",
	600:  "high",
	700:  "higher",
	800:  "very_high",
	900:  "highest",
	1000: "do_not_level",
}

// PriorityFromInt maps a stored value to a Priority; values outside 0-1000
// read as medium.
func PriorityFromInt(v int) Priority {
	if v < 0 || v > 1000 {
		return PriorityMedium
	}
	return Priority(v)
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("%d", int(p))
}

// AccrueType controls when a cost is incurred.
type AccrueType int

const (
	AccrueStart AccrueType = iota + 1
	AccrueEnd
	AccrueProrated
)

// AccrueTypeFromInt maps a stored value to an AccrueType; unknown values
// accrue prorated.
func AccrueTypeFromInt(v int) AccrueType {
	if v < int(AccrueStart) || v > int(AccrueProrated) {
		return AccrueProrated
	}
	return AccrueType(v)
}

func (a AccrueType) String() string {
	switch a {
	case AccrueStart:
		return "start"
	case AccrueEnd:
		return "end"
	default:
		return "prorated"
	}
}

// WorkGroup is a resource's workgroup messaging setting.
type WorkGroup int

const (
	WorkGroupDefault WorkGroup = iota
	WorkGroupNone
	WorkGroupEmail
	WorkGroupWeb
)

// WorkGroupFromInt maps a stored value to a WorkGroup.
func WorkGroupFromInt(v int) WorkGroup {
	if v < int(WorkGroupDefault) || v > int(WorkGroupWeb) {
		return WorkGroupDefault
	}
	return WorkGroup(v)
}

func (w WorkGroup) String() string {
	return [...]string{"default", "none", "email", "web"}[w]
}

// TaskType is the scheduling type of a task.
type TaskType int

const (
	FixedUnits TaskType = iota
	FixedDuration
	FixedWork
)

// TaskTypeFromInt maps a stored value to a TaskType.
func TaskTypeFromInt(v int) TaskType {
	switch v {
	case 1:
		return FixedDuration
	case 2:
		return FixedWork
	default:
		return FixedUnits
	}
}

func (t TaskType) String() string {
	return [...]string{"fixed_units", "fixed_duration", "fixed_work"}[t]
}

// EarnedValueMethod selects how earned value is calculated.
type EarnedValueMethod int

const (
	PercentComplete EarnedValueMethod = iota
	PhysicalPercentComplete
)

// EarnedValueMethodFromInt maps a stored value to an EarnedValueMethod.
func EarnedValueMethodFromInt(v int) EarnedValueMethod {
	if v == int(PhysicalPercentComplete) {
		return PhysicalPercentComplete
	}
	return PercentComplete
}

func (e EarnedValueMethod) String() string {
	if e == PhysicalPercentComplete {
		return "physical_percent_complete"
	}
	return "percent_complete"
}

// BookingType is a resource's booking commitment.
type BookingType int

const (
	BookingCommitted BookingType = iota
	BookingProposed
)

// BookingTypeFromInt maps a stored value to a BookingType.
func BookingTypeFromInt(v int) (BookingType, bool) {
	switch v {
	case 0:
		return BookingCommitted, true
	case 1:
		return BookingProposed, true
	default:
		return BookingCommitted, false
	}
}

func (b BookingType) String() string {
	if b == BookingProposed {
		return "proposed"
	}
	return "committed"
}

// RequestType describes a resource request on an assignment.
type RequestType int

const (
	RequestNone RequestType = iota
	RequestRequest
	RequestDemand
)

// RequestTypeFromInt maps a stored value to a RequestType.
func RequestTypeFromInt(v int) RequestType {
	if v < int(RequestNone) || v > int(RequestDemand) {
		return RequestNone
	}
	return RequestType(v)
}

func (r RequestType) String() string {
	return [...]string{"none", "request", "demand"}[r]
}
