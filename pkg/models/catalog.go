package models

// Task fields.
const (
	TaskWork                  FieldID = TaskFieldBase | 0
	TaskBaselineWork          FieldID = TaskFieldBase | 1
	TaskActualWork            FieldID = TaskFieldBase | 2
	TaskRemainingWork         FieldID = TaskFieldBase | 4
	TaskCost                  FieldID = TaskFieldBase | 5
	TaskBaselineCost          FieldID = TaskFieldBase | 6
	TaskActualCost            FieldID = TaskFieldBase | 7
	TaskFixedCost             FieldID = TaskFieldBase | 8
	TaskRemainingCost         FieldID = TaskFieldBase | 10
	TaskName                  FieldID = TaskFieldBase | 14
	TaskWBS                   FieldID = TaskFieldBase | 16
	TaskConstraintType        FieldID = TaskFieldBase | 17
	TaskConstraintDate        FieldID = TaskFieldBase | 18
	TaskCritical              FieldID = TaskFieldBase | 19
	TaskLevelingDelay         FieldID = TaskFieldBase | 20
	TaskFreeSlack             FieldID = TaskFieldBase | 21
	TaskTotalSlack            FieldID = TaskFieldBase | 22
	TaskID                    FieldID = TaskFieldBase | 23
	TaskMilestone             FieldID = TaskFieldBase | 24
	TaskPriority              FieldID = TaskFieldBase | 25
	TaskBaselineDuration      FieldID = TaskFieldBase | 27
	TaskActualDuration        FieldID = TaskFieldBase | 28
	TaskDuration              FieldID = TaskFieldBase | 29
	TaskRemainingDuration     FieldID = TaskFieldBase | 31
	TaskPercentComplete       FieldID = TaskFieldBase | 32
	TaskPercentWorkComplete   FieldID = TaskFieldBase | 33
	TaskStart                 FieldID = TaskFieldBase | 35
	TaskFinish                FieldID = TaskFieldBase | 36
	TaskEarlyStart            FieldID = TaskFieldBase | 37
	TaskEarlyFinish           FieldID = TaskFieldBase | 38
	TaskLateStart             FieldID = TaskFieldBase | 39
	TaskLateFinish            FieldID = TaskFieldBase | 40
	TaskActualStart           FieldID = TaskFieldBase | 41
	TaskActualFinish          FieldID = TaskFieldBase | 42
	TaskText1                 FieldID = TaskFieldBase | 51
	TaskText2                 FieldID = TaskFieldBase | 54
	TaskFlag1                 FieldID = TaskFieldBase | 72
	TaskOutlineLevel          FieldID = TaskFieldBase | 85
	TaskUniqueID              FieldID = TaskFieldBase | 86
	TaskNumber1               FieldID = TaskFieldBase | 87
	TaskSummary               FieldID = TaskFieldBase | 92
	TaskCreated               FieldID = TaskFieldBase | 93
	TaskNotes                 FieldID = TaskFieldBase | 94
	TaskResume                FieldID = TaskFieldBase | 99
	TaskStop                  FieldID = TaskFieldBase | 100
	TaskDuration1             FieldID = TaskFieldBase | 103
	TaskCost1                 FieldID = TaskFieldBase | 106
	TaskSchedulingType        FieldID = TaskFieldBase | 128
	TaskFixedCostAccrual      FieldID = TaskFieldBase | 200
	TaskHyperlink             FieldID = TaskFieldBase | 217
	TaskHyperlinkAddress      FieldID = TaskFieldBase | 218
	TaskDate1                 FieldID = TaskFieldBase | 265
	TaskDeadline              FieldID = TaskFieldBase | 437
	TaskGUID                  FieldID = TaskFieldBase | 500
	TaskEarnedValueMethod     FieldID = TaskFieldBase | 501
	TaskCalendarUniqueID      FieldID = TaskFieldBase | 502
	TaskDurationUnits         FieldID = TaskFieldBase | 510
	TaskBaselineDurationUnits FieldID = TaskFieldBase | 511
	TaskLevelingDelayUnits    FieldID = TaskFieldBase | 512
	TaskDuration1Units        FieldID = TaskFieldBase | 513

	TaskEnterpriseText1          FieldID = TaskFieldBase | 700
	TaskEnterpriseNumber1        FieldID = TaskFieldBase | 701
	TaskEnterpriseDate1          FieldID = TaskFieldBase | 702
	TaskEnterpriseDuration1      FieldID = TaskFieldBase | 703
	TaskEnterpriseDuration1Units FieldID = TaskFieldBase | 704
	TaskEnterpriseCost1          FieldID = TaskFieldBase | 705
)

// Resource fields.
const (
	ResourceID                FieldID = ResourceFieldBase | 0
	ResourceName              FieldID = ResourceFieldBase | 1
	ResourceInitials          FieldID = ResourceFieldBase | 2
	ResourceGroup             FieldID = ResourceFieldBase | 3
	ResourceMaxUnits          FieldID = ResourceFieldBase | 4
	ResourceStandardRate      FieldID = ResourceFieldBase | 6
	ResourceOvertimeRate      FieldID = ResourceFieldBase | 7
	ResourceText1             FieldID = ResourceFieldBase | 8
	ResourceCode              FieldID = ResourceFieldBase | 10
	ResourceActualCost        FieldID = ResourceFieldBase | 11
	ResourceCost              FieldID = ResourceFieldBase | 12
	ResourceWork              FieldID = ResourceFieldBase | 13
	ResourceActualWork        FieldID = ResourceFieldBase | 14
	ResourceBaselineWork      FieldID = ResourceFieldBase | 15
	ResourceBaselineCost      FieldID = ResourceFieldBase | 17
	ResourceCostPerUse        FieldID = ResourceFieldBase | 18
	ResourceAccrueAt          FieldID = ResourceFieldBase | 19
	ResourceRemainingWork     FieldID = ResourceFieldBase | 22
	ResourcePeak              FieldID = ResourceFieldBase | 26
	ResourceUniqueID          FieldID = ResourceFieldBase | 27
	ResourceNotes             FieldID = ResourceFieldBase | 28
	ResourceEmailAddress      FieldID = ResourceFieldBase | 35
	ResourceWorkGroup         FieldID = ResourceFieldBase | 272
	ResourceType              FieldID = ResourceFieldBase | 300
	ResourceGUID              FieldID = ResourceFieldBase | 500
	ResourceBookingType       FieldID = ResourceFieldBase | 501
	ResourceStandardRateUnits FieldID = ResourceFieldBase | 502
	ResourceOvertimeRateUnits FieldID = ResourceFieldBase | 503
	ResourceCreated           FieldID = ResourceFieldBase | 504
	ResourceCalendarUniqueID  FieldID = ResourceFieldBase | 505

	ResourceEnterpriseText1   FieldID = ResourceFieldBase | 700
	ResourceEnterpriseNumber1 FieldID = ResourceFieldBase | 701
)

// Assignment fields.
const (
	AssignmentUniqueID                     FieldID = AssignmentFieldBase | 0
	AssignmentTaskUniqueID                 FieldID = AssignmentFieldBase | 1
	AssignmentResourceUniqueID             FieldID = AssignmentFieldBase | 2
	AssignmentUnits                        FieldID = AssignmentFieldBase | 7
	AssignmentWork                         FieldID = AssignmentFieldBase | 8
	AssignmentOvertimeWork                 FieldID = AssignmentFieldBase | 9
	AssignmentActualWork                   FieldID = AssignmentFieldBase | 10
	AssignmentRemainingWork                FieldID = AssignmentFieldBase | 12
	AssignmentBaselineWork                 FieldID = AssignmentFieldBase | 16
	AssignmentPeak                         FieldID = AssignmentFieldBase | 19
	AssignmentStart                        FieldID = AssignmentFieldBase | 20
	AssignmentFinish                       FieldID = AssignmentFieldBase | 21
	AssignmentActualStart                  FieldID = AssignmentFieldBase | 22
	AssignmentActualFinish                 FieldID = AssignmentFieldBase | 23
	AssignmentResume                       FieldID = AssignmentFieldBase | 24
	AssignmentDelay                        FieldID = AssignmentFieldBase | 25
	AssignmentCost                         FieldID = AssignmentFieldBase | 26
	AssignmentActualCost                   FieldID = AssignmentFieldBase | 28
	AssignmentRemainingCost                FieldID = AssignmentFieldBase | 29
	AssignmentBaselineCost                 FieldID = AssignmentFieldBase | 32
	AssignmentWorkContour                  FieldID = AssignmentFieldBase | 39
	AssignmentPercentWorkComplete          FieldID = AssignmentFieldBase | 43
	AssignmentTimephasedWork               FieldID = AssignmentFieldBase | 49
	AssignmentTimephasedActualWork         FieldID = AssignmentFieldBase | 50
	AssignmentTimephasedActualOvertimeWork FieldID = AssignmentFieldBase | 51
	AssignmentTimephasedBaselineWork       FieldID = AssignmentFieldBase | 52
	AssignmentTimephasedBaselineCost       FieldID = AssignmentFieldBase | 53
	AssignmentLevelingDelayUnits           FieldID = AssignmentFieldBase | 55
	AssignmentNotes                        FieldID = AssignmentFieldBase | 71
	AssignmentConfirmed                    FieldID = AssignmentFieldBase | 72
	AssignmentText1                        FieldID = AssignmentFieldBase | 88
	AssignmentStart1                       FieldID = AssignmentFieldBase | 98
	AssignmentNumber1                      FieldID = AssignmentFieldBase | 108
	AssignmentDuration1                    FieldID = AssignmentFieldBase | 113
	AssignmentDuration1Units               FieldID = AssignmentFieldBase | 116
	AssignmentGUID                         FieldID = AssignmentFieldBase | 500
	AssignmentVariableRateUnits            FieldID = AssignmentFieldBase | 502
	AssignmentRequestType                  FieldID = AssignmentFieldBase | 503
	AssignmentLevelingDelay                FieldID = AssignmentFieldBase | 504
	AssignmentCreated                      FieldID = AssignmentFieldBase | 505
)

// Relation fields.
const (
	RelationUniqueID            FieldID = RelationFieldBase | 0
	RelationPredecessorUniqueID FieldID = RelationFieldBase | 1
	RelationSuccessorUniqueID   FieldID = RelationFieldBase | 2
	RelationType                FieldID = RelationFieldBase | 3
	RelationLag                 FieldID = RelationFieldBase | 4
	RelationLagUnits            FieldID = RelationFieldBase | 5
)

var fieldDefs = buildFieldDefs([]FieldDef{
	{TaskWork, "work", TypeWork, 0},
	{TaskBaselineWork, "baseline_work", TypeWork, 0},
	{TaskActualWork, "actual_work", TypeWork, 0},
	{TaskRemainingWork, "remaining_work", TypeWork, 0},
	{TaskCost, "cost", TypeCurrency, 0},
	{TaskBaselineCost, "baseline_cost", TypeCurrency, 0},
	{TaskActualCost, "actual_cost", TypeCurrency, 0},
	{TaskFixedCost, "fixed_cost", TypeCurrency, 0},
	{TaskRemainingCost, "remaining_cost", TypeCurrency, 0},
	{TaskName, "name", TypeString, 0},
	{TaskWBS, "wbs", TypeString, 0},
	{TaskConstraintType, "constraint_type", TypeConstraint, 0},
	{TaskConstraintDate, "constraint_date", TypeDate, 0},
	{TaskCritical, "critical", TypeBoolean, 0},
	{TaskLevelingDelay, "leveling_delay", TypeDuration, TaskLevelingDelayUnits},
	{TaskFreeSlack, "free_slack", TypeDuration, TaskDurationUnits},
	{TaskTotalSlack, "total_slack", TypeDuration, TaskDurationUnits},
	{TaskID, "id", TypeInteger, 0},
	{TaskMilestone, "milestone", TypeBoolean, 0},
	{TaskPriority, "priority", TypePriority, 0},
	{TaskBaselineDuration, "baseline_duration", TypeDuration, TaskBaselineDurationUnits},
	{TaskActualDuration, "actual_duration", TypeDuration, TaskDurationUnits},
	{TaskDuration, "duration", TypeDuration, TaskDurationUnits},
	{TaskRemainingDuration, "remaining_duration", TypeDuration, TaskDurationUnits},
	{TaskPercentComplete, "percent_complete", TypePercentage, 0},
	{TaskPercentWorkComplete, "percent_work_complete", TypePercentage, 0},
	{TaskStart, "start", TypeDate, 0},
	{TaskFinish, "finish", TypeDate, 0},
	{TaskEarlyStart, "early_start", TypeDate, 0},
	{TaskEarlyFinish, "early_finish", TypeDate, 0},
	{TaskLateStart, "late_start", TypeDate, 0},
	{TaskLateFinish, "late_finish", TypeDate, 0},
	{TaskActualStart, "actual_start", TypeDate, 0},
	{TaskActualFinish, "actual_finish", TypeDate, 0},
	{TaskText1, "text1", TypeString, 0},
	{TaskText2, "text2", TypeString, 0},
	{TaskFlag1, "flag1", TypeBoolean, 0},
	{TaskOutlineLevel, "outline_level", TypeShort, 0},
	{TaskUniqueID, "unique_id", TypeInteger, 0},
	{TaskNumber1, "number1", TypeNumeric, 0},
	{TaskSummary, "summary", TypeBoolean, 0},
	{TaskCreated, "created", TypeDate, 0},
	{TaskNotes, "notes", TypeNotes, 0},
	{TaskResume, "resume", TypeDate, 0},
	{TaskStop, "stop", TypeDate, 0},
	{TaskDuration1, "duration1", TypeDuration, TaskDuration1Units},
	{TaskCost1, "cost1", TypeCurrency, 0},
	{TaskSchedulingType, "type", TypeTaskType, 0},
	{TaskFixedCostAccrual, "fixed_cost_accrual", TypeAccrue, 0},
	{TaskHyperlink, "hyperlink", TypeString, 0},
	{TaskHyperlinkAddress, "hyperlink_address", TypeString, 0},
	{TaskDate1, "date1", TypeDate, 0},
	{TaskDeadline, "deadline", TypeDate, 0},
	{TaskGUID, "guid", TypeGUID, 0},
	{TaskEarnedValueMethod, "earned_value_method", TypeEarnedValueMethod, 0},
	{TaskCalendarUniqueID, "calendar_unique_id", TypeInteger, 0},
	{TaskDurationUnits, "duration_units", TypeTimeUnits, 0},
	{TaskBaselineDurationUnits, "baseline_duration_units", TypeTimeUnits, 0},
	{TaskLevelingDelayUnits, "leveling_delay_units", TypeTimeUnits, 0},
	{TaskDuration1Units, "duration1_units", TypeTimeUnits, 0},
	{TaskEnterpriseText1, "enterprise_text1", TypeString, 0},
	{TaskEnterpriseNumber1, "enterprise_number1", TypeNumeric, 0},
	{TaskEnterpriseDate1, "enterprise_date1", TypeDate, 0},
	{TaskEnterpriseDuration1, "enterprise_duration1", TypeDuration, TaskEnterpriseDuration1Units},
	{TaskEnterpriseDuration1Units, "enterprise_duration1_units", TypeTimeUnits, 0},
	{TaskEnterpriseCost1, "enterprise_cost1", TypeCurrency, 0},

	{ResourceID, "id", TypeInteger, 0},
	{ResourceName, "name", TypeString, 0},
	{ResourceInitials, "initials", TypeString, 0},
	{ResourceGroup, "group", TypeString, 0},
	{ResourceMaxUnits, "max_units", TypeUnits, 0},
	{ResourceStandardRate, "standard_rate", TypeRate, 0},
	{ResourceOvertimeRate, "overtime_rate", TypeRate, 0},
	{ResourceText1, "text1", TypeString, 0},
	{ResourceCode, "code", TypeString, 0},
	{ResourceActualCost, "actual_cost", TypeCurrency, 0},
	{ResourceCost, "cost", TypeCurrency, 0},
	{ResourceWork, "work", TypeWork, 0},
	{ResourceActualWork, "actual_work", TypeWork, 0},
	{ResourceBaselineWork, "baseline_work", TypeWork, 0},
	{ResourceBaselineCost, "baseline_cost", TypeCurrency, 0},
	{ResourceCostPerUse, "cost_per_use", TypeCurrency, 0},
	{ResourceAccrueAt, "accrue_at", TypeAccrue, 0},
	{ResourceRemainingWork, "remaining_work", TypeWork, 0},
	{ResourcePeak, "peak", TypeUnits, 0},
	{ResourceUniqueID, "unique_id", TypeInteger, 0},
	{ResourceNotes, "notes", TypeNotes, 0},
	{ResourceEmailAddress, "email_address", TypeString, 0},
	{ResourceWorkGroup, "workgroup", TypeWorkGroup, 0},
	{ResourceType, "type", TypeShort, 0},
	{ResourceGUID, "guid", TypeGUID, 0},
	{ResourceBookingType, "booking_type", TypeBookingType, 0},
	{ResourceStandardRateUnits, "standard_rate_units", TypeRateUnits, 0},
	{ResourceOvertimeRateUnits, "overtime_rate_units", TypeRateUnits, 0},
	{ResourceCreated, "created", TypeDate, 0},
	{ResourceCalendarUniqueID, "calendar_unique_id", TypeInteger, 0},
	{ResourceEnterpriseText1, "enterprise_text1", TypeString, 0},
	{ResourceEnterpriseNumber1, "enterprise_number1", TypeNumeric, 0},

	{AssignmentUniqueID, "unique_id", TypeInteger, 0},
	{AssignmentTaskUniqueID, "task_unique_id", TypeInteger, 0},
	{AssignmentResourceUniqueID, "resource_unique_id", TypeInteger, 0},
	{AssignmentUnits, "assignment_units", TypeUnits, 0},
	{AssignmentWork, "work", TypeWork, 0},
	{AssignmentOvertimeWork, "overtime_work", TypeWork, 0},
	{AssignmentActualWork, "actual_work", TypeWork, 0},
	{AssignmentRemainingWork, "remaining_work", TypeWork, 0},
	{AssignmentBaselineWork, "baseline_work", TypeWork, 0},
	{AssignmentPeak, "peak", TypeUnits, 0},
	{AssignmentStart, "start", TypeDate, 0},
	{AssignmentFinish, "finish", TypeDate, 0},
	{AssignmentActualStart, "actual_start", TypeDate, 0},
	{AssignmentActualFinish, "actual_finish", TypeDate, 0},
	{AssignmentResume, "resume", TypeDate, 0},
	{AssignmentDelay, "assignment_delay", TypeDelay, 0},
	{AssignmentCost, "cost", TypeCurrency, 0},
	{AssignmentActualCost, "actual_cost", TypeCurrency, 0},
	{AssignmentRemainingCost, "remaining_cost", TypeCurrency, 0},
	{AssignmentBaselineCost, "baseline_cost", TypeCurrency, 0},
	{AssignmentWorkContour, "work_contour", TypeShort, 0},
	{AssignmentPercentWorkComplete, "percent_work_complete", TypePercentage, 0},
	{AssignmentTimephasedWork, "timephased_work", TypeBinary, 0},
	{AssignmentTimephasedActualWork, "timephased_actual_work", TypeBinary, 0},
	{AssignmentTimephasedActualOvertimeWork, "timephased_actual_overtime_work", TypeBinary, 0},
	{AssignmentTimephasedBaselineWork, "timephased_baseline_work", TypeBinary, 0},
	{AssignmentTimephasedBaselineCost, "timephased_baseline_cost", TypeBinary, 0},
	{AssignmentLevelingDelayUnits, "leveling_delay_units", TypeTimeUnits, 0},
	{AssignmentNotes, "notes", TypeNotes, 0},
	{AssignmentConfirmed, "confirmed", TypeBoolean, 0},
	{AssignmentText1, "text1", TypeString, 0},
	{AssignmentStart1, "start1", TypeDate, 0},
	{AssignmentNumber1, "number1", TypeNumeric, 0},
	{AssignmentDuration1, "duration1", TypeDuration, AssignmentDuration1Units},
	{AssignmentDuration1Units, "duration1_units", TypeTimeUnits, 0},
	{AssignmentGUID, "guid", TypeGUID, 0},
	{AssignmentVariableRateUnits, "variable_rate_units", TypeWorkUnits, 0},
	{AssignmentRequestType, "request_type", TypeRequestType, 0},
	{AssignmentLevelingDelay, "leveling_delay", TypeDuration, AssignmentLevelingDelayUnits},
	{AssignmentCreated, "created", TypeDate, 0},

	{RelationUniqueID, "unique_id", TypeInteger, 0},
	{RelationPredecessorUniqueID, "predecessor_unique_id", TypeInteger, 0},
	{RelationSuccessorUniqueID, "successor_unique_id", TypeInteger, 0},
	{RelationType, "type", TypeShort, 0},
	{RelationLag, "lag", TypeDuration, RelationLagUnits},
	{RelationLagUnits, "lag_units", TypeTimeUnits, 0},
})

// customFields are the user-defined fields: their values may be drawn from a
// lookup list and enterprise field maps may declare them.
var customFields = map[FieldID]bool{
	TaskText1:               true,
	TaskText2:               true,
	TaskNumber1:             true,
	TaskDate1:               true,
	TaskDuration1:           true,
	TaskCost1:               true,
	TaskFlag1:               true,
	TaskEnterpriseText1:     true,
	TaskEnterpriseNumber1:   true,
	TaskEnterpriseDate1:     true,
	TaskEnterpriseDuration1: true,
	TaskEnterpriseCost1:     true,

	ResourceText1:             true,
	ResourceEnterpriseText1:   true,
	ResourceEnterpriseNumber1: true,

	AssignmentText1:     true,
	AssignmentStart1:    true,
	AssignmentNumber1:   true,
	AssignmentDuration1: true,
}

// IsCustom reports whether a field is user-defined.
func (f FieldID) IsCustom() bool {
	return customFields[f]
}

func buildFieldDefs(defs []FieldDef) map[FieldID]FieldDef {
	m := make(map[FieldID]FieldDef, len(defs))
	for _, d := range defs {
		m[d.ID] = d
	}
	return m
}
