package fieldmap

import "github.com/basekick-labs/mppread/pkg/models"

// UsesTypeAsVarKey reports whether a version stores var data under the low 16
// bits of the field type instead of the key recorded in the field map row.
func UsesTypeAsVarKey(version models.FormatVersion) bool {
	return version >= models.MPP12
}

// varKeySubstitutions override the type-derived var key for fields whose
// stored key does not follow the convention.
var varKeySubstitutions = map[models.FormatVersion]map[models.FieldID]int{
	models.MPP12: {
		models.TaskHyperlink:        0x2B5,
		models.TaskHyperlinkAddress: 0x2B6,
	},
	models.MPP14: {
		models.TaskHyperlink:        0x2B5,
		models.TaskHyperlinkAddress: 0x2B6,
		models.ResourceNotes:        0x1C1,
		models.AssignmentNotes:      0x1F7,
	},
}

func substituteVarKey(version models.FormatVersion, id models.FieldID) (int, bool) {
	key, ok := varKeySubstitutions[version][id]
	return key, ok
}

type defaultItem struct {
	field models.FieldID
	loc   Location
}

var taskDefaults = []defaultItem{
	{models.TaskUniqueID, FixedAt(0, 0)},
	{models.TaskID, FixedAt(0, 4)},
	{models.TaskStart, FixedAt(0, 8)},
	{models.TaskFinish, FixedAt(0, 12)},
	{models.TaskDuration, FixedAt(0, 16)},
	{models.TaskDurationUnits, FixedAt(0, 20)},
	{models.TaskConstraintType, FixedAt(0, 22)},
	{models.TaskPriority, FixedAt(0, 24)},
	{models.TaskPercentComplete, FixedAt(0, 26)},
	{models.TaskWork, FixedAt(0, 28)},
	{models.TaskCost, FixedAt(0, 36)},
	{models.TaskConstraintDate, FixedAt(0, 44)},
	{models.TaskOutlineLevel, FixedAt(0, 48)},
	{models.TaskMilestone, FixedAt(0, 50)},
	{models.TaskActualStart, FixedAt(1, 0)},
	{models.TaskActualFinish, FixedAt(1, 4)},
	{models.TaskActualWork, FixedAt(1, 8)},
	{models.TaskRemainingWork, FixedAt(1, 16)},
	{models.TaskName, VarAt(14)},
	{models.TaskWBS, VarAt(16)},
	{models.TaskText1, VarAt(51)},
	{models.TaskNotes, VarAt(94)},
	{models.TaskDuration1, VarAt(103)},
	{models.TaskNumber1, VarAt(87)},
	{models.TaskDate1, VarAt(265)},
	{models.TaskCreated, VarAt(93)},
	{models.TaskDeadline, VarAt(437)},
}

var taskDefaults12 = []defaultItem{
	{models.TaskGUID, FixedAt(0, 52)},
	{models.TaskSchedulingType, FixedAt(0, 68)},
	{models.TaskEarnedValueMethod, FixedAt(0, 70)},
	{models.TaskCalendarUniqueID, VarAt(502)},
	{models.TaskHyperlink, VarAt(0x2B5)},
	{models.TaskHyperlinkAddress, VarAt(0x2B6)},
}

var resourceDefaults = []defaultItem{
	{models.ResourceUniqueID, FixedAt(0, 0)},
	{models.ResourceID, FixedAt(0, 4)},
	{models.ResourceStandardRate, FixedAt(0, 8)},
	{models.ResourceOvertimeRate, FixedAt(0, 16)},
	{models.ResourceMaxUnits, FixedAt(0, 24)},
	{models.ResourceAccrueAt, FixedAt(0, 32)},
	{models.ResourceStandardRateUnits, FixedAt(0, 34)},
	{models.ResourceOvertimeRateUnits, FixedAt(0, 36)},
	{models.ResourceWorkGroup, FixedAt(0, 38)},
	{models.ResourceCostPerUse, FixedAt(0, 40)},
	{models.ResourceName, VarAt(1)},
	{models.ResourceInitials, VarAt(2)},
	{models.ResourceGroup, VarAt(3)},
	{models.ResourceNotes, VarAt(28)},
	{models.ResourceEmailAddress, VarAt(35)},
	{models.ResourceText1, VarAt(8)},
}

var resourceDefaults12 = []defaultItem{
	{models.ResourceGUID, FixedAt(0, 48)},
	{models.ResourceBookingType, VarAt(501)},
	{models.ResourceCreated, VarAt(504)},
	{models.ResourceCalendarUniqueID, VarAt(505)},
}

var assignmentDefaults = []defaultItem{
	{models.AssignmentUniqueID, FixedAt(0, 0)},
	{models.AssignmentTaskUniqueID, FixedAt(0, 4)},
	{models.AssignmentResourceUniqueID, FixedAt(0, 8)},
	{models.AssignmentStart, FixedAt(0, 12)},
	{models.AssignmentFinish, FixedAt(0, 16)},
	{models.AssignmentUnits, FixedAt(0, 20)},
	{models.AssignmentWork, FixedAt(0, 28)},
	{models.AssignmentActualWork, FixedAt(0, 36)},
	{models.AssignmentRemainingWork, FixedAt(0, 44)},
	{models.AssignmentOvertimeWork, FixedAt(0, 52)},
	{models.AssignmentDelay, FixedAt(0, 60)},
	{models.AssignmentCost, FixedAt(0, 62)},
	{models.AssignmentTimephasedWork, VarAt(49)},
	{models.AssignmentTimephasedActualWork, VarAt(50)},
	{models.AssignmentTimephasedBaselineWork, VarAt(52)},
	{models.AssignmentTimephasedBaselineCost, VarAt(53)},
	{models.AssignmentNotes, VarAt(71)},
	{models.AssignmentText1, VarAt(88)},
}

var assignmentDefaults12 = []defaultItem{
	{models.AssignmentVariableRateUnits, FixedAt(0, 70)},
	{models.AssignmentRequestType, FixedAt(0, 72)},
	{models.AssignmentGUID, FixedAt(0, 74)},
	{models.AssignmentCreated, VarAt(505)},
}

var relationDefaults = []defaultItem{
	{models.RelationUniqueID, FixedAt(0, 0)},
	{models.RelationPredecessorUniqueID, FixedAt(0, 4)},
	{models.RelationSuccessorUniqueID, FixedAt(0, 8)},
	{models.RelationType, FixedAt(0, 12)},
	{models.RelationLag, FixedAt(0, 14)},
	{models.RelationLagUnits, FixedAt(0, 18)},
}

type tableKey struct {
	version models.FormatVersion
	class   models.FieldClass
}

var defaultTables = map[tableKey][][]defaultItem{
	{models.MPP8, models.TaskClass}:        {taskDefaults},
	{models.MPP8, models.ResourceClass}:    {resourceDefaults},
	{models.MPP8, models.AssignmentClass}:  {assignmentDefaults},
	{models.MPP8, models.RelationClass}:    {relationDefaults},
	{models.MPP9, models.TaskClass}:        {taskDefaults},
	{models.MPP9, models.ResourceClass}:    {resourceDefaults},
	{models.MPP9, models.AssignmentClass}:  {assignmentDefaults},
	{models.MPP9, models.RelationClass}:    {relationDefaults},
	{models.MPP12, models.TaskClass}:       {taskDefaults, taskDefaults12},
	{models.MPP12, models.ResourceClass}:   {resourceDefaults, resourceDefaults12},
	{models.MPP12, models.AssignmentClass}: {assignmentDefaults, assignmentDefaults12},
	{models.MPP12, models.RelationClass}:   {relationDefaults},
	{models.MPP14, models.TaskClass}:       {taskDefaults, taskDefaults12},
	{models.MPP14, models.ResourceClass}:   {resourceDefaults, resourceDefaults12},
	{models.MPP14, models.AssignmentClass}: {assignmentDefaults, assignmentDefaults12},
	{models.MPP14, models.RelationClass}:   {relationDefaults},
}

// Default returns the built-in schema used when a file carries no field map
// for a class. Unknown versions use the newest table.
func Default(version models.FormatVersion, class models.FieldClass) *Schema {
	tables, ok := defaultTables[tableKey{version, class}]
	if !ok {
		tables = defaultTables[tableKey{models.MPP14, class}]
	}

	s := newSchema(version, class)
	for _, table := range tables {
		for _, d := range table {
			def, _ := models.LookupField(d.field)
			s.items[d.field] = Item{Field: d.field, Type: def.Type, Location: d.loc}
			if d.loc.Kind == Fixed {
				s.raiseWatermark(d.loc.Block, d.loc.Offset+fixedSize(def.Type))
			}
		}
	}
	return s
}
