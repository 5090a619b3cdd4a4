package fieldmap

import (
	"testing"

	"github.com/basekick-labs/mppread/internal/blocktest"
	"github.com/basekick-labs/mppread/internal/props"
	"github.com/basekick-labs/mppread/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLocations(t *testing.T) {
	blob := blocktest.Schema(
		blocktest.SchemaRow{Offset: 0, Type: int32(models.TaskUniqueID)},
		blocktest.SchemaRow{Offset: 8, Type: int32(models.TaskStart)},
		blocktest.SchemaRow{Offset: 12, Type: int32(models.TaskWork)},
		blocktest.SchemaRow{Offset: 4, Type: int32(models.TaskActualStart)},
		blocktest.SchemaRow{Offset: blocktest.NoOffset, Mask: 0x10, Category: 0x0B, Type: int32(models.TaskMilestone)},
		blocktest.SchemaRow{Offset: blocktest.NoOffset, Mask: 0x20, Category: 0x64, Type: int32(models.TaskCritical)},
		blocktest.SchemaRow{Offset: blocktest.NoOffset, VarKey: 14, Type: int32(models.TaskName)},
		blocktest.SchemaRow{Offset: blocktest.NoOffset, Type: int32(models.TaskNotes)},
	)

	s := Build(models.MPP9, models.TaskClass, blob)
	require.True(t, s.Embedded())
	assert.Equal(t, 8, s.Len())

	tests := []struct {
		field models.FieldID
		want  Location
	}{
		{models.TaskUniqueID, Location{Kind: Fixed, Block: 0, Offset: 0}},
		{models.TaskStart, Location{Kind: Fixed, Block: 0, Offset: 8}},
		{models.TaskWork, Location{Kind: Fixed, Block: 0, Offset: 12}},
		{models.TaskActualStart, Location{Kind: Fixed, Block: 1, Offset: 4}},
		{models.TaskMilestone, MetaAt(0x10, 0)},
		{models.TaskCritical, MetaAt(0x20, 1)},
		{models.TaskName, VarAt(14)},
		{models.TaskNotes, Location{Kind: Unknown}},
	}

	for _, tt := range tests {
		t.Run(tt.field.String(), func(t *testing.T) {
			got, ok := s.Location(tt.field)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, 20, s.MaxFixedDataSize(0), "work at 12 occupies 8 bytes")
	assert.Equal(t, 8, s.MaxFixedDataSize(1))
	assert.Equal(t, 0, s.MaxFixedDataSize(2))
	assert.Equal(t, 8, s.FixedOffset(models.TaskStart))
	assert.Equal(t, -1, s.FixedOffset(models.TaskName))
}

func TestBuildFixedRoundTrip(t *testing.T) {
	offsets := []uint16{0, 4, 40, 2, 6, 1}
	fields := []models.FieldID{
		models.TaskUniqueID, models.TaskID, models.TaskStart,
		models.TaskFinish, models.TaskConstraintDate, models.TaskCreated,
	}

	rows := make([]blocktest.SchemaRow, len(offsets))
	for i := range offsets {
		rows[i] = blocktest.SchemaRow{Offset: offsets[i], Type: int32(fields[i])}
	}
	s := Build(models.MPP9, models.TaskClass, blocktest.Schema(rows...))

	wantBlocks := []int{0, 0, 0, 1, 1, 2}
	for i, f := range fields {
		loc, ok := s.Location(f)
		require.True(t, ok)
		assert.Equal(t, Fixed, loc.Kind)
		assert.Equal(t, int(offsets[i]), loc.Offset)
		assert.Equal(t, wantBlocks[i], loc.Block, "field %s", f)
	}
}

func TestBuildSkipsRows(t *testing.T) {
	blob := blocktest.Schema(
		blocktest.SchemaRow{Offset: 0, Type: 0x0B40FFFE},
		blocktest.SchemaRow{Offset: 4, Type: int32(models.ResourceName)},
		blocktest.SchemaRow{Offset: 8, Type: int32(models.TaskID)},
	)
	blob = append(blob, make([]byte, 10)...)

	s := Build(models.MPP9, models.TaskClass, blob)
	assert.Equal(t, 1, s.Len())
	_, ok := s.Location(models.TaskID)
	assert.True(t, ok)
}

func TestBuildUnknownRowStartsBlock(t *testing.T) {
	blob := blocktest.Schema(
		blocktest.SchemaRow{Offset: 100, Type: int32(models.TaskUniqueID)},
		blocktest.SchemaRow{Offset: 0, Type: 0x0B40FFFE},
		blocktest.SchemaRow{Offset: 150, Type: int32(models.TaskStart)},
	)
	s := Build(models.MPP9, models.TaskClass, blob)

	loc, ok := s.Location(models.TaskUniqueID)
	require.True(t, ok)
	assert.Equal(t, FixedAt(0, 100), loc)

	loc, ok = s.Location(models.TaskStart)
	require.True(t, ok)
	assert.Equal(t, FixedAt(1, 150), loc)

	_, ok = s.Location(models.FieldID(0x0B40FFFE))
	assert.False(t, ok)
	assert.Equal(t, 104, s.MaxFixedDataSize(0))
	assert.Equal(t, 154, s.MaxFixedDataSize(1))
}

func TestBuildVarKeys(t *testing.T) {
	blob := blocktest.Schema(
		blocktest.SchemaRow{Offset: blocktest.NoOffset, VarKey: 3, Type: int32(models.TaskName)},
		blocktest.SchemaRow{Offset: blocktest.NoOffset, VarKey: 0, Type: int32(models.TaskHyperlink)},
	)

	t.Run("row key", func(t *testing.T) {
		s := Build(models.MPP9, models.TaskClass, blob)
		key, ok := s.VarKey(models.TaskName)
		require.True(t, ok)
		assert.Equal(t, 3, key)

		loc, _ := s.Location(models.TaskHyperlink)
		assert.Equal(t, Unknown, loc.Kind)
	})

	t.Run("type as key with substitution", func(t *testing.T) {
		s := Build(models.MPP14, models.TaskClass, blob)
		key, ok := s.VarKey(models.TaskName)
		require.True(t, ok)
		assert.Equal(t, models.TaskName.Index(), key)

		key, ok = s.VarKey(models.TaskHyperlink)
		require.True(t, ok)
		assert.Equal(t, 0x2B5, key)

		id, ok := s.FieldByVarKey(0x2B5)
		require.True(t, ok)
		assert.Equal(t, models.TaskHyperlink, id)
	})
}

func TestDefaultSchema(t *testing.T) {
	for _, version := range []models.FormatVersion{models.MPP8, models.MPP9, models.MPP12, models.MPP14, 99} {
		for _, class := range models.FieldClasses {
			s := Build(version, class, nil)
			assert.False(t, s.Embedded())
			assert.NotZero(t, s.Len(), "%s %s", version, class)

			// Every default table places the unique ID first
			items := s.Fields()
			require.NotEmpty(t, items)
			assert.Equal(t, Location{Kind: Fixed}, items[0].Location)
		}
	}

	s9 := Default(models.MPP9, models.TaskClass)
	s14 := Default(models.MPP14, models.TaskClass)
	_, ok := s9.Location(models.TaskGUID)
	assert.False(t, ok)
	_, ok = s14.Location(models.TaskGUID)
	assert.True(t, ok)
	assert.Greater(t, s14.MaxFixedDataSize(0), s9.MaxFixedDataSize(0))
}

func TestBuildFromProps(t *testing.T) {
	secondary := blocktest.Schema(blocktest.SchemaRow{Offset: 0, Type: int32(models.AssignmentUniqueID)})
	custom := append(make([]byte, 4), blocktest.Int(int32(models.TaskEnterpriseText1))...)
	custom = append(custom, blocktest.Int(int32(models.TaskName))...)
	custom = append(custom, blocktest.Int(int32(models.ResourceEnterpriseText1))...)

	p, err := props.New(blocktest.Props(map[int32][]byte{
		props.AssignmentFieldMap2:      secondary,
		props.EnterpriseCustomFieldMap: custom,
	}))
	require.NoError(t, err)

	s := BuildFromProps(models.MPP14, models.AssignmentClass, p)
	assert.True(t, s.Embedded())
	assert.Equal(t, 1, s.Len())

	s = BuildFromProps(models.MPP14, models.TaskClass, p)
	assert.False(t, s.Embedded())
	key, ok := s.VarKey(models.TaskEnterpriseText1)
	require.True(t, ok)
	assert.Equal(t, 700, key)

	// Only custom fields of the class are taken from the enterprise list
	key, ok = s.VarKey(models.TaskName)
	require.True(t, ok)
	assert.Equal(t, 14, key, "default mapping kept")
	_, ok = s.Location(models.ResourceEnterpriseText1)
	assert.False(t, ok)
}

func TestFieldsOrder(t *testing.T) {
	s := Default(models.MPP14, models.AssignmentClass)
	items := s.Fields()

	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].less(items[i-1]), "%v before %v", items[i-1], items[i])
	}
}
