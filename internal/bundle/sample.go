package bundle

import (
	"time"

	"github.com/basekick-labs/mppread/internal/blocktest"
	"github.com/basekick-labs/mppread/internal/calendar"
	"github.com/basekick-labs/mppread/internal/props"
	"github.com/basekick-labs/mppread/pkg/models"
	"github.com/google/uuid"
)

// SampleStart is the project start of the sample bundle, a Monday
var SampleStart = time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)

// SampleProjectGUID identifies the sample project
var SampleProjectGUID = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

const sampleMetaRowSize = 12

// Sample returns a small MPP9 bundle laid out with the default field tables:
// two tasks linked finish to start, one resource and one assignment with one
// day of complete and one day of planned work.
func Sample() *Bundle {
	day := func(n int, hour int) time.Time {
		return SampleStart.AddDate(0, 0, n).Add(time.Duration(hour-8) * time.Hour)
	}

	b := &Bundle{
		Name:          "sample",
		FormatVersion: models.MPP9.String(),
		Props: blocktest.Props(map[int32][]byte{
			props.MinutesPerDay:    blocktest.Int(480),
			props.MinutesPerWeek:   blocktest.Int(2400),
			props.DaysPerMonth:     blocktest.Short(20),
			props.ProjectStartDate: blocktest.Timestamp(SampleStart),
			props.CurrencySymbol:   blocktest.Unicode("$"),
			props.ProjectGUID:      blocktest.GUID(SampleProjectGUID),
		}),
		ValueLists: map[int32][]byte{
			100: blocktest.Unicode("Phase 1"),
		},
		Calendar: &calendar.Spec{Name: "Standard"},
	}

	design := sampleTask(1, day(0, 8), day(1, 17), 9600, 960000)
	build := sampleTask(2, day(2, 8), day(4, 17), 14400, 1440000)
	taskMeta, taskData := blocktest.FixedBlock(sampleMetaRowSize,
		blocktest.FixedRecord{Data: design},
		blocktest.FixedRecord{Data: build},
		blocktest.FixedRecord{Status: 2, Data: sampleTask(3, day(0, 8), day(0, 17), 4800, 0)},
	)
	actual := blocktest.NewRecord(24).PutTimestamp(0, day(0, 8)).PutDouble(8, 480000)
	var taskBlock1 []byte
	taskBlock1 = append(taskBlock1, actual...)
	taskBlock1 = append(taskBlock1, blocktest.NewRecord(24)...)
	taskBlock1 = append(taskBlock1, blocktest.NewRecord(24)...)

	taskVarMeta, taskVarData := blocktest.VarBlock(
		blocktest.VarEntry{EntityID: 1, Key: 14, Value: blocktest.Unicode("Design")},
		blocktest.VarEntry{EntityID: 1, Key: 16, Value: blocktest.Unicode("1.1")},
		blocktest.VarEntry{EntityID: 1, Key: 51, Value: append(blocktest.Short(0x0700), blocktest.Int(100)...)},
		blocktest.VarEntry{EntityID: 2, Key: 14, Value: blocktest.Unicode("Build")},
		blocktest.VarEntry{EntityID: 2, Key: 16, Value: blocktest.Unicode("1.2")},
		blocktest.VarEntry{EntityID: 2, Key: 94, Value: []byte("Depends on design\x00")},
	)
	b.SetClass(models.TaskClass, &ClassBlocks{
		Fixed: []FixedBlock{
			{Meta: taskMeta, Data: taskData, ItemSize: sampleMetaRowSize},
			{Data: taskBlock1, ItemSize: 24},
		},
		VarMeta: taskVarMeta,
		VarData: taskVarData,
	})

	resource := blocktest.NewRecord(48).
		PutInt(0, 1).
		PutInt(4, 1).
		PutDouble(8, 50).
		PutDouble(16, 75).
		PutDouble(24, 10000).
		PutShort(32, 3).
		PutShort(34, 2).
		PutShort(36, 2)
	resMeta, resData := blocktest.FixedBlock(sampleMetaRowSize, blocktest.FixedRecord{Data: resource})
	resVarMeta, resVarData := blocktest.VarBlock(
		blocktest.VarEntry{EntityID: 1, Key: 1, Value: blocktest.Unicode("Engineer")},
		blocktest.VarEntry{EntityID: 1, Key: 2, Value: blocktest.Unicode("E")},
	)
	b.SetClass(models.ResourceClass, &ClassBlocks{
		Fixed:   []FixedBlock{{Meta: resMeta, Data: resData, ItemSize: sampleMetaRowSize}},
		VarMeta: resVarMeta,
		VarData: resVarData,
	})

	assignment := blocktest.NewRecord(70).
		PutInt(0, 1).
		PutInt(4, 1).
		PutInt(8, 1).
		PutTimestamp(12, day(0, 8)).
		PutTimestamp(16, day(1, 17)).
		PutDouble(20, 10000).
		PutDouble(28, 960000).
		PutDouble(36, 480000).
		PutDouble(44, 480000)
	asgMeta, asgData := blocktest.FixedBlock(sampleMetaRowSize, blocktest.FixedRecord{Data: assignment})
	asgVarMeta, asgVarData := blocktest.VarBlock(
		blocktest.VarEntry{EntityID: 1, Key: 50, Value: sampleCompleteWork()},
		blocktest.VarEntry{EntityID: 1, Key: 49, Value: samplePlannedWork()},
	)
	b.SetClass(models.AssignmentClass, &ClassBlocks{
		Fixed:   []FixedBlock{{Meta: asgMeta, Data: asgData, ItemSize: sampleMetaRowSize}},
		VarMeta: asgVarMeta,
		VarData: asgVarData,
	})

	relation := blocktest.NewRecord(20).
		PutInt(0, 1).
		PutInt(4, 1).
		PutInt(8, 2).
		PutShort(12, 1).
		PutShort(18, 7)
	relMeta, relData := blocktest.FixedBlock(sampleMetaRowSize, blocktest.FixedRecord{Data: relation})
	b.SetClass(models.RelationClass, &ClassBlocks{
		Fixed: []FixedBlock{{Meta: relMeta, Data: relData, ItemSize: sampleMetaRowSize}},
	})

	return b
}

func sampleTask(uniqueID int32, start, finish time.Time, durationTenths int32, work float64) blocktest.Record {
	return blocktest.NewRecord(52).
		PutInt(0, uniqueID).
		PutInt(4, uniqueID).
		PutTimestamp(8, start).
		PutTimestamp(12, finish).
		PutInt(16, durationTenths).
		PutShort(20, 7).
		PutShort(24, 500).
		PutDouble(28, work).
		PutShort(48, 1)
}

// One day of complete work: 480 minutes at 480 minutes per day
func sampleCompleteWork() []byte {
	rec := blocktest.NewRecord(32 + 20)
	rec.PutShort(0, 1)
	rec.PutInt(24, 480*80)
	rec.PutDouble(32+4, 480000)
	rec.PutDouble(32+12, 10000)
	return rec
}

// One day of planned work following the complete work
func samplePlannedWork() []byte {
	rec := blocktest.NewRecord(40 + 28)
	rec.PutShort(0, 1)
	rec.PutInt(24, 480*80)
	rec.PutDouble(40+4, 480000)
	rec.PutDouble(40+12, 160000)
	return rec
}
