package pipeline

import (
	"time"

	"github.com/basekick-labs/mppread/internal/fieldmap"
	"github.com/basekick-labs/mppread/internal/timephased"
	"github.com/basekick-labs/mppread/internal/varstore"
	"github.com/basekick-labs/mppread/pkg/models"
)

// Span kinds, as counted in reports and metrics.
const (
	KindComplete     = "complete"
	KindPlanned      = "planned"
	KindBaseline     = "baseline"
	KindBaselineCost = "baseline_cost"
)

// Var keys of the timephased blocks in the default assignment tables.
var timephasedKeys = map[models.FieldID]int{
	models.AssignmentTimephasedWork:         49,
	models.AssignmentTimephasedActualWork:   50,
	models.AssignmentTimephasedBaselineWork: 52,
	models.AssignmentTimephasedBaselineCost: 53,
}

func timephasedBlock(schema *fieldmap.Schema, vars *varstore.Store, uniqueID int32, id models.FieldID) []byte {
	key, ok := schema.VarKey(id)
	if !ok {
		key = timephasedKeys[id]
	}
	data, _ := vars.Get(uniqueID, key)
	return data
}

// expandTimephased decodes the timephased blocks of every assignment into
// its Work field. The raw blocks are removed from the entity once decoded.
// normalizer may be nil to keep the spans as stored.
func (p *Pipeline) expandTimephased(asg *ClassResult, vars *varstore.Store, cal timephased.Calendar, normalizer *timephased.Normalizer) map[string]int {
	counts := map[string]int{}
	if vars == nil {
		return counts
	}

	for _, e := range asg.Entities {
		start, ok := e.Time(models.AssignmentStart)
		if !ok {
			continue
		}
		units, ok := e.Float(models.AssignmentUnits)
		if !ok {
			units = 100
		}

		block := func(id models.FieldID) []byte {
			return timephasedBlock(asg.Schema, vars, e.UniqueID, id)
		}

		work := &models.AssignmentTimephased{}
		work.Complete = p.factory.CompleteWork(cal, start, block(models.AssignmentTimephasedActualWork))
		work.Planned = p.factory.PlannedWork(cal, start, units, block(models.AssignmentTimephasedWork), work.Complete)
		work.Modified = timephased.WorkModified(work.Planned)

		finish, _ := e.Time(models.AssignmentFinish)
		if finish.IsZero() {
			finish = lastFinish(work.Complete, work.Planned, start)
		}
		work.Baseline = p.factory.BaselineWork(finish, block(models.AssignmentTimephasedBaselineWork))
		work.BaselineCost = p.factory.BaselineCost(block(models.AssignmentTimephasedBaselineCost))

		if normalizer != nil {
			work.Complete = normalizer.Normalize(cal, work.Complete)
			work.Planned = normalizer.Normalize(cal, work.Planned)
		}

		for id := range timephasedKeys {
			e.Unset(id)
		}
		if len(work.Complete)+len(work.Planned)+len(work.Baseline)+len(work.BaselineCost) == 0 {
			continue
		}
		e.Work = work

		counts[KindComplete] += len(work.Complete)
		counts[KindPlanned] += len(work.Planned)
		counts[KindBaseline] += len(work.Baseline)
		counts[KindBaselineCost] += len(work.BaselineCost)
	}

	for kind, n := range counts {
		if n > 0 {
			p.metrics.AddTimephasedSpans(kind, n)
		}
	}
	return counts
}

func lastFinish(complete, planned []models.TimephasedWork, fallback time.Time) time.Time {
	if len(planned) > 0 {
		return planned[len(planned)-1].Finish
	}
	if len(complete) > 0 {
		return complete[len(complete)-1].Finish
	}
	return fallback
}
