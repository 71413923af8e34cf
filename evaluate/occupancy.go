package evaluate

import (
	"context"
	"fmt"

	"github.com/haven/compliance-engine/engine"
)

// Vacancy yields an info-severity vacancy fact for each active dwelling
// that has been below capacity for longer than the grace period. The grace
// period absorbs normal participant turnover; with GraceDays=0 any current
// vacancy alerts immediately.
type Vacancy struct {
	Dwellings DwellingSource
	GraceDays int
}

func NewVacancy(src DwellingSource) *Vacancy { return &Vacancy{Dwellings: src} }

func (e *Vacancy) Name() string { return "vacancy" }

func (e *Vacancy) Evaluate(ctx context.Context, today engine.Date) ([]engine.Fact, error) {
	dwellings, err := e.Dwellings.Dwellings(ctx)
	if err != nil {
		return nil, err
	}

	var facts []engine.Fact
	for _, d := range dwellings {
		if !d.IsActive || d.CurrentOccupancy >= d.MaxParticipants {
			continue
		}
		if d.VacantSince != nil && engine.DaysBetween(*d.VacantSince, today) <= e.GraceDays {
			continue
		}

		vacant := d.MaxParticipants - d.CurrentOccupancy
		spots := "places"
		if vacant == 1 {
			spots = "place"
		}
		facts = append(facts, engine.Fact{
			Entity:   engine.EntityRef{Kind: engine.KindDwelling, ID: d.ID},
			Type:     engine.AlertVacancy,
			Severity: engine.SeverityInfo,
			Title:    "Vacant Dwelling Capacity",
			Message: fmt.Sprintf("%s at %s has %d vacant %s (%d of %d occupied)",
				d.Name, d.Address, vacant, spots, d.CurrentOccupancy, d.MaxParticipants),
			TriggerDate: today,
		})
	}
	return facts, nil
}
