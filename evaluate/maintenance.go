package evaluate

import (
	"context"
	"fmt"

	"github.com/haven/compliance-engine/engine"
)

// Maintenance yields a critical maintenance_due fact for every urgent
// maintenance request that is still open.
type Maintenance struct {
	Requests MaintenanceSource
}

func NewMaintenance(src MaintenanceSource) *Maintenance {
	return &Maintenance{Requests: src}
}

func (e *Maintenance) Name() string { return "maintenance_due" }

func (e *Maintenance) Evaluate(ctx context.Context, today engine.Date) ([]engine.Fact, error) {
	requests, err := e.Requests.MaintenanceRequests(ctx)
	if err != nil {
		return nil, err
	}

	var facts []engine.Fact
	for _, req := range requests {
		if !req.Urgent || !req.Open {
			continue
		}
		facts = append(facts, engine.Fact{
			Entity:      engine.EntityRef{Kind: engine.KindMaintenance, ID: req.ID},
			Type:        engine.AlertMaintenanceDue,
			Severity:    engine.SeverityCritical,
			Title:       "Urgent Maintenance Required",
			Message:     fmt.Sprintf("%s at %s requires urgent attention", req.Title, req.Address),
			TriggerDate: today,
		})
	}
	return facts, nil
}
