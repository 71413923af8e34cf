package evaluate

import (
	"context"
	"fmt"

	"github.com/haven/compliance-engine/engine"
)

// DocumentExpiry yields document_expiry facts for documents nearing or past
// their expiry date, against the 90/60/30-day thresholds. The fact is keyed
// on the document itself so two expiring documents for one property alert
// independently.
type DocumentExpiry struct {
	Documents DocumentSource
}

func NewDocumentExpiry(src DocumentSource) *DocumentExpiry {
	return &DocumentExpiry{Documents: src}
}

func (e *DocumentExpiry) Name() string { return "document_expiry" }

func (e *DocumentExpiry) Evaluate(ctx context.Context, today engine.Date) ([]engine.Fact, error) {
	docs, err := e.Documents.Documents(ctx)
	if err != nil {
		return nil, err
	}

	var facts []engine.Fact
	for _, doc := range docs {
		if doc.Expiry == nil {
			continue
		}
		threshold, c, ok := tightestBreached(today, *doc.Expiry)
		if !ok {
			continue
		}

		due := *doc.Expiry
		fact := engine.Fact{
			Entity:      engine.EntityRef{Kind: engine.KindDocument, ID: doc.ID},
			Type:        engine.AlertDocumentExpiry,
			Severity:    expirySeverity(threshold),
			TriggerDate: today,
			DueDate:     &due,
		}
		if c.Status == engine.DueOverdue {
			fact.Title = "Document Expired"
			fact.Message = fmt.Sprintf("%s expired %s ago on %s", doc.Name, days(c.DaysDelta), due)
		} else {
			fact.Title = "Document Expiring Soon"
			fact.Message = fmt.Sprintf("%s expires in %s on %s", doc.Name, days(c.DaysDelta), due)
		}
		facts = append(facts, fact)
	}
	return facts, nil
}
