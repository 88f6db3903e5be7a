package service

import (
	"context"
	"fmt"
	"time"

	"taxnexus/internal/model"
	"taxnexus/internal/repository"

	"github.com/google/uuid"
)

type PhysicalNexusResponse struct {
	ID           string  `json:"id"`
	AnalysisID   string  `json:"analysis_id"`
	Jurisdiction string  `json:"jurisdiction"`
	StartDate    string  `json:"start_date"`
	EndDate      *string `json:"end_date"`
	Reason       string  `json:"reason"`
	UpdatedAt    string  `json:"updated_at"`
}

// PhysicalNexusMutation is the stored fact plus the recalculation the change
// caused.
type PhysicalNexusMutation struct {
	Fact        *PhysicalNexusResponse `json:"fact,omitempty"`
	Calculation CalculationResponse    `json:"calculation"`
}

// PhysicalNexusService edits the physical presence facts of an analysis.
// Every edit reruns the analysis in the same transaction.
type PhysicalNexusService interface {
	List(ctx context.Context, analysisID string) ([]PhysicalNexusResponse, error)
	Create(ctx context.Context, analysisID string, req PhysicalNexusInput, userID string) (PhysicalNexusMutation, error)
	Update(ctx context.Context, analysisID, factID string, req PhysicalNexusInput, userID string) (PhysicalNexusMutation, error)
	Delete(ctx context.Context, analysisID, factID string, userID string) (PhysicalNexusMutation, error)
}

type physicalNexusService struct {
	txManager repository.TransactionManager
	facts     repository.PhysicalNexusRepository
	analyses  AnalysisService
	publisher EventPublisher
	audit     auditWriter
}

func NewPhysicalNexusService(txManager repository.TransactionManager, facts repository.PhysicalNexusRepository, auditRepo repository.AuditRepository, analyses AnalysisService, publisher EventPublisher) PhysicalNexusService {
	return &physicalNexusService{
		txManager: txManager,
		facts:     facts,
		analyses:  analyses,
		publisher: publisher,
		audit:     auditWriter{repo: auditRepo},
	}
}

func (s *physicalNexusService) List(ctx context.Context, analysisID string) ([]PhysicalNexusResponse, error) {
	id, err := uuid.Parse(analysisID)
	if err != nil {
		return nil, invalidf("invalid analysis id: %v", err)
	}
	facts, err := s.facts.ListByAnalysis(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch physical nexus facts: %w", err)
	}
	res := make([]PhysicalNexusResponse, 0, len(facts))
	for _, f := range facts {
		res = append(res, toPhysicalNexusResponse(f))
	}
	return res, nil
}

func (s *physicalNexusService) Create(ctx context.Context, analysisID string, req PhysicalNexusInput, userID string) (PhysicalNexusMutation, error) {
	id, err := uuid.Parse(analysisID)
	if err != nil {
		return PhysicalNexusMutation{}, invalidf("invalid analysis id: %v", err)
	}
	fact, err := req.toModel(id)
	if err != nil {
		return PhysicalNexusMutation{}, err
	}

	return s.mutate(ctx, id, userID, "physical_nexus_created", func(txCtx context.Context) (*model.PhysicalNexusFact, error) {
		if err := s.facts.Create(txCtx, &fact); err != nil {
			return nil, fmt.Errorf("failed to create physical nexus fact: %w", err)
		}
		return &fact, s.audit.write(txCtx, userID, model.ActionCreatePhysicalNexus, fact.ID.String(), fact.Jurisdiction, req)
	})
}

func (s *physicalNexusService) Update(ctx context.Context, analysisID, factID string, req PhysicalNexusInput, userID string) (PhysicalNexusMutation, error) {
	aID, fID, err := parseFactIDs(analysisID, factID)
	if err != nil {
		return PhysicalNexusMutation{}, err
	}
	updated, err := req.toModel(aID)
	if err != nil {
		return PhysicalNexusMutation{}, err
	}

	return s.mutate(ctx, aID, userID, "physical_nexus_updated", func(txCtx context.Context) (*model.PhysicalNexusFact, error) {
		fact, err := s.findFact(txCtx, aID, fID)
		if err != nil {
			return nil, err
		}
		fact.Jurisdiction = updated.Jurisdiction
		fact.StartDate = updated.StartDate
		fact.EndDate = updated.EndDate
		fact.Reason = updated.Reason
		if err := s.facts.Update(txCtx, fact); err != nil {
			return nil, fmt.Errorf("failed to update physical nexus fact: %w", err)
		}
		return fact, s.audit.write(txCtx, userID, model.ActionUpdatePhysicalNexus, fact.ID.String(), fact.Jurisdiction, req)
	})
}

func (s *physicalNexusService) Delete(ctx context.Context, analysisID, factID string, userID string) (PhysicalNexusMutation, error) {
	aID, fID, err := parseFactIDs(analysisID, factID)
	if err != nil {
		return PhysicalNexusMutation{}, err
	}

	return s.mutate(ctx, aID, userID, "physical_nexus_deleted", func(txCtx context.Context) (*model.PhysicalNexusFact, error) {
		fact, err := s.findFact(txCtx, aID, fID)
		if err != nil {
			return nil, err
		}
		if err := s.facts.Delete(txCtx, fact.ID); err != nil {
			return nil, fmt.Errorf("failed to delete physical nexus fact: %w", err)
		}
		return nil, s.audit.write(txCtx, userID, model.ActionDeletePhysicalNexus, fact.ID.String(), fact.Jurisdiction,
			map[string]string{"deleted_id": fact.ID.String()})
	})
}

// mutate applies change and the full recalculation in one transaction, then
// publishes the new results once committed.
func (s *physicalNexusService) mutate(ctx context.Context, analysisID uuid.UUID, userID, trigger string, change func(txCtx context.Context) (*model.PhysicalNexusFact, error)) (PhysicalNexusMutation, error) {
	var out PhysicalNexusMutation
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		fact, err := change(txCtx)
		if err != nil {
			return err
		}
		if fact != nil {
			resp := toPhysicalNexusResponse(*fact)
			out.Fact = &resp
		}
		out.Calculation, err = s.analyses.Recalculate(txCtx, analysisID, userID, trigger)
		return err
	})
	if err != nil {
		return PhysicalNexusMutation{}, err
	}

	s.publisher.Publish(EventAnalysisRecalculated, out.Calculation.Summary.event(out.Calculation.AnalysisID))
	return out, nil
}

func (s *physicalNexusService) findFact(ctx context.Context, analysisID, factID uuid.UUID) (*model.PhysicalNexusFact, error) {
	fact, err := s.facts.FindByID(ctx, factID)
	if err != nil {
		return nil, lookupErr("physical nexus fact", err)
	}
	if fact.AnalysisID != analysisID {
		return nil, fmt.Errorf("physical nexus fact %w", ErrNotFound)
	}
	return fact, nil
}

func parseFactIDs(analysisID, factID string) (uuid.UUID, uuid.UUID, error) {
	aID, err := uuid.Parse(analysisID)
	if err != nil {
		return uuid.Nil, uuid.Nil, invalidf("invalid analysis id: %v", err)
	}
	fID, err := uuid.Parse(factID)
	if err != nil {
		return uuid.Nil, uuid.Nil, invalidf("invalid physical nexus id: %v", err)
	}
	return aID, fID, nil
}

func toPhysicalNexusResponse(f model.PhysicalNexusFact) PhysicalNexusResponse {
	return PhysicalNexusResponse{
		ID:           f.ID.String(),
		AnalysisID:   f.AnalysisID.String(),
		Jurisdiction: f.Jurisdiction,
		StartDate:    f.StartDate.Format(dateLayout),
		EndDate:      formatDate(f.EndDate),
		Reason:       f.Reason,
		UpdatedAt:    f.UpdatedAt.Format(time.RFC3339),
	}
}
