package ops

import (
	"context"
	"time"

	"github.com/thisis/placesguard/internal/budget"
	"github.com/thisis/placesguard/internal/db"
	"github.com/thisis/placesguard/internal/errors"
)

// BudgetStatusInput contains parameters for the BudgetStatus operation.
type BudgetStatusInput struct {
	Kind string // optional; empty reports every kind
}

// BudgetStatusOutput contains the result of the BudgetStatus operation.
type BudgetStatusOutput struct {
	Date  string         `json:"date"`
	Kinds []budget.Usage `json:"kinds"`
}

// BudgetStatus reports today's usage against the ceilings.
func (s *Service) BudgetStatus(ctx context.Context, input BudgetStatusInput) (*BudgetStatusOutput, error) {
	out := &BudgetStatusOutput{Date: s.counter.Today()}

	if input.Kind == "" {
		report, err := s.counter.Report(ctx)
		if err != nil {
			return nil, err
		}
		out.Kinds = report
		return out, nil
	}

	kind, err := budget.ParseKind(input.Kind)
	if err != nil {
		return nil, err
	}
	u, err := s.counter.Usage(ctx, kind)
	if err != nil {
		return nil, err
	}
	out.Kinds = []budget.Usage{*u}
	return out, nil
}

// BudgetRecordInput contains parameters for the BudgetRecord operation.
type BudgetRecordInput struct {
	Kind string
}

// BudgetRecordOutput contains the result of the BudgetRecord operation.
type BudgetRecordOutput struct {
	Usage budget.Usage `json:"usage"`
}

// BudgetRecord bills one unit of a kind, for callers that made the paid
// call themselves.
func (s *Service) BudgetRecord(ctx context.Context, input BudgetRecordInput) (*BudgetRecordOutput, error) {
	kind, err := budget.ParseKind(input.Kind)
	if err != nil {
		return nil, err
	}
	if err := s.counter.RecordConsumption(ctx, kind); err != nil {
		return nil, err
	}
	u, err := s.counter.Usage(ctx, kind)
	if err != nil {
		return nil, err
	}
	return &BudgetRecordOutput{Usage: *u}, nil
}

// UsageEventsInput contains parameters for the UsageEvents operation.
type UsageEventsInput struct {
	Kind  string // optional
	Day   string // optional, default today
	Limit int
}

// UsageEventsOutput contains the result of the UsageEvents operation.
type UsageEventsOutput struct {
	Day    string          `json:"day"`
	Events []db.UsageEvent `json:"events"`
}

// UsageEvents lists ledger rows for one day, newest first.
func (s *Service) UsageEvents(ctx context.Context, input UsageEventsInput) (*UsageEventsOutput, error) {
	if s.ledger == nil {
		return nil, errors.NewInvalidRequest("usage ledger is not available without a database")
	}

	day := input.Day
	if day == "" {
		day = s.counter.Today()
	} else if !validDay(day) {
		return nil, errors.NewInvalidRequest("day must be YYYY-MM-DD")
	}

	kind := ""
	if input.Kind != "" {
		k, err := budget.ParseKind(input.Kind)
		if err != nil {
			return nil, err
		}
		kind = string(k)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultEventsLimit
	}
	if limit > MaxEventsLimit {
		limit = MaxEventsLimit
	}

	events, err := s.ledger.List(ctx, kind, day, limit)
	if err != nil {
		return nil, errors.NewPersistenceUnavailable("ledger read", err)
	}
	if events == nil {
		events = []db.UsageEvent{}
	}
	return &UsageEventsOutput{Day: day, Events: events}, nil
}

func validDay(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
