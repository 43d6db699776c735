package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/caseforge-backend/internal/data/repos"
	"github.com/yungbote/caseforge-backend/internal/data/versioning"
	"github.com/yungbote/caseforge-backend/internal/domain/cases"
	"github.com/yungbote/caseforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

type CaseService interface {
	Create(ctx context.Context) (*cases.Case, error)
	// EnsureCase returns the case, creating it under id on first use.
	EnsureCase(ctx context.Context, id uuid.UUID) (*cases.Case, error)
	// Authorize returns the case if it exists and the caller may act on it.
	Authorize(ctx context.Context, id uuid.UUID) (*cases.Case, error)
	Claim(ctx context.Context, id uuid.UUID) (*cases.Case, error)
}

type caseService struct {
	log   *logger.Logger
	cases repos.CaseRepo
}

func NewCaseService(baseLog *logger.Logger, caseRepo repos.CaseRepo) CaseService {
	return &caseService{
		log:   baseLog.With("service", "CaseService"),
		cases: caseRepo,
	}
}

func ownerFrom(ctx context.Context) *uuid.UUID {
	id := ctxutil.CallerID(ctx)
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func (s *caseService) Create(ctx context.Context) (*cases.Case, error) {
	c, err := s.cases.Create(dbctx.From(ctx), &cases.Case{OwnerUserID: ownerFrom(ctx), Status: cases.StatusIntake})
	if err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}
	s.log.Info("Case created", "case_id", c.ID, "claimed", c.OwnerUserID != nil)
	return c, nil
}

func (s *caseService) EnsureCase(ctx context.Context, id uuid.UUID) (*cases.Case, error) {
	if id == uuid.Nil {
		return nil, ErrCaseNotFound
	}
	dbc := dbctx.From(ctx)
	c, err := s.cases.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c, err = s.cases.Create(dbc, &cases.Case{ID: id, OwnerUserID: ownerFrom(ctx), Status: cases.StatusIntake})
		if err != nil && versioning.IsUniqueViolation(err) {
			// created concurrently
			c, err = s.cases.GetByID(dbc, id)
		}
		if err != nil {
			return nil, fmt.Errorf("ensure case: %w", err)
		}
		s.log.Info("Case created on first use", "case_id", id)
	}
	if c == nil || !c.OwnedBy(ctxutil.CallerID(ctx)) {
		return nil, ErrCaseNotFound
	}
	return c, nil
}

func (s *caseService) Authorize(ctx context.Context, id uuid.UUID) (*cases.Case, error) {
	c, err := s.cases.GetByID(dbctx.From(ctx), id)
	if err != nil {
		return nil, err
	}
	if c == nil || !c.OwnedBy(ctxutil.CallerID(ctx)) {
		return nil, ErrCaseNotFound
	}
	return c, nil
}

func (s *caseService) Claim(ctx context.Context, id uuid.UUID) (*cases.Case, error) {
	caller := ctxutil.CallerID(ctx)
	if caller == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	c, err := s.Authorize(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerUserID != nil && *c.OwnerUserID == caller {
		return c, nil
	}
	ok, err := s.cases.Claim(dbctx.From(ctx), id, caller)
	if err != nil {
		return nil, fmt.Errorf("claim case: %w", err)
	}
	if !ok {
		return nil, ErrCaseClaimed
	}
	c.OwnerUserID = &caller
	s.log.Info("Case claimed", "case_id", id, "user_id", caller)
	return c, nil
}
