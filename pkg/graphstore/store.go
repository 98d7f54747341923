// Package graphstore is the write path and consistent read path for company
// graphs. All mutations funnel through here: the store validates whole
// batches before touching the database, serializes writers per company, and
// recomputes derived credit metrics on every write so reads never see stale
// aggregates.
package graphstore

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/briar/internal/repositories/company"
	"github.com/Ramsey-B/briar/internal/repositories/debtinstrument"
	"github.com/Ramsey-B/briar/internal/repositories/entity"
	"github.com/Ramsey-B/briar/internal/repositories/guarantee"
	"github.com/Ramsey-B/briar/internal/repositories/metrics"
	"github.com/Ramsey-B/briar/internal/repositories/ownershiplink"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// Emitter publishes credit events after successful writes. Emission is
// best-effort: a publish failure is logged, never rolled into the write
// result.
type Emitter interface {
	MetricsUpdated(ctx context.Context, companyID, ticker string, m *models.CreditMetrics)
}

// Mirror pushes the relational graph into the graph database for ad-hoc
// queries. Postgres stays the source of truth; mirror failures are logged
// and retried on the next write.
type Mirror interface {
	SyncCompany(ctx context.Context, capture *models.CompanyCapture) error
}

// Store coordinates repositories into atomic graph operations. Multi-row
// writes run inside one database transaction, so a failure partway through a
// batch never leaves half of it behind.
type Store struct {
	db          database.DB
	companies   *company.Repository
	entities    *entity.Repository
	instruments *debtinstrument.Repository
	guarantees  *guarantee.Repository
	ownership   *ownershiplink.Repository
	metrics     *metrics.Repository

	emitter Emitter
	mirror  Mirror

	locks  *lockRegistry
	logger ectologger.Logger
}

// NewStore creates a graph store. emitter and mirror may be nil, which
// disables event publishing and graph mirroring respectively.
func NewStore(
	db database.DB,
	companies *company.Repository,
	entities *entity.Repository,
	instruments *debtinstrument.Repository,
	guarantees *guarantee.Repository,
	ownership *ownershiplink.Repository,
	metricsRepo *metrics.Repository,
	emitter Emitter,
	mirror Mirror,
	logger ectologger.Logger,
) *Store {
	return &Store{
		db:          db,
		companies:   companies,
		entities:    entities,
		instruments: instruments,
		guarantees:  guarantees,
		ownership:   ownership,
		metrics:     metricsRepo,
		emitter:     emitter,
		mirror:      mirror,
		locks:       newLockRegistry(),
		logger:      logger,
	}
}

// GetCompany retrieves a company by id.
func (s *Store) GetCompany(ctx context.Context, tenantID, id string) (*models.Company, error) {
	return s.companies.Get(ctx, tenantID, id)
}

// GetCompanyByTicker retrieves a company by ticker.
func (s *Store) GetCompanyByTicker(ctx context.Context, tenantID, ticker string) (*models.Company, error) {
	return s.companies.GetByTicker(ctx, tenantID, ticker)
}

// ListCompanies pages through companies.
func (s *Store) ListCompanies(ctx context.Context, tenantID string, page, pageSize int) (*models.CompanyListResponse, error) {
	return s.companies.List(ctx, tenantID, page, pageSize)
}

// LoadCapture reads one consistent view of a company's graph. It holds the
// company read lock for the duration, so a concurrent write cannot leave the
// capture with entities from one batch and instruments from another.
func (s *Store) LoadCapture(ctx context.Context, tenantID, companyID string) (*models.CompanyCapture, error) {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Store.LoadCapture")
	defer span.End()

	comp, err := s.companies.Get(ctx, tenantID, companyID)
	if err != nil {
		return nil, err
	}

	lock := s.locks.get(companyID)
	lock.RLock()
	defer lock.RUnlock()

	return s.loadCaptureLocked(ctx, comp)
}

// loadCaptureLocked reads the capture without taking the company lock. The
// caller must hold it, read or write.
func (s *Store) loadCaptureLocked(ctx context.Context, comp *models.Company) (*models.CompanyCapture, error) {
	capture := &models.CompanyCapture{Company: *comp}

	entities, err := s.entities.ListByCompany(ctx, comp.TenantID, comp.ID)
	if err != nil {
		return nil, err
	}
	capture.Entities = entities

	instruments, err := s.instruments.ListByCompany(ctx, comp.TenantID, comp.ID, true)
	if err != nil {
		return nil, err
	}
	capture.Instruments = instruments

	guarantees, err := s.guarantees.ListByCompany(ctx, comp.TenantID, comp.ID)
	if err != nil {
		return nil, err
	}
	capture.Guarantees = guarantees

	links, err := s.ownership.ListByCompany(ctx, comp.TenantID, comp.ID)
	if err != nil {
		return nil, err
	}
	capture.OwnershipLinks = links

	m, err := s.metrics.Get(ctx, comp.TenantID, comp.ID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	} else {
		capture.Metrics = m
	}

	return capture, nil
}

// GetEntityTree reads the live entity forest for a company.
func (s *Store) GetEntityTree(ctx context.Context, tenantID, companyID string) (*models.EntityTreeResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Store.GetEntityTree")
	defer span.End()

	comp, err := s.companies.Get(ctx, tenantID, companyID)
	if err != nil {
		return nil, err
	}

	lock := s.locks.get(companyID)
	lock.RLock()
	entities, err := s.entities.ListByCompany(ctx, tenantID, companyID)
	lock.RUnlock()
	if err != nil {
		return nil, err
	}

	return &models.EntityTreeResponse{
		CompanyID: comp.ID,
		Ticker:    comp.Ticker,
		Entities:  entities,
	}, nil
}

// GetMetrics reads the stored metrics row for a company.
func (s *Store) GetMetrics(ctx context.Context, tenantID, companyID string) (*models.CreditMetrics, error) {
	return s.metrics.Get(ctx, tenantID, companyID)
}

// ResolveStartCompany maps a traversal start node to its owning company, so
// the engine can load the right capture.
func (s *Store) ResolveStartCompany(ctx context.Context, tenantID string, start models.StartNode) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Store.ResolveStartCompany")
	defer span.End()

	switch start.Kind {
	case models.NodeCompany:
		comp, err := s.companies.Get(ctx, tenantID, start.ID)
		if err != nil {
			return "", err
		}
		return comp.ID, nil
	case models.NodeEntity:
		ent, err := s.entities.Get(ctx, tenantID, start.ID)
		if err != nil {
			return "", err
		}
		return ent.CompanyID, nil
	case models.NodeBond:
		instr, err := s.instruments.Get(ctx, tenantID, start.ID)
		if err != nil {
			return "", err
		}
		return instr.CompanyID, nil
	}
	return "", errors.Wrapf(models.ErrInvalidParameter, "unknown start node kind %q", start.Kind)
}
