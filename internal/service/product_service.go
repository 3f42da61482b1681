package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockroom/internal/access"
	"stockroom/internal/apperror"
	"stockroom/internal/domain"
	"stockroom/internal/metrics"
	"stockroom/internal/query"
	"stockroom/internal/ratelimit"
	"stockroom/internal/repository"
	"stockroom/internal/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const rateLimitScopeAdjustStock = "adjust_stock"

// ProductInput carries the fields of a new product
type ProductInput struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
	IsAvailable *bool
}

// ProductUpdate carries the fields to change. Nil fields keep their current value.
type ProductUpdate struct {
	Name        *string
	Description *string
	Category    *string
	Price       *decimal.Decimal
	Stock       *int
	ImageURL    *string
	IsAvailable *bool
}

// StockAdjustment is the result of a successful AdjustStock
type StockAdjustment struct {
	OldStock int
	NewStock int
	Product  *domain.Product
}

// ProductService defines the product lifecycle operations
type ProductService interface {
	Create(ctx context.Context, actor *domain.Actor, in ProductInput) (*domain.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Update(ctx context.Context, actor *domain.Actor, id uuid.UUID, upd ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, actor *domain.Actor, id uuid.UUID) error
	AdjustStock(ctx context.Context, actor *domain.Actor, id uuid.UUID, delta int) (*StockAdjustment, error)
	List(ctx context.Context, q query.ListQuery) (query.Page[*domain.Product], error)
	History(ctx context.Context, id uuid.UUID, limit int) ([]*domain.ChangeEntry, error)
	RecentChanges(ctx context.Context, limit int) ([]*domain.ChangeEntry, error)
	Categories() []domain.CategoryOption
}

// ProductDeps wires a ProductService. Limiter, Logger and Metrics are optional.
type ProductDeps struct {
	UnitOfWork repository.UnitOfWork
	Products   repository.ProductRepository
	Changes    repository.ChangeRepository
	Access     access.Checker
	Limiter    ratelimit.Limiter
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

type productService struct {
	uow      repository.UnitOfWork
	products repository.ProductRepository
	changes  repository.ChangeRepository
	access   access.Checker
	limiter  ratelimit.Limiter
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewProductService creates a new instance of ProductService
func NewProductService(deps ProductDeps) ProductService {
	s := &productService{
		uow:      deps.UnitOfWork,
		products: deps.Products,
		changes:  deps.Changes,
		access:   deps.Access,
		limiter:  deps.Limiter,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
	}
	if s.access == nil {
		s.access = access.OwnerOrStaff{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func (s *productService) Create(ctx context.Context, actor *domain.Actor, in ProductInput) (*domain.Product, error) {
	if actor == nil {
		return nil, apperror.New(apperror.KindUnauthenticated, "authentication required")
	}

	available := true
	if in.IsAvailable != nil {
		available = *in.IsAvailable
	}
	fields, err := validation.Product(validation.ProductFields{
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
		IsAvailable: available,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:        uuid.New(),
		OwnerID:   actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyFields(product, fields)

	var entry *domain.ChangeEntry
	err = s.uow.Do(ctx, func(st repository.Stores) error {
		if err := st.Products.Create(ctx, product); err != nil {
			return err
		}
		entry = newEntry(product, actor, domain.ChangeCreated, decimal.NullDecimal{}, domain.NullValue(product.Price))
		return st.Changes.Record(ctx, entry)
	})
	if err != nil {
		return nil, s.translate(err, "create product")
	}

	s.committed(entry)
	return product, nil
}

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, "get product")
	}
	return product, nil
}

// Update applies upd under a row lock. Only a price change is written to the
// ledger; stock changed through Update is not, AdjustStock is the audited path.
func (s *productService) Update(ctx context.Context, actor *domain.Actor, id uuid.UUID, upd ProductUpdate) (*domain.Product, error) {
	if actor == nil {
		return nil, apperror.New(apperror.KindUnauthenticated, "authentication required")
	}
	// malformed input is rejected before ownership is looked at
	if err := validateUpdate(upd); err != nil {
		return nil, err
	}

	var (
		updated *domain.Product
		entry   *domain.ChangeEntry
	)
	err := s.uow.Do(ctx, func(st repository.Stores) error {
		current, err := st.Products.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Require(s.access, actor, current, "edit"); err != nil {
			return err
		}

		fields, err := validation.Product(mergeUpdate(current, upd))
		if err != nil {
			return err
		}

		next := *current
		applyFields(&next, fields)
		next.UpdatedAt = time.Now().UTC()

		if err := st.Products.Update(ctx, &next); err != nil {
			return err
		}

		if !next.Price.Equal(current.Price) {
			entry = newEntry(&next, actor, domain.ChangePriceChanged, domain.NullValue(current.Price), domain.NullValue(next.Price))
			if err := st.Changes.Record(ctx, entry); err != nil {
				return err
			}
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "update product")
	}

	s.committed(entry)
	return updated, nil
}

func (s *productService) Delete(ctx context.Context, actor *domain.Actor, id uuid.UUID) error {
	if actor == nil {
		return apperror.New(apperror.KindUnauthenticated, "authentication required")
	}

	var entry *domain.ChangeEntry
	err := s.uow.Do(ctx, func(st repository.Stores) error {
		current, err := st.Products.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Require(s.access, actor, current, "delete"); err != nil {
			return err
		}

		// written first so the entry still sees the product's last state
		entry = newEntry(current, actor, domain.ChangeDeleted, domain.NullValue(current.Price), decimal.NullDecimal{})
		if err := st.Changes.Record(ctx, entry); err != nil {
			return err
		}
		return st.Products.Delete(ctx, id)
	})
	if err != nil {
		return s.translate(err, "delete product")
	}

	s.committed(entry)
	return nil
}

// AdjustStock adds delta to the product's stock. The whole delta applies or
// nothing does. Calls are rate limited per actor.
func (s *productService) AdjustStock(ctx context.Context, actor *domain.Actor, id uuid.UUID, delta int) (*StockAdjustment, error) {
	if actor == nil {
		return nil, apperror.New(apperror.KindUnauthenticated, "authentication required")
	}
	if delta > validation.MaxStock || delta < -validation.MaxStock {
		return nil, apperror.InvalidField("adjustment", fmt.Sprintf("Adjustment must be between %d and %d", -validation.MaxStock, validation.MaxStock))
	}
	if err := s.checkRate(ctx, actor); err != nil {
		return nil, err
	}

	var (
		result *StockAdjustment
		entry  *domain.ChangeEntry
	)
	err := s.uow.Do(ctx, func(st repository.Stores) error {
		current, err := st.Products.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Require(s.access, actor, current, "adjust stock for"); err != nil {
			return err
		}

		updated, err := st.Products.AdjustStock(ctx, id, delta)
		if err != nil {
			return err
		}
		oldStock := updated.Stock - delta

		entry = newEntry(updated, actor, domain.ChangeStockAdjusted, domain.StockValue(oldStock), domain.StockValue(updated.Stock))
		if err := st.Changes.Record(ctx, entry); err != nil {
			return err
		}
		result = &StockAdjustment{OldStock: oldStock, NewStock: updated.Stock, Product: updated}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) || errors.Is(err, repository.ErrStockOverflow) {
			s.metrics.AdjustmentRejected()
			s.logger.Debug("stock adjustment rejected",
				zap.String("product_id", id.String()),
				zap.Int("delta", delta),
				zap.String("actor_id", actor.ID.String()),
			)
		}
		return nil, s.translate(err, "adjust stock")
	}

	s.committed(entry)
	return result, nil
}

func (s *productService) checkRate(ctx context.Context, actor *domain.Actor) error {
	if s.limiter == nil {
		return nil
	}
	decision, err := s.limiter.Allow(ctx, actor.ID.String())
	if err != nil {
		// limiter backend down: fail open
		s.logger.Warn("rate limiter unavailable", zap.Error(err))
		return nil
	}
	if decision.Allowed {
		return nil
	}
	s.metrics.RateLimited(rateLimitScopeAdjustStock)
	return apperror.RateLimited("Too many stock adjustments. Please try again later.", decision.RetryAfter)
}

func (s *productService) List(ctx context.Context, q query.ListQuery) (query.Page[*domain.Product], error) {
	items, total, err := s.products.List(ctx, q)
	if err != nil {
		return query.Page[*domain.Product]{}, s.translate(err, "list products")
	}
	return query.NewPage(items, total, q), nil
}

// History returns the ledger for a product, newest first. It keeps working
// after the product itself has been deleted.
func (s *productService) History(ctx context.Context, id uuid.UUID, limit int) ([]*domain.ChangeEntry, error) {
	entries, err := s.changes.History(ctx, id, limit)
	if err != nil {
		return nil, s.translate(err, "load product history")
	}
	return entries, nil
}

func (s *productService) RecentChanges(ctx context.Context, limit int) ([]*domain.ChangeEntry, error) {
	entries, err := s.changes.Recent(ctx, limit)
	if err != nil {
		return nil, s.translate(err, "load recent changes")
	}
	return entries, nil
}

func (s *productService) Categories() []domain.CategoryOption {
	return domain.Categories()
}

func (s *productService) committed(entry *domain.ChangeEntry) {
	if entry == nil {
		return
	}
	s.metrics.LedgerEntry(string(entry.ChangeType))

	fields := []zap.Field{
		zap.String("entry_id", entry.ID),
		zap.String("product_id", entry.ProductID.String()),
		zap.String("change_type", string(entry.ChangeType)),
		zap.String("old_value", nullString(entry.OldValue)),
		zap.String("new_value", nullString(entry.NewValue)),
	}
	if entry.ActorID != nil {
		fields = append(fields, zap.String("actor_id", entry.ActorID.String()))
	}
	s.logger.Info("product change recorded", fields...)
}

// translate maps repository failures onto apperror kinds
func (s *productService) translate(err error, op string) error {
	if appErr := apperror.As(err); appErr != nil {
		return appErr
	}
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return apperror.Wrap(apperror.KindNotFound, err, "Product not found")
	case errors.Is(err, repository.ErrInsufficientStock):
		return apperror.InvalidField("stock", "Stock cannot be negative")
	case errors.Is(err, repository.ErrStockOverflow):
		return apperror.InvalidField("stock", fmt.Sprintf("Stock cannot exceed %d", validation.MaxStock))
	case errors.Is(err, repository.ErrOwnerNotFound):
		return apperror.Wrap(apperror.KindUnauthenticated, err, "user account no longer exists")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperror.Wrap(apperror.KindInternal, err, "request cancelled")
	}
	s.logger.Error("product operation failed", zap.String("op", op), zap.Error(err))
	return apperror.Wrap(apperror.KindInternal, fmt.Errorf("failed to %s: %w", op, err), "")
}

func newEntry(p *domain.Product, actor *domain.Actor, t domain.ChangeType, oldValue, newValue decimal.NullDecimal) *domain.ChangeEntry {
	entry := &domain.ChangeEntry{
		ProductID:   p.ID,
		ProductName: p.Name,
		OldValue:    oldValue,
		NewValue:    newValue,
		ChangeType:  t,
	}
	if actor != nil {
		id := actor.ID
		entry.ActorID = &id
	}
	return entry
}

// validateUpdate checks the supplied fields on their own; the merged record
// is validated again once the current row is loaded.
func validateUpdate(upd ProductUpdate) error {
	if upd.Name != nil {
		if _, err := validation.ValidateName(*upd.Name); err != nil {
			return err
		}
	}
	if upd.Category != nil {
		if _, err := validation.ValidateCategory(*upd.Category); err != nil {
			return err
		}
	}
	if upd.Price != nil {
		if err := validation.ValidatePrice(*upd.Price); err != nil {
			return err
		}
		if err := validation.ValidatePriceScale(*upd.Price); err != nil {
			return err
		}
	}
	if upd.Stock != nil {
		if err := validation.ValidateStock(*upd.Stock); err != nil {
			return err
		}
	}
	if upd.ImageURL != nil {
		if _, err := validation.ValidateImageURL(*upd.ImageURL); err != nil {
			return err
		}
	}
	return nil
}

func mergeUpdate(p *domain.Product, upd ProductUpdate) validation.ProductFields {
	f := validation.ProductFields{
		Name:        p.Name,
		Description: p.Description,
		Category:    string(p.Category),
		Price:       p.Price,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		IsAvailable: p.IsAvailable,
	}
	if upd.Name != nil {
		f.Name = *upd.Name
	}
	if upd.Description != nil {
		f.Description = *upd.Description
	}
	if upd.Category != nil {
		f.Category = *upd.Category
	}
	if upd.Price != nil {
		f.Price = *upd.Price
	}
	if upd.Stock != nil {
		f.Stock = *upd.Stock
	}
	if upd.ImageURL != nil {
		f.ImageURL = *upd.ImageURL
	}
	if upd.IsAvailable != nil {
		f.IsAvailable = *upd.IsAvailable
	}
	return f
}

func applyFields(p *domain.Product, f validation.ProductFields) {
	p.Name = f.Name
	p.Description = f.Description
	p.Category = domain.Category(f.Category)
	p.Price = f.Price
	p.Stock = f.Stock
	p.ImageURL = f.ImageURL
	p.IsAvailable = f.IsAvailable
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return "null"
	}
	return d.Decimal.String()
}
