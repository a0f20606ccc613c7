package management

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"payroute/internal/domain/routing"
	apperrors "payroute/internal/errors"
	"payroute/internal/models"
	"payroute/internal/repositories"
	"payroute/internal/services/vault"
	"payroute/internal/validation"
)

type service struct {
	psps     repositories.PSPRepository
	configs  repositories.RoutingConfigRepository
	payments repositories.PaymentRepository
	vault    vault.Vault
	cache    ConfigInvalidator
}

// NewService builds the admin service. cache may be nil.
func NewService(
	psps repositories.PSPRepository,
	configs repositories.RoutingConfigRepository,
	payments repositories.PaymentRepository,
	v vault.Vault,
	cache ConfigInvalidator,
) Service {
	if psps == nil || configs == nil || payments == nil {
		panic("management: repositories are required")
	}
	if v == nil {
		panic("management: vault is required")
	}
	return &service{psps: psps, configs: configs, payments: payments, vault: v, cache: cache}
}

func (s *service) CreatePSP(ctx context.Context, in PSPInput) (*models.PSP, error) {
	if err := validatePSP(in); err != nil {
		return nil, err
	}
	if in.SecretKey == "" {
		return nil, ErrSecretRequired
	}

	psp := &models.PSP{
		Name:            in.Name,
		Provider:        in.Provider,
		DailyCapacity:   in.DailyCapacity,
		MonthlyCapacity: in.MonthlyCapacity,
		IsActive:        true,
	}
	if in.IsActive != nil {
		psp.IsActive = *in.IsActive
	}
	if err := s.sealKeys(psp, in); err != nil {
		return nil, err
	}

	if err := s.psps.Create(ctx, psp); err != nil {
		return nil, err
	}
	log.Printf("✅ psp %d (%s, %s) created", psp.ID, psp.Name, psp.Provider)
	return psp, nil
}

func (s *service) UpdatePSP(ctx context.Context, id uint, in PSPInput) (*models.PSP, error) {
	psp, err := s.GetPSP(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validatePSP(in); err != nil {
		return nil, err
	}

	psp.Name = in.Name
	psp.Provider = in.Provider
	psp.DailyCapacity = in.DailyCapacity
	psp.MonthlyCapacity = in.MonthlyCapacity
	if in.IsActive != nil {
		psp.IsActive = *in.IsActive
	}
	if err := s.sealKeys(psp, in); err != nil {
		return nil, err
	}

	if err := s.psps.Update(ctx, psp); err != nil {
		return nil, err
	}
	return psp, nil
}

func (s *service) DeletePSP(ctx context.Context, id uint) error {
	if err := s.psps.Delete(ctx, id); err != nil {
		return mapPSPErr(err)
	}
	log.Printf("psp %d deleted", id)
	return nil
}

func (s *service) GetPSP(ctx context.Context, id uint) (*models.PSP, error) {
	psp, err := s.psps.GetByID(ctx, id)
	if err != nil {
		return nil, mapPSPErr(err)
	}
	return psp, nil
}

func (s *service) ListPSPs(ctx context.Context) ([]models.PSP, error) {
	return s.psps.List(ctx)
}

func (s *service) LinkStore(ctx context.Context, storeID, pspID uint) error {
	if storeID == 0 {
		return apperrors.ErrRoutingConfigInvalid.WithCause(errors.New("store id is required"))
	}
	if _, err := s.GetPSP(ctx, pspID); err != nil {
		return err
	}
	if err := s.psps.LinkStore(ctx, storeID, pspID); err != nil {
		return mapPSPErr(err)
	}
	s.invalidate(ctx, storeID)
	return nil
}

// UnlinkStore refuses while the store's routing config still names the PSP.
func (s *service) UnlinkStore(ctx context.Context, storeID, pspID uint) error {
	cfg, err := s.configs.GetByStoreID(ctx, storeID)
	switch {
	case err == nil:
		if references(cfg, pspID) {
			return fmt.Errorf("%w: store %d psp %d", ErrPSPInUse, storeID, pspID)
		}
	case !errors.Is(err, repositories.ErrRoutingConfigNotFound):
		return err
	}

	if err := s.psps.UnlinkStore(ctx, storeID, pspID); err != nil {
		return mapPSPErr(err)
	}
	s.invalidate(ctx, storeID)
	return nil
}

func (s *service) ListStorePSPs(ctx context.Context, storeID uint) ([]models.PSP, error) {
	return s.psps.ListForStore(ctx, storeID)
}

// GetRoutingConfig returns the stored config or the defaults a store
// without one routes under.
func (s *service) GetRoutingConfig(ctx context.Context, storeID uint) (*models.RoutingConfig, error) {
	cfg, err := s.configs.GetByStoreID(ctx, storeID)
	if errors.Is(err, repositories.ErrRoutingConfigNotFound) {
		return &models.RoutingConfig{
			StoreID:    storeID,
			Mode:       models.RoutingModeAutomatic,
			MaxRetries: 1,
		}, nil
	}
	return cfg, err
}

func (s *service) SaveRoutingConfig(ctx context.Context, storeID uint, in RoutingConfigInput) (*models.RoutingConfig, error) {
	v := validation.New()
	v.Struct(in)
	if !v.Valid() {
		return nil, apperrors.ErrRoutingConfigInvalid.WithCause(errors.New(v.Summary()))
	}

	linkedPSPs, err := s.psps.ListForStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	linked := make(map[uint]bool, len(linkedPSPs))
	for _, p := range linkedPSPs {
		linked[p.ID] = true
	}

	cfg := &models.RoutingConfig{
		StoreID:         storeID,
		Mode:            in.Mode,
		FallbackEnabled: in.FallbackEnabled,
		MaxRetries:      in.MaxRetries,
	}
	for _, w := range in.Weights {
		cfg.Weights = append(cfg.Weights, models.PSPWeight{PSPID: w.PSPID, Weight: w.Weight})
	}
	for i, id := range in.Fallbacks {
		cfg.Fallbacks = append(cfg.Fallbacks, models.FallbackSequence{PSPID: id, Position: i + 1})
	}

	v.RoutingConfig(cfg, linked)
	if !v.Valid() {
		return nil, apperrors.ErrRoutingConfigInvalid.WithCause(errors.New(v.Summary()))
	}

	if err := s.configs.Save(ctx, cfg); err != nil {
		return nil, err
	}
	s.invalidate(ctx, storeID)
	log.Printf("✅ routing config saved for store %d (mode=%s fallback=%t max_retries=%d)",
		storeID, cfg.Mode, cfg.FallbackEnabled, cfg.MaxRetries)
	return cfg, nil
}

func (s *service) ListPayments(ctx context.Context, filter models.PaymentFilter, limit, offset int) ([]models.Payment, int64, error) {
	return s.payments.List(ctx, filter, limit, offset)
}

func (s *service) ListOrderAttempts(ctx context.Context, orderID string) ([]models.Payment, error) {
	return s.payments.ListByOrder(ctx, orderID)
}

func (s *service) SweepStaleAttempts(ctx context.Context, before time.Time, dryRun bool) ([]models.Payment, error) {
	stale, err := s.payments.ListStaleProcessing(ctx, before, DefaultSweepLimit)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return stale, nil
	}

	swept := make([]models.Payment, 0, len(stale))
	for i := range stale {
		p := stale[i]
		p.Status = models.PaymentStatusFailed
		p.Outcome = string(routing.OutcomeError)
		p.FailureReason = StaleReason
		if err := s.payments.Finalize(ctx, &p); err != nil {
			if errors.Is(err, repositories.ErrAttemptAlreadyFinal) {
				continue
			}
			return swept, err
		}
		log.Printf("⚠️ attempt %s (order %s, psp %d) swept as %s", p.IntentID, p.OrderID, p.PSPID, StaleReason)
		swept = append(swept, p)
	}
	return swept, nil
}

func (s *service) ResolveAttempt(ctx context.Context, intentID string, in ResolveInput) (*models.Payment, error) {
	v := validation.New()
	v.Check(intentID != "", "intent_id", "is required")
	v.Struct(in)
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResolution, v.Summary())
	}

	p, err := s.payments.GetByIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if p.Status != models.PaymentStatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrAttemptNotProcessing, p.Status)
	}

	p.Status = in.Status
	p.ProviderReference = in.Reference
	if in.Status == models.PaymentStatusSuccess {
		p.Outcome = string(routing.OutcomeSuccess)
		p.FailureReason = ""
	} else {
		p.Outcome = string(routing.OutcomeError)
		p.FailureReason = in.Reason
		if p.FailureReason == "" {
			p.FailureReason = StaleReason
		}
	}
	if err := s.payments.Finalize(ctx, p); err != nil {
		if errors.Is(err, repositories.ErrAttemptAlreadyFinal) {
			return nil, ErrAttemptNotProcessing
		}
		return nil, err
	}
	log.Printf("✅ attempt %s (order %s) resolved as %s", p.IntentID, p.OrderID, p.Status)
	return p, nil
}

func (s *service) sealKeys(psp *models.PSP, in PSPInput) error {
	if in.SecretKey != "" {
		sealed, err := s.vault.Encrypt(in.SecretKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt secret key: %w", err)
		}
		psp.EncryptedSecretKey = sealed
	}
	if in.PublicKey != "" {
		sealed, err := s.vault.Encrypt(in.PublicKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt public key: %w", err)
		}
		psp.EncryptedPublicKey = sealed
	}
	return nil
}

func (s *service) invalidate(ctx context.Context, storeID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateRoutingConfig(ctx, storeID); err != nil {
		log.Printf("⚠️ failed to invalidate routing config cache for store %d: %v", storeID, err)
	}
}

func validatePSP(in PSPInput) error {
	v := validation.New()
	v.Struct(in)
	v.Capacity("daily_capacity", in.DailyCapacity)
	v.Capacity("monthly_capacity", in.MonthlyCapacity)
	if !v.Valid() {
		return apperrors.ErrRoutingConfigInvalid.WithCause(errors.New(v.Summary()))
	}
	return nil
}

func mapPSPErr(err error) error {
	if errors.Is(err, repositories.ErrPSPNotFound) {
		return apperrors.ErrPSPNotFound
	}
	return err
}

func references(cfg *models.RoutingConfig, pspID uint) bool {
	for _, w := range cfg.Weights {
		if w.PSPID == pspID && w.Weight > 0 {
			return true
		}
	}
	for _, f := range cfg.Fallbacks {
		if f.PSPID == pspID {
			return true
		}
	}
	return false
}
