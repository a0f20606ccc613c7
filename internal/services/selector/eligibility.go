package selector

import (
	"context"
	"fmt"
	"time"

	apperrors "payroute/internal/errors"
	"payroute/internal/models"
	"payroute/internal/services/capacity"
	"payroute/internal/services/vault"
)

type eligibility struct {
	ledger capacity.Ledger
	vault  vault.Vault
	gate   ProviderGate
}

// NewEligibilityChecker combines activation, provider availability,
// credentials and capacity into one check. Checks run cheapest first.
func NewEligibilityChecker(ledger capacity.Ledger, v vault.Vault, gate ProviderGate) EligibilityChecker {
	if ledger == nil {
		panic("ledger is required")
	}
	if v == nil {
		panic("vault is required")
	}
	if gate == nil {
		panic("provider gate is required")
	}
	return &eligibility{ledger: ledger, vault: v, gate: gate}
}

func (e *eligibility) Evaluate(ctx context.Context, psp models.PSP, amount int64, now time.Time) (*Candidate, error) {
	if !psp.Usable() {
		return nil, ErrInactive
	}

	if err := e.gate.Available(&psp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderDown, err)
	}

	creds, err := vault.OpenCredentials(e.vault, psp.EncryptedPublicKey, psp.EncryptedSecretKey)
	if err != nil {
		return nil, apperrors.ErrCredentialDecryption.WithCause(err)
	}

	usage, err := e.ledger.Usage(ctx, &psp, now)
	if err != nil {
		return nil, err
	}
	if !capacity.Fits(usage, &psp, amount) {
		return nil, ErrCapacityExceeded
	}

	return &Candidate{
		PSP:         psp,
		Credentials: creds,
		Usage:       usage,
	}, nil
}
