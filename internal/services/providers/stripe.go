package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"payroute/internal/domain/routing"
	"payroute/internal/models"
	"payroute/internal/services/vault"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// intentClient is the part of the Stripe client the adapter drives.
type intentClient interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeAdapter confirms a PaymentIntent per attempt. A client is built
// per call so each PSP row charges with its own secret key.
type StripeAdapter struct {
	newClient func(secretKey string) intentClient
}

func NewStripeAdapter() *StripeAdapter {
	return &StripeAdapter{newClient: func(secretKey string) intentClient {
		sc := &client.API{}
		sc.Init(secretKey, nil)
		return sc.PaymentIntents
	}}
}

func (a *StripeAdapter) Type() models.ProviderType {
	return models.ProviderStripe
}

func (a *StripeAdapter) Charge(ctx context.Context, creds vault.Credentials, req ChargeRequest) routing.Result {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod:      stripe.String(req.Customer.PaymentMethod),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
	}
	if req.Customer.Email != "" {
		params.ReceiptEmail = stripe.String(req.Customer.Email)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IntentID)
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("intent_id", req.IntentID)
	for k, v := range req.Customer.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := a.newClient(creds.SecretKey.Reveal()).New(params)
	if err != nil {
		return stripeFailure(err)
	}
	return stripeIntentResult(pi)
}

func stripeIntentResult(pi *stripe.PaymentIntent) routing.Result {
	if pi == nil {
		return routing.Result{Outcome: routing.OutcomeError, ReasonCode: ReasonBadResponse}
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return routing.Result{Outcome: routing.OutcomeSuccess, Reference: pi.ID}
	case stripe.PaymentIntentStatusRequiresAction:
		return routing.Result{Outcome: routing.OutcomeDeclined, ReasonCode: ReasonAuthRequired, Reference: pi.ID}
	}

	reason := ReasonUnknownDecline
	if pi.LastPaymentError != nil {
		reason = stripeDeclineCode(pi.LastPaymentError)
	} else if pi.Status != "" {
		reason = "status_" + string(pi.Status)
	}
	return routing.Result{Outcome: routing.OutcomeDeclined, ReasonCode: reason, Reference: pi.ID}
}

func stripeFailure(err error) routing.Result {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return transportFailure(err)
	}

	if serr.Type == stripe.ErrorTypeCard {
		return routing.Result{Outcome: routing.OutcomeDeclined, ReasonCode: stripeDeclineCode(serr)}
	}

	status := serr.HTTPStatusCode
	if status == 0 {
		status = http.StatusBadGateway
	}
	result := httpStatusFailure(status)
	if result.Outcome == routing.OutcomeDeclined && serr.Code != "" {
		result.ReasonCode = string(serr.Code)
	}
	return result
}

func stripeDeclineCode(serr *stripe.Error) string {
	switch {
	case serr.DeclineCode != "":
		return string(serr.DeclineCode)
	case serr.Code != "":
		return string(serr.Code)
	default:
		return string(serr.Type)
	}
}
