package providers

import (
	"context"
	"net/http"
	"strings"

	"payroute/internal/domain/routing"
	"payroute/internal/models"
	"payroute/internal/services/vault"
)

// CheckoutAdapter requests an auto-captured payment from the Checkout.com
// Payments API.
type CheckoutAdapter struct {
	baseURL string
	client  *http.Client
}

func NewCheckoutAdapter(baseURL string, client *http.Client) *CheckoutAdapter {
	if baseURL == "" {
		baseURL = DefaultCheckoutBaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &CheckoutAdapter{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (a *CheckoutAdapter) Type() models.ProviderType {
	return models.ProviderCheckout
}

type checkoutSource struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
	ID    string `json:"id,omitempty"`
}

type checkoutCustomer struct {
	Email string `json:"email,omitempty"`
}

type checkoutPaymentRequest struct {
	Source    checkoutSource    `json:"source"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Reference string            `json:"reference"`
	Capture   bool              `json:"capture"`
	Customer  *checkoutCustomer `json:"customer,omitempty"`
	PaymentIP string            `json:"payment_ip,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type checkoutPaymentResponse struct {
	ID              string `json:"id"`
	Approved        bool   `json:"approved"`
	Status          string `json:"status"`
	ResponseCode    string `json:"response_code"`
	ResponseSummary string `json:"response_summary"`
}

type checkoutErrorResponse struct {
	ErrorType  string   `json:"error_type"`
	ErrorCodes []string `json:"error_codes"`
}

func (a *CheckoutAdapter) Charge(ctx context.Context, creds vault.Credentials, req ChargeRequest) routing.Result {
	body := checkoutPaymentRequest{
		Source:    checkoutSourceFor(req.Customer.PaymentMethod),
		Amount:    req.Amount,
		Currency:  strings.ToUpper(req.Currency),
		Reference: req.OrderID,
		Capture:   true,
		PaymentIP: req.Customer.IPAddress,
		Metadata:  req.Customer.Metadata,
	}
	if req.Customer.Email != "" {
		body.Customer = &checkoutCustomer{Email: req.Customer.Email}
	}

	headers := map[string]string{
		"Authorization":       "Bearer " + creds.SecretKey.Reveal(),
		"Cko-Idempotency-Key": req.IntentID,
	}

	var resp checkoutPaymentResponse
	status, raw, err := doJSON(ctx, a.client, http.MethodPost, a.baseURL+"/payments", headers, body, &resp)
	if err != nil {
		if r, ok := payloadFailure(err); ok {
			return r
		}
		return transportFailure(err)
	}

	switch {
	case status == http.StatusCreated || status == http.StatusOK:
		if resp.Approved {
			return routing.Result{Outcome: routing.OutcomeSuccess, Reference: resp.ID}
		}
		reason := resp.ResponseCode
		if reason == "" {
			reason = ReasonUnknownDecline
		}
		return routing.Result{Outcome: routing.OutcomeDeclined, ReasonCode: reason, Reference: resp.ID}
	case status == http.StatusAccepted:
		// pending, typically 3DS; nothing was captured inline
		return routing.Result{Outcome: routing.OutcomeDeclined, ReasonCode: ReasonAuthRequired, Reference: resp.ID}
	case status == http.StatusUnprocessableEntity:
		var e checkoutErrorResponse
		if decodeError(raw, &e) && len(e.ErrorCodes) > 0 {
			return routing.Result{Outcome: routing.OutcomeDeclined, ReasonCode: e.ErrorCodes[0]}
		}
		return httpStatusFailure(status)
	default:
		return httpStatusFailure(status)
	}
}

func checkoutSourceFor(paymentMethod string) checkoutSource {
	if strings.HasPrefix(paymentMethod, "src_") {
		return checkoutSource{Type: "id", ID: paymentMethod}
	}
	return checkoutSource{Type: "token", Token: paymentMethod}
}
