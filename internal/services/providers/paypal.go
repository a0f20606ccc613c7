package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"payroute/internal/domain/routing"
	"payroute/internal/models"
	"payroute/internal/services/vault"
)

// tokenSkew renews access tokens this long before PayPal expires them.
const tokenSkew = time.Minute

// PayPalAdapter creates and captures an order against a vaulted payment
// token. The PSP public key is the REST client id and the secret key the
// client secret.
type PayPalAdapter struct {
	baseURL string
	client  *http.Client
	now     func() time.Time

	mu     sync.Mutex
	tokens map[string]paypalToken
}

type paypalToken struct {
	value   string
	expires time.Time
}

func NewPayPalAdapter(baseURL string, client *http.Client) *PayPalAdapter {
	if baseURL == "" {
		baseURL = DefaultPayPalBaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &PayPalAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		now:     time.Now,
		tokens:  make(map[string]paypalToken),
	}
}

func (a *PayPalAdapter) Type() models.ProviderType {
	return models.ProviderPayPal
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id"`
	CustomID    string       `json:"custom_id,omitempty"`
	Amount      paypalAmount `json:"amount"`
}

type paypalVaultToken struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type paypalOrderRequest struct {
	Intent        string               `json:"intent"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
	PaymentSource map[string]any       `json:"payment_source"`
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type paypalErrorResponse struct {
	Name    string `json:"name"`
	Details []struct {
		Issue string `json:"issue"`
	} `json:"details"`
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *PayPalAdapter) Charge(ctx context.Context, creds vault.Credentials, req ChargeRequest) routing.Result {
	token, result, ok := a.accessToken(ctx, creds)
	if !ok {
		return result
	}

	body := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			ReferenceID: req.OrderID,
			CustomID:    req.IntentID,
			Amount: paypalAmount{
				CurrencyCode: strings.ToUpper(req.Currency),
				Value:        FormatMajor(req.Amount, req.Currency),
			},
		}},
		PaymentSource: map[string]any{
			"token": paypalVaultToken{ID: req.Customer.PaymentMethod, Type: "BILLING_AGREEMENT"},
		},
	}

	headers := map[string]string{
		"Authorization":     "Bearer " + token,
		"PayPal-Request-Id": req.IntentID,
		"Prefer":            "return=representation",
	}

	var order paypalOrderResponse
	status, raw, err := doJSON(ctx, a.client, http.MethodPost, a.baseURL+"/v2/checkout/orders", headers, body, &order)
	if err != nil {
		if r, ok := payloadFailure(err); ok {
			return r
		}
		return transportFailure(err)
	}
	if status == http.StatusUnauthorized {
		a.forget(creds)
	}
	if status >= 300 {
		return paypalFailure(status, raw)
	}

	switch order.Status {
	case "COMPLETED":
		return routing.Result{Outcome: routing.OutcomeSuccess, Reference: order.ID}
	case "PAYER_ACTION_REQUIRED":
		return routing.Result{Outcome: routing.OutcomeDeclined, ReasonCode: ReasonAuthRequired, Reference: order.ID}
	case "CREATED", "APPROVED":
		return a.capture(ctx, token, req.IntentID, order.ID)
	default:
		return routing.Result{Outcome: routing.OutcomeDeclined, ReasonCode: "status_" + strings.ToLower(order.Status), Reference: order.ID}
	}
}

func (a *PayPalAdapter) capture(ctx context.Context, token, intentID, orderID string) routing.Result {
	headers := map[string]string{
		"Authorization":     "Bearer " + token,
		"PayPal-Request-Id": intentID + "-capture",
		"Prefer":            "return=representation",
	}

	var order paypalOrderResponse
	endpoint := fmt.Sprintf("%s/v2/checkout/orders/%s/capture", a.baseURL, url.PathEscape(orderID))
	status, raw, err := doJSON(ctx, a.client, http.MethodPost, endpoint, headers, struct{}{}, &order)
	if err != nil {
		if r, ok := payloadFailure(err); ok {
			return r
		}
		return transportFailure(err)
	}
	if status >= 300 {
		r := paypalFailure(status, raw)
		r.Reference = orderID
		return r
	}
	if order.Status != "COMPLETED" {
		return routing.Result{Outcome: routing.OutcomeDeclined, ReasonCode: "status_" + strings.ToLower(order.Status), Reference: orderID}
	}
	return routing.Result{Outcome: routing.OutcomeSuccess, Reference: orderID}
}

func paypalFailure(status int, raw []byte) routing.Result {
	if status == http.StatusUnprocessableEntity || status == http.StatusBadRequest {
		var e paypalErrorResponse
		if decodeError(raw, &e) {
			if len(e.Details) > 0 && e.Details[0].Issue != "" {
				return routing.Result{Outcome: routing.OutcomeDeclined, ReasonCode: e.Details[0].Issue}
			}
			if e.Name != "" {
				return routing.Result{Outcome: routing.OutcomeDeclined, ReasonCode: e.Name}
			}
		}
	}
	return httpStatusFailure(status)
}

// accessToken returns a cached OAuth token for the client id or fetches one.
func (a *PayPalAdapter) accessToken(ctx context.Context, creds vault.Credentials) (string, routing.Result, bool) {
	clientID := creds.PublicKey

	a.mu.Lock()
	cached, ok := a.tokens[clientID]
	a.mu.Unlock()
	if ok && a.now().Before(cached.expires) {
		return cached.value, routing.Result{}, true
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", transportFailure(err), false
	}
	req.SetBasicAuth(clientID, creds.SecretKey.Reveal())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tok paypalTokenResponse
	status, _, err := send(a.client, req, &tok)
	if err != nil {
		if r, ok := payloadFailure(err); ok {
			return "", r, false
		}
		return "", transportFailure(err), false
	}
	if status >= 300 {
		if status == http.StatusBadRequest {
			// invalid_client comes back as 400 from the token endpoint
			status = http.StatusUnauthorized
		}
		return "", httpStatusFailure(status), false
	}
	if tok.AccessToken == "" {
		return "", routing.Result{Outcome: routing.OutcomeError, ReasonCode: ReasonBadResponse}, false
	}

	expires := a.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSkew)
	a.mu.Lock()
	a.tokens[clientID] = paypalToken{value: tok.AccessToken, expires: expires}
	a.mu.Unlock()

	return tok.AccessToken, routing.Result{}, true
}

func (a *PayPalAdapter) forget(creds vault.Credentials) {
	a.mu.Lock()
	delete(a.tokens, creds.PublicKey)
	a.mu.Unlock()
}
