package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"payroute/internal/domain/routing"
)

const maxResponseBytes = 1 << 20

// transportFailure folds a client-side error into a Result.
func transportFailure(err error) routing.Result {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return routing.Result{Outcome: routing.OutcomeError, ReasonCode: ReasonTimeout}
	case errors.Is(err, context.Canceled):
		return routing.Result{Outcome: routing.OutcomeError, ReasonCode: ReasonCanceled}
	default:
		return routing.Result{Outcome: routing.OutcomeError, ReasonCode: ReasonNetwork}
	}
}

// httpStatusFailure classifies a non-2xx status that carried no usable
// decline detail.
func httpStatusFailure(status int) routing.Result {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return routing.Result{Outcome: routing.OutcomeError, ReasonCode: ReasonUnauthorized}
	case status == http.StatusTooManyRequests || status >= 500:
		return routing.Result{Outcome: routing.OutcomeError, ReasonCode: fmt.Sprintf("http_%d", status)}
	default:
		return routing.Result{Outcome: routing.OutcomeDeclined, ReasonCode: fmt.Sprintf("http_%d", status)}
	}
}

// doJSON sends body as JSON and decodes a JSON response into out when
// out is non-nil. It returns the status code and the raw body.
func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body, out interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return send(client, req, out)
}

func send(client *http.Client, req *http.Request, out interface{}) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if out != nil && len(raw) > 0 && resp.StatusCode < 300 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, raw, fmt.Errorf("%w: %v", errBadPayload, err)
		}
	}
	return resp.StatusCode, raw, nil
}

var errBadPayload = errors.New("undecodable provider response")

func payloadFailure(err error) (routing.Result, bool) {
	if errors.Is(err, errBadPayload) {
		return routing.Result{Outcome: routing.OutcomeError, ReasonCode: ReasonBadResponse}, true
	}
	return routing.Result{}, false
}

func decodeError(raw []byte, out interface{}) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}
