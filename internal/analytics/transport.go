package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"

	"fleet-insights/internal/common/auth"
	"fleet-insights/internal/common/errors"
	"fleet-insights/internal/common/http"
)

// Remote function names multiplexed over the single logical endpoint.
const (
	fnCreateChat = "create"
	fnSubmit     = "submit"
	fnStatus     = "status"
)

// Caller executes one remote function call and returns the decoded results
// list from the response envelope. An empty list is not an error at this
// layer; each operation decides what absence means.
type Caller interface {
	Call(ctx context.Context, functionName string, params map[string]interface{}, creds auth.Credentials) ([]map[string]interface{}, error)
}

type requestEnvelope struct {
	Service      string                 `json:"service"`
	FunctionName string                 `json:"functionName"`
	// The remote treats a missing customer-data scope flag as an empty
	// success, not an error. It must be set on every call.
	IsCustomerData bool                   `json:"isCustomerData"`
	Params         map[string]interface{} `json:"params"`
	SessionToken   string                 `json:"sessionToken"`
}

type responseEnvelope struct {
	Result *struct {
		APIResult *struct {
			Results []map[string]interface{} `json:"results"`
		} `json:"apiResult"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// HTTPCaller talks to the remote analytics service over HTTP.
type HTTPCaller struct {
	baseURL    string
	serviceID  string
	httpClient *http.Client
}

func NewHTTPCaller(baseURL, serviceID string, client *http.Client) *HTTPCaller {
	return &HTTPCaller{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		serviceID:  serviceID,
		httpClient: client,
	}
}

func (c *HTTPCaller) Call(ctx context.Context, functionName string, params map[string]interface{}, creds auth.Credentials) ([]map[string]interface{}, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	envelope := requestEnvelope{
		Service:        c.serviceID,
		FunctionName:   functionName,
		IsCustomerData: true,
		Params:         params,
		SessionToken:   creds.Token,
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransportFailed, "failed to marshal request", err)
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, c.baseURL+"/api/query", bytes.NewBuffer(payload))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransportFailed, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransportFailed, fmt.Sprintf("%s call failed", functionName), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransportFailed, "failed to read response body", err)
	}

	if resp.StatusCode != nethttp.StatusOK {
		return nil, errors.Newf(errors.ErrCodeTransportFailed, "%s call returned status %d: %s", functionName, resp.StatusCode, string(body))
	}

	var decoded responseEnvelope
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransportFailed, "failed to decode response envelope", err)
	}

	if decoded.Error != nil {
		// Remote application error, message forwarded verbatim.
		return nil, errors.New(errors.ErrCodeRemoteError, decoded.Error.Message)
	}

	if decoded.Result == nil || decoded.Result.APIResult == nil {
		return nil, nil
	}
	return decoded.Result.APIResult.Results, nil
}
