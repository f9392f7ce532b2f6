// Package mpesa is the outbound adapter for the Daraja STK push API: OAuth
// token management, charge initiation and the status-query fallback.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/reservepay/reservepay/internal/config"
)

const (
	pathOAuth    = "/oauth/v1/generate?grant_type=client_credentials"
	pathSTKPush  = "/mpesa/stkpush/v1/processrequest"
	pathSTKQuery = "/mpesa/stkpushquery/v1/query"

	// Daraja tokens live for an hour; refresh a little early so a token
	// never expires mid-request.
	tokenLeeway = 60 * time.Second
)

type HTTPClient struct {
	cfg        config.MpesaConfig
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg config.MpesaConfig) *HTTPClient {
	return &HTTPClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
		now: time.Now,
	}
}

var _ GatewayClient = (*HTTPClient)(nil)

// Initiate sends an STK push prompt to the customer's phone. A ResponseCode
// of "0" means the gateway accepted the request for processing; the actual
// payment outcome arrives later via callback or query.
func (c *HTTPClient) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	password, timestamp := c.password()

	payload := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount,
		PartyA:            req.Phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.Phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   req.Description,
	}

	var resp stkPushResponse
	if err := c.send(ctx, pathSTKPush, payload, &resp); err != nil {
		return nil, err
	}

	if resp.ResponseCode != "0" {
		return nil, &GatewayError{
			Kind:       KindRejected,
			Code:       resp.ResponseCode,
			Message:    resp.ResponseDescription,
			StatusCode: http.StatusOK,
		}
	}

	return &InitiateResponse{
		CheckoutID:      resp.CheckoutRequestID,
		MerchantID:      resp.MerchantRequestID,
		CustomerMessage: resp.CustomerMessage,
	}, nil
}

// Query asks the gateway for the current outcome of a previously initiated
// charge. A "still processing" rejection is normalized to Pending rather
// than surfaced as an error.
func (c *HTTPClient) Query(ctx context.Context, checkoutID string) (*QueryResponse, error) {
	password, timestamp := c.password()

	payload := stkQueryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutID,
	}

	var resp stkQueryResponse
	if err := c.send(ctx, pathSTKQuery, payload, &resp); err != nil {
		if gwErr, ok := IsGatewayError(err); ok && gwErr.Code == codeStillProcessing {
			return &QueryResponse{Pending: true, ResultDesc: gwErr.Message}, nil
		}
		return nil, err
	}

	resultCode, err := strconv.Atoi(resp.ResultCode)
	if err != nil {
		return nil, fmt.Errorf("unparseable result code %q: %w", resp.ResultCode, err)
	}

	return &QueryResponse{
		ResultCode: resultCode,
		ResultDesc: resp.ResultDesc,
	}, nil
}

// send posts a payload with a bearer token, transparently re-authenticating
// once when the gateway reports the cached token expired.
func (c *HTTPClient) send(ctx context.Context, path string, payload any, out any) error {
	retried := false
	for {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}

		err = c.post(ctx, path, token, payload, out)
		if gwErr, ok := IsGatewayError(err); ok && gwErr.Kind == KindAuth && !retried {
			c.invalidateToken()
			retried = true
			continue
		}
		return err
	}
}

func (c *HTTPClient) post(ctx context.Context, path, token string, payload any, out any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling json: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &GatewayError{
			Kind:    KindTransient,
			Code:    "network_error",
			Message: err.Error(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gatewayErrorFromBody(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding json response: %w", err)
	}
	return nil
}

// accessToken returns a cached OAuth token, fetching a fresh one when the
// cache is empty or near expiry.
func (c *HTTPClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(tokenLeeway).Before(c.tokenExpiry) {
		return c.token, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+pathOAuth, nil)
	if err != nil {
		return "", fmt.Errorf("error creating token request: %w", err)
	}
	httpReq.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &GatewayError{
			Kind:    KindTransient,
			Code:    "network_error",
			Message: err.Error(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		kind := KindAuth
		if resp.StatusCode >= 500 {
			kind = KindTransient
		}
		return "", &GatewayError{
			Kind:       kind,
			Code:       "token_request_failed",
			Message:    string(body),
			StatusCode: resp.StatusCode,
		}
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("error decoding token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", &GatewayError{
			Kind:       KindAuth,
			Code:       "empty_token",
			Message:    "gateway returned no access token",
			StatusCode: resp.StatusCode,
		}
	}

	// Daraja reports expires_in as a string of seconds.
	ttl := 3600
	if parsed, err := strconv.Atoi(tokenResp.ExpiresIn); err == nil && parsed > 0 {
		ttl = parsed
	}

	c.token = tokenResp.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(ttl) * time.Second)
	return c.token, nil
}

func (c *HTTPClient) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// password derives the STK password: base64(shortcode + passkey + timestamp).
func (c *HTTPClient) password() (string, string) {
	timestamp := c.now().Format("20060102150405")
	encoded := base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
	return encoded, timestamp
}

func gatewayErrorFromBody(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp gatewayErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.ErrorCode == "" {
		return &GatewayError{
			Kind:       classify(resp.StatusCode, ""),
			Code:       "unexpected_response",
			Message:    string(body),
			StatusCode: resp.StatusCode,
		}
	}

	return &GatewayError{
		Kind:       classify(resp.StatusCode, errResp.ErrorCode),
		Code:       errResp.ErrorCode,
		Message:    errResp.ErrorMessage,
		StatusCode: resp.StatusCode,
	}
}
