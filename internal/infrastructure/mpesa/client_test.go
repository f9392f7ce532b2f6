package mpesa_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reservepay/reservepay/internal/config"
	"github.com/reservepay/reservepay/internal/infrastructure/mpesa"
)

type fakeDaraja struct {
	mux *http.ServeMux

	tokenRequests atomic.Int64
	pushRequests  atomic.Int64

	tokenHandler http.HandlerFunc
	pushHandler  http.HandlerFunc
	queryHandler http.HandlerFunc
}

func newFakeDaraja() *fakeDaraja {
	f := &fakeDaraja{mux: http.NewServeMux()}

	f.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "test-token",
			"expires_in":   "3599",
		})
	}
	f.pushHandler = func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"MerchantRequestID":   "29115-34620561-1",
			"CheckoutRequestID":   "ws_CO_191220191020363925",
			"ResponseCode":        "0",
			"ResponseDescription": "Success. Request accepted for processing",
			"CustomerMessage":     "Success. Request accepted for processing",
		})
	}
	f.queryHandler = func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode": "0",
			"ResultCode":   "0",
			"ResultDesc":   "The service request is processed successfully.",
		})
	}

	f.mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		f.tokenRequests.Add(1)
		f.tokenHandler(w, r)
	})
	f.mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		f.pushRequests.Add(1)
		f.pushHandler(w, r)
	})
	f.mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		f.queryHandler(w, r)
	})
	return f
}

func newTestClient(t *testing.T) (*mpesa.HTTPClient, *fakeDaraja) {
	t.Helper()
	daraja := newFakeDaraja()
	srv := httptest.NewServer(daraja.mux)
	t.Cleanup(srv.Close)

	client := mpesa.NewClient(config.MpesaConfig{
		BaseURL:        srv.URL,
		ConsumerKey:    "test-key",
		ConsumerSecret: "test-secret",
		ShortCode:      "174379",
		Passkey:        "test-passkey",
		CallbackURL:    "https://example.com/api/mpesa/callback",
		ConnTimeout:    5 * time.Second,
	})
	return client, daraja
}

func initiateRequest() mpesa.InitiateRequest {
	return mpesa.InitiateRequest{
		Phone:       "254712345678",
		Amount:      9000,
		Reference:   "bkg-123",
		Description: "Storage unit rental",
	}
}

func TestInitiate(t *testing.T) {
	ctx := context.Background()

	t.Run("returns correlation identifiers on acceptance", func(t *testing.T) {
		client, _ := newTestClient(t)

		resp, err := client.Initiate(ctx, initiateRequest())

		require.NoError(t, err)
		assert.Equal(t, "ws_CO_191220191020363925", resp.CheckoutID)
		assert.Equal(t, "29115-34620561-1", resp.MerchantID)
	})

	t.Run("sends authenticated STK payload", func(t *testing.T) {
		client, daraja := newTestClient(t)

		var got map[string]any
		var auth string
		daraja.pushHandler = func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(map[string]string{
				"CheckoutRequestID": "ws_CO_1",
				"ResponseCode":      "0",
			})
		}

		_, err := client.Initiate(ctx, initiateRequest())

		require.NoError(t, err)
		assert.Equal(t, "Bearer test-token", auth)
		assert.Equal(t, "174379", got["BusinessShortCode"])
		assert.Equal(t, "CustomerPayBillOnline", got["TransactionType"])
		assert.Equal(t, "254712345678", got["PhoneNumber"])
		assert.Equal(t, "bkg-123", got["AccountReference"])
		assert.NotEmpty(t, got["Password"])
		assert.NotEmpty(t, got["Timestamp"])
	})

	t.Run("caches the OAuth token across calls", func(t *testing.T) {
		client, daraja := newTestClient(t)

		_, err := client.Initiate(ctx, initiateRequest())
		require.NoError(t, err)
		_, err = client.Initiate(ctx, initiateRequest())
		require.NoError(t, err)

		assert.Equal(t, int64(1), daraja.tokenRequests.Load())
		assert.Equal(t, int64(2), daraja.pushRequests.Load())
	})

	t.Run("re-authenticates once on an expired token", func(t *testing.T) {
		client, daraja := newTestClient(t)

		daraja.pushHandler = func(w http.ResponseWriter, r *http.Request) {
			if daraja.pushRequests.Load() == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{
					"requestId":    "req-1",
					"errorCode":    "404.001.03",
					"errorMessage": "Invalid Access Token",
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"CheckoutRequestID": "ws_CO_1",
				"ResponseCode":      "0",
			})
		}

		resp, err := client.Initiate(ctx, initiateRequest())

		require.NoError(t, err)
		assert.Equal(t, "ws_CO_1", resp.CheckoutID)
		assert.Equal(t, int64(2), daraja.tokenRequests.Load())
		assert.Equal(t, int64(2), daraja.pushRequests.Load())
	})

	t.Run("non-zero response code is a rejection", func(t *testing.T) {
		client, daraja := newTestClient(t)

		daraja.pushHandler = func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode":        "1",
				"ResponseDescription": "Unable to lock subscriber",
			})
		}

		_, err := client.Initiate(ctx, initiateRequest())

		gwErr, ok := mpesa.IsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, mpesa.KindRejected, gwErr.Kind)
		assert.Equal(t, "1", gwErr.Code)
	})

	t.Run("gateway 500 is transient", func(t *testing.T) {
		client, daraja := newTestClient(t)

		daraja.pushHandler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{
				"requestId":    "req-1",
				"errorCode":    "500.003.02",
				"errorMessage": "Error Occurred: Spike Arrest Violation",
			})
		}

		_, err := client.Initiate(ctx, initiateRequest())

		gwErr, ok := mpesa.IsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, mpesa.KindTransient, gwErr.Kind)
		assert.True(t, gwErr.IsRetryable())
	})

	t.Run("unreachable gateway is transient", func(t *testing.T) {
		daraja := newFakeDaraja()
		srv := httptest.NewServer(daraja.mux)
		srv.Close()

		client := mpesa.NewClient(config.MpesaConfig{
			BaseURL:     srv.URL,
			ConnTimeout: time.Second,
		})

		_, err := client.Initiate(ctx, initiateRequest())

		gwErr, ok := mpesa.IsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, mpesa.KindTransient, gwErr.Kind)
	})

	t.Run("rejected credentials surface as auth failure", func(t *testing.T) {
		client, daraja := newTestClient(t)

		daraja.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errorMessage":"Invalid credentials"}`))
		}

		_, err := client.Initiate(ctx, initiateRequest())

		gwErr, ok := mpesa.IsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, mpesa.KindAuth, gwErr.Kind)
	})
}

func TestQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("parses a settled result", func(t *testing.T) {
		client, daraja := newTestClient(t)

		daraja.queryHandler = func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode": "0",
				"ResultCode":   "1032",
				"ResultDesc":   "Request cancelled by user",
			})
		}

		resp, err := client.Query(ctx, "ws_CO_191220191020363925")

		require.NoError(t, err)
		assert.False(t, resp.Pending)
		assert.Equal(t, 1032, resp.ResultCode)
		assert.Equal(t, "Request cancelled by user", resp.ResultDesc)
	})

	t.Run("still processing is pending, not an error", func(t *testing.T) {
		client, daraja := newTestClient(t)

		daraja.queryHandler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{
				"requestId":    "req-1",
				"errorCode":    "500.001.1001",
				"errorMessage": "The transaction is being processed",
			})
		}

		resp, err := client.Query(ctx, "ws_CO_191220191020363925")

		require.NoError(t, err)
		assert.True(t, resp.Pending)
	})

	t.Run("rejects an unparseable result code", func(t *testing.T) {
		client, daraja := newTestClient(t)

		daraja.queryHandler = func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode": "0",
				"ResultCode":   "not-a-number",
			})
		}

		_, err := client.Query(ctx, "ws_CO_191220191020363925")

		assert.Error(t, err)
	})
}
