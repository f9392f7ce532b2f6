package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/reservepay/reservepay/internal/domain"
)

// Daraja's STK callback envelope. Metadata items are name/value pairs with
// loosely typed values; amounts arrive as JSON numbers, receipts as strings.
type stkCallbackPayload struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// MpesaCallback ingests the gateway's asynchronous payment notification.
// The response is always the fixed acknowledgement: a non-2xx or error body
// would make Daraja redeliver, and redeliveries are already absorbed by the
// reconciler's dedup, so there is nothing useful to signal back.
func (h *Handlers) MpesaCallback(w http.ResponseWriter, r *http.Request) {
	defer h.ackCallback(w)

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		h.logger.Warn("callback body unreadable", "error", err)
		return
	}

	var payload stkCallbackPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Warn("callback payload malformed", "error", err)
		return
	}

	cb := payload.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		h.logger.Warn("callback missing checkout id")
		return
	}

	event := &domain.CallbackEvent{
		CheckoutID: cb.CheckoutRequestID,
		MerchantID: cb.MerchantRequestID,
		ResultCode: cb.ResultCode,
		ResultDesc: cb.ResultDesc,
		RawPayload: raw,
		ReceivedAt: time.Now().UTC(),
	}
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			if receipt, ok := item.Value.(string); ok {
				event.ReceiptNumber = receipt
			}
		case "Amount":
			if amount, ok := item.Value.(float64); ok {
				event.Amount = int64(amount)
			}
		}
	}

	outcome, err := h.payments.ApplyCallback(r.Context(), event)
	if err != nil {
		h.logger.Error("callback reconciliation failed",
			"checkout_id", event.CheckoutID,
			"result_code", event.ResultCode,
			"error", err,
		)
		return
	}

	h.logger.Info("callback processed",
		"checkout_id", event.CheckoutID,
		"result_code", event.ResultCode,
		"outcome", string(outcome),
	)
}

func (h *Handlers) ackCallback(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ResultCode": 0,
		"ResultDesc": "Accepted",
	})
}
