package mpesa

import "context"

// InitiateRequest asks the gateway to push a payment prompt to the customer's
// phone for the given whole-shilling amount.
type InitiateRequest struct {
	Phone       string
	Amount      int64
	Reference   string
	Description string
}

// InitiateResponse carries the correlation identifiers assigned by the
// gateway. CheckoutID is the handle for callbacks and status queries.
type InitiateResponse struct {
	CheckoutID      string
	MerchantID      string
	CustomerMessage string
}

// QueryResponse is the outcome of an explicit status query. Pending means the
// customer has not yet confirmed or declined the prompt.
type QueryResponse struct {
	Pending    bool
	ResultCode int
	ResultDesc string
}

// GatewayClient is the outbound port to the payment gateway. Stateless per
// call; both operations classify failures as auth, rejected or transient.
type GatewayClient interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
	Query(ctx context.Context, checkoutID string) (*QueryResponse, error)
}

// Wire types for the Daraja API.

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}
