package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	sandboxBaseURL = "https://sandbox.intasend.com"
	liveBaseURL    = "https://payment.intasend.com"
)

// IntaSendGateway drives M-Pesa STK push collections and payouts through the
// IntaSend payment API.
type IntaSendGateway struct {
	baseURL     string
	publishable string
	secret      string
	client      *http.Client
	logger      *zap.Logger
}

// NewIntaSendGateway builds a gateway against the sandbox or live environment.
func NewIntaSendGateway(publishableKey, secretKey string, test bool, logger *zap.Logger) *IntaSendGateway {
	base := liveBaseURL
	if test {
		base = sandboxBaseURL
	}
	return &IntaSendGateway{
		baseURL:     base,
		publishable: publishableKey,
		secret:      secretKey,
		client:      &http.Client{Timeout: 20 * time.Second},
		logger:      logger,
	}
}

type stkPushRequest struct {
	PublicKey   string `json:"public_key"`
	Amount      int64  `json:"amount"`
	PhoneNumber string `json:"phone_number"`
	APIRef      string `json:"api_ref"`
	Currency    string `json:"currency"`
}

type intasendInvoice struct {
	InvoiceID    string `json:"invoice_id"`
	State        string `json:"state"`
	APIRef       string `json:"api_ref"`
	FailedReason string `json:"failed_reason"`
}

type stkPushResponse struct {
	Invoice intasendInvoice `json:"invoice"`
}

type payoutRequest struct {
	Currency         string              `json:"currency"`
	Provider         string              `json:"provider"`
	Transactions     []payoutTransaction `json:"transactions"`
	RequiresApproval string              `json:"requires_approval"`
}

type payoutTransaction struct {
	Account   string `json:"account"`
	Amount    int64  `json:"amount"`
	Narrative string `json:"narrative"`
}

type payoutResponse struct {
	TrackingID string `json:"tracking_id"`
	Status     string `json:"status"`
}

// InitiateCollection starts an M-Pesa STK push for the given phone.
func (g *IntaSendGateway) InitiateCollection(ctx context.Context, phone string, amountKES int64, reference string) (Collection, error) {
	req := stkPushRequest{
		PublicKey:   g.publishable,
		Amount:      amountKES,
		PhoneNumber: phone,
		APIRef:      reference,
		Currency:    "KES",
	}
	var resp stkPushResponse
	if err := g.do(ctx, http.MethodPost, "/api/v1/payment/mpesa-stk-push/", req, &resp); err != nil {
		return Collection{}, err
	}

	g.logger.Info("initiated stk push",
		zap.String("invoice_id", resp.Invoice.InvoiceID),
		zap.String("phone", phone),
		zap.Int64("amount_kes", amountKES),
	)
	return Collection{InvoiceID: resp.Invoice.InvoiceID, State: resp.Invoice.State}, nil
}

// CheckStatus fetches the current state of a collection invoice.
func (g *IntaSendGateway) CheckStatus(ctx context.Context, invoiceID string) (Status, error) {
	body := map[string]string{"invoice_id": invoiceID}
	var resp stkPushResponse
	if err := g.do(ctx, http.MethodPost, "/api/v1/payment/status/", body, &resp); err != nil {
		return Status{}, err
	}
	return Status{
		InvoiceID:    resp.Invoice.InvoiceID,
		State:        resp.Invoice.State,
		Reference:    resp.Invoice.APIRef,
		FailedReason: resp.Invoice.FailedReason,
	}, nil
}

// InitiatePayout sends mobile money to the given phone.
func (g *IntaSendGateway) InitiatePayout(ctx context.Context, phone string, amountKES int64, reference string) (Payout, error) {
	req := payoutRequest{
		Currency: "KES",
		Provider: "MPESA-B2C",
		Transactions: []payoutTransaction{
			{Account: phone, Amount: amountKES, Narrative: reference},
		},
		RequiresApproval: "NO",
	}
	var resp payoutResponse
	if err := g.do(ctx, http.MethodPost, "/api/v1/send-money/initiate/", req, &resp); err != nil {
		return Payout{}, err
	}

	g.logger.Info("initiated payout",
		zap.String("tracking_id", resp.TrackingID),
		zap.String("phone", phone),
		zap.Int64("amount_kes", amountKES),
	)
	return Payout{TrackingID: resp.TrackingID, State: resp.Status}, nil
}

func (g *IntaSendGateway) do(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("intasend: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("intasend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.secret)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("intasend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("intasend: %s %s: status %d: %s", method, path, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("intasend: decode response: %w", err)
	}
	return nil
}
