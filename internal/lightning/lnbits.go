package lightning

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

// LNBitsProvider talks to an LNbits wallet over its REST API.
type LNBitsProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewLNBitsProvider builds a provider for the given LNbits instance.
func NewLNBitsProvider(baseURL, apiKey string, logger *zap.Logger) *LNBitsProvider {
	return &LNBitsProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type lnbitsInvoiceRequest struct {
	Out    bool   `json:"out"`
	Amount int64  `json:"amount"`
	Memo   string `json:"memo"`
}

type lnbitsInvoiceResponse struct {
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
}

type lnbitsPayRequest struct {
	Out    bool   `json:"out"`
	Bolt11 string `json:"bolt11"`
}

// CreateInvoice requests a new invoice from the wallet.
func (p *LNBitsProvider) CreateInvoice(ctx context.Context, payee string, amountSats int64, memo string) (Invoice, error) {
	var resp lnbitsInvoiceResponse
	err := p.do(ctx, http.MethodPost, "/api/v1/payments",
		lnbitsInvoiceRequest{Out: false, Amount: amountSats, Memo: memo}, &resp)
	if err != nil {
		return Invoice{}, err
	}

	p.logger.Info("created lnbits invoice",
		zap.String("payment_hash", resp.PaymentHash),
		zap.String("payee", payee),
		zap.Int64("amount_sats", amountSats),
	)
	return Invoice{
		InvoiceID:      resp.PaymentHash,
		PaymentRequest: resp.PaymentRequest,
		AmountSats:     amountSats,
		Memo:           memo,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// PayInvoice pays a bolt11 payment request from the wallet.
func (p *LNBitsProvider) PayInvoice(ctx context.Context, payer, paymentRequest string) error {
	err := p.do(ctx, http.MethodPost, "/api/v1/payments",
		lnbitsPayRequest{Out: true, Bolt11: paymentRequest}, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	p.logger.Info("paid lnbits invoice", zap.String("payer", payer))
	return nil
}

func (p *LNBitsProvider) do(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("lnbits: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("lnbits: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("lnbits: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("lnbits: %s %s: status %d: %s", method, path, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("lnbits: decode response: %w", err)
	}
	return nil
}
