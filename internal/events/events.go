// Package events streams completed transactions to WebSocket subscribers.
// The feed is observe-only; clients never write.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"sambaza/internal/models"
	"sambaza/internal/rate"
)

// TransactionEvent is the wire form of one completed transaction. Phone
// numbers are masked before leaving the gateway.
type TransactionEvent struct {
	Type       string    `json:"type"`
	TxType     string    `json:"tx_type"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	AmountSats int64     `json:"amount_sats"`
	AmountKES  int64     `json:"amount_kes"`
	CreatedAt  time.Time `json:"created_at"`
}

// Hub fans completed transactions out to subscribers.
type Hub struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	send chan []byte
}

// NewHub returns an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Publish broadcasts a transaction to all subscribers. Slow subscribers have
// the message dropped rather than blocking the caller.
func (h *Hub) Publish(tx models.Transaction) {
	event := TransactionEvent{
		Type:       "transaction",
		TxType:     tx.Type,
		From:       maskPhone(tx.FromPhone),
		To:         maskPhone(tx.ToPhone),
		AmountSats: tx.AmountSats,
		AmountKES:  rate.SatsToKES(tx.AmountSats),
		CreatedAt:  tx.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encode transaction event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.send <- payload:
		default:
			h.logger.Warn("dropping event, subscriber buffer full")
		}
	}
}

// Subscribers reports the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = struct{}{}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, sub)
}

// maskPhone keeps the prefix and the last two digits: +254712345678 becomes
// +254712*****78. Non-phone labels like "mpesa" pass through unchanged.
func maskPhone(p string) string {
	if len(p) < 10 || p[0] != '+' {
		return p
	}
	return p[:7] + "*****" + p[len(p)-2:]
}
