package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sambaza/internal/ledger"
	"sambaza/internal/models"
	"sambaza/internal/phone"
	"sambaza/internal/rate"
	"sambaza/internal/session"
)

// Send amount bounds, presentation policy on top of the 1-sat ledger floor.
const (
	minSendSats int64 = 10
	maxSendSats int64 = 1_000_000
)

// stkTimeout bounds the synchronous part of STK-push initiation so the USSD
// session does not outlive the aggregator's patience.
const stkTimeout = 15 * time.Second

func (e *Engine) balance(ctx context.Context, userPhone string) int64 {
	bal, err := e.ledger.GetBalance(ctx, userPhone)
	if err != nil {
		e.logger.Error("get balance", zap.String("phone", userPhone), zap.Error(err))
		return 0
	}
	return bal
}

func (e *Engine) mainMenu(ctx context.Context, st *session.State) string {
	return fmt.Sprintf("CON Welcome to Bitcoin Lightning!\n₿ Balance: %s sats\n\n%s",
		comma(e.balance(ctx, st.Phone)), menuText)
}

// doSend moves sats between wallet users over the Lightning node and settles
// the internal ledger. The balance is checked before any node call: once
// PayInvoice runs, real sats have left the node wallet, so the ledger must
// already be known to cover them. Returns a terminal END response either way.
func (e *Engine) doSend(ctx context.Context, from, to string, amountSats int64) string {
	if bal := e.balance(ctx, from); bal < amountSats {
		return fmt.Sprintf("END Payment failed: Insufficient balance. Current: %d sats", bal)
	}

	inv, err := e.node.CreateInvoice(ctx, to, amountSats, fmt.Sprintf("USSD payment from %s", from))
	if err != nil {
		e.logger.Error("create send invoice", zap.Error(err))
		return "END Payment failed: Failed to create payment invoice"
	}
	if err := e.node.PayInvoice(ctx, from, inv.PaymentRequest); err != nil {
		e.logger.Error("pay send invoice", zap.Error(err))
		return "END Payment failed: Payment failed"
	}

	newBalance, err := e.ledger.Transfer(ctx, from, to, amountSats)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return fmt.Sprintf("END Payment failed: Insufficient balance. Current: %d sats", e.balance(ctx, from))
		}
		e.logger.Error("transfer", zap.Error(err))
		return "END Payment failed: Internal error during payment"
	}

	e.publish(models.Transaction{
		FromPhone:  from,
		ToPhone:    to,
		AmountSats: amountSats,
		Type:       models.TxTypeLightning,
		CreatedAt:  time.Now().UTC(),
	})
	return fmt.Sprintf("END Sent %d sats to %s. New balance: %d sats", amountSats, to, newBalance)
}

// createInvoice generates a receive invoice and renders its short code.
func (e *Engine) createInvoice(ctx context.Context, userPhone string, amountSats int64, memo string) string {
	if memo == "" {
		memo = "USSD Bitcoin payment"
	}
	inv, err := e.node.CreateInvoice(ctx, userPhone, amountSats, memo)
	if err != nil {
		e.logger.Error("create invoice", zap.Error(err))
		return "END Invoice creation failed: Failed to create invoice"
	}

	short := inv.InvoiceID
	if len(short) > 8 {
		short = short[len(short)-8:]
	}
	return fmt.Sprintf("END Invoice created: %s\nAmount: %d sats\nShare this code or pay via Lightning wallet", short, amountSats)
}

// sendInvoice generates an invoice on the sender's wallet addressed to the
// recipient. Delivery is out of band (SMS in a full deployment).
func (e *Engine) sendInvoice(ctx context.Context, from, to string, amountSats int64) string {
	inv, err := e.node.CreateInvoice(ctx, from, amountSats, "USSD Bitcoin payment")
	if err != nil {
		e.logger.Error("create outbound invoice", zap.Error(err))
		return "END Invoice sending failed: Failed to create invoice"
	}

	e.logger.Info("invoice addressed",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("invoice_id", inv.InvoiceID),
		zap.Int64("amount_sats", amountSats),
	)
	return fmt.Sprintf("END Invoice sent to %s\nAmount: %d sats", to, amountSats)
}

// initiateTopup starts the STK push and records the pending payment. Nothing
// is credited here; the reconciler settles once the provider confirms.
func (e *Engine) initiateTopup(ctx context.Context, userPhone string, kes, sats int64) string {
	stkCtx, cancel := context.WithTimeout(ctx, stkTimeout)
	defer cancel()

	reference := fmt.Sprintf("BTC_TOPUP_%d", time.Now().Unix())
	col, err := e.gateway.InitiateCollection(stkCtx, userPhone, kes, reference)
	if err != nil {
		e.logger.Error("initiate collection", zap.String("phone", userPhone), zap.Error(err))
		return "END Failed to initiate M-Pesa payment. Please try again."
	}

	err = e.pending.Save(ctx, models.PendingPayment{
		InvoiceID:  col.InvoiceID,
		Phone:      userPhone,
		AmountKES:  kes,
		AmountSats: sats,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		e.logger.Error("save pending payment", zap.String("invoice_id", col.InvoiceID), zap.Error(err))
		return "END Payment service error. Please try again."
	}

	return fmt.Sprintf("END M-Pesa payment request sent to %s\nAmount: %d KES (%d sats)\nComplete payment on your phone to receive Bitcoin",
		userPhone, kes, sats)
}

// doWithdraw debits the wallet and initiates the mobile-money payout. The
// debit lands first; a payout failure is surfaced to operations for reversal
// rather than rolled back inline.
func (e *Engine) doWithdraw(ctx context.Context, userPhone, mpesaPhone string, kes, sats int64) string {
	reference := "BTC_WITHDRAW_" + uuid.NewString()
	newBalance, err := e.ledger.Debit(ctx, userPhone, sats, models.TxTypeWithdraw, "M-Pesa", reference)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return fmt.Sprintf("END Withdrawal failed: Insufficient balance. Need %d sats (%d KES)", sats, kes)
		}
		e.logger.Error("withdraw debit", zap.Error(err))
		return "END Withdrawal failed: Internal error during withdrawal"
	}

	if _, err := e.gateway.InitiatePayout(ctx, mpesaPhone, kes, reference); err != nil {
		e.logger.Error("initiate payout, debit stands pending reversal",
			zap.String("reference", reference),
			zap.String("phone", userPhone),
			zap.Error(err),
		)
	}

	e.publish(models.Transaction{
		FromPhone:  userPhone,
		ToPhone:    "M-Pesa",
		AmountSats: sats,
		Type:       models.TxTypeWithdraw,
		Reference:  reference,
		CreatedAt:  time.Now().UTC(),
	})
	return fmt.Sprintf("END Withdrew %d KES (%d sats) to %s\nNew balance: %d sats", kes, sats, mpesaPhone, newBalance)
}

// doAirtime debits the wallet and delivers airtime to the target number.
func (e *Engine) doAirtime(ctx context.Context, userPhone, airtimePhone string, kes int64) string {
	sats := rate.KESToSats(kes)
	carrier := phone.DetectCarrier(airtimePhone)

	newBalance, err := e.ledger.Debit(ctx, userPhone, sats, models.TxTypeAirtime, "Airtime-"+carrier, "")
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return fmt.Sprintf("END Airtime purchase failed: Insufficient balance. Need %d sats (%d KES), have %d sats",
				sats, kes, e.balance(ctx, userPhone))
		}
		e.logger.Error("airtime debit", zap.Error(err))
		return "END Airtime purchase failed: Internal error during airtime purchase"
	}

	if err := e.airtime.Purchase(ctx, airtimePhone, kes); err != nil {
		e.logger.Error("airtime delivery failed after debit",
			zap.String("phone", airtimePhone), zap.Error(err))
		return "END Airtime purchase failed. Please try again."
	}

	e.publish(models.Transaction{
		FromPhone:  userPhone,
		ToPhone:    "Airtime-" + carrier,
		AmountSats: sats,
		Type:       models.TxTypeAirtime,
		CreatedAt:  time.Now().UTC(),
	})

	if userPhone == airtimePhone {
		return fmt.Sprintf("END Airtime purchased successfully!\n%d KES airtime for %s\nNew balance: %d sats", kes, carrier, newBalance)
	}
	return fmt.Sprintf("END Airtime sent successfully!\n%d KES %s airtime to %s\nNew balance: %d sats", kes, carrier, airtimePhone, newBalance)
}

// renderHistory formats the newest transactions for terminal display.
func (e *Engine) renderHistory(ctx context.Context, userPhone string, limit int) string {
	if limit <= 0 {
		limit = 5
	}
	txs, err := e.ledger.History(ctx, userPhone, limit)
	if err != nil {
		e.logger.Error("load history", zap.String("phone", userPhone), zap.Error(err))
		return "END Error fetching transaction history."
	}
	if len(txs) == 0 {
		return "END No recent transactions found."
	}

	out := "END Recent Transactions:\n\n"
	for _, tx := range txs {
		date := tx.CreatedAt.Format("2006-01-02")
		switch tx.Type {
		case models.TxTypeLightning:
			if tx.FromPhone == userPhone {
				out += fmt.Sprintf("Sent %s sats (%s)\n", comma(tx.AmountSats), date)
			} else {
				out += fmt.Sprintf("Received %s sats (%s)\n", comma(tx.AmountSats), date)
			}
		case models.TxTypeTopUp:
			out += fmt.Sprintf("Top-up: %s sats (%s)\n", comma(tx.AmountSats), date)
		case models.TxTypeWithdraw:
			out += fmt.Sprintf("Withdraw: %s sats (%s)\n", comma(tx.AmountSats), date)
		case models.TxTypeAirtime:
			out += fmt.Sprintf("Airtime: %s sats (%s)\n", comma(tx.AmountSats), date)
		default:
			out += fmt.Sprintf("%s: %s sats (%s)\n", tx.Type, comma(tx.AmountSats), date)
		}
	}
	return out
}

func (e *Engine) publish(tx models.Transaction) {
	if e.events != nil {
		e.events.Publish(tx)
	}
}
