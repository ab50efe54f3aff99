package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"sambaza/internal/airtime"
	"sambaza/internal/phone"
	"sambaza/internal/rate"
	"sambaza/internal/session"
)

func (e *Engine) selectMenu(ctx context.Context, st *session.State, selection string) string {
	switch strings.ToLower(strings.TrimSpace(selection)) {
	case "rates", "rates?":
		return msgRates
	case "help":
		return msgCommandHelp
	}

	switch strings.TrimSpace(selection) {
	case "1":
		st.Menu = session.MenuSendPhone
		return promptSendPhone
	case "2":
		st.Menu = session.MenuReceiveAmount
		return promptReceiveAmount
	case "3":
		st.Menu = session.MenuInvoicePhone
		return promptInvoicePhone
	case "4":
		st.Menu = session.MenuTopupAmount
		return promptTopupAmount
	case "5":
		st.Menu = session.MenuWithdrawAmount
		return promptWithdrawAmount
	case "6":
		st.Menu = session.MenuAirtimeAmount
		return promptAirtimeAmount
	case "7":
		return e.renderHistory(ctx, st.Phone, 5)
	case "0":
		return MsgGoodbye
	default:
		return e.mainMenu(ctx, st)
	}
}

func (e *Engine) handleSendPhone(ctx context.Context, st *session.State, input string) string {
	if isBack(input) {
		st.ResetFlows()
		return e.mainMenu(ctx, st)
	}

	p := phone.Normalize(input)
	if !phone.Validate(p) {
		return "CON Invalid phone number format.\nEnter recipient phone number:"
	}

	st.Send = &session.SendData{Recipient: p}
	st.Menu = session.MenuSendAmount
	return fmt.Sprintf("CON Send BTC to %s\nEnter amount in sats:", p)
}

func (e *Engine) handleSendAmount(ctx context.Context, st *session.State, input string) string {
	if isBack(input) {
		st.Send = nil
		st.Menu = session.MenuSendPhone
		return promptSendPhone
	}
	if st.Send == nil {
		st.ResetFlows()
		return e.mainMenu(ctx, st)
	}

	amount, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil {
		return "CON Invalid amount. Enter amount in sats:"
	}
	if amount < minSendSats {
		return "CON Minimum send amount is 10 sats (≈0.015 KES)\nEnter amount in sats:"
	}
	if amount > maxSendSats {
		return "CON Maximum send amount is 1,000,000 sats (≈6,667 KES)\nEnter amount in sats:"
	}

	return e.doSend(ctx, st.Phone, st.Send.Recipient, amount)
}

func (e *Engine) handleReceiveAmount(ctx context.Context, st *session.State, input string) string {
	if isBack(input) {
		st.ResetFlows()
		return e.mainMenu(ctx, st)
	}

	amount, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil {
		return "CON Invalid amount. Enter amount in sats:"
	}
	if amount < 1 {
		return "CON Minimum amount is 1 sat\nEnter amount in sats:"
	}
	if amount > maxSendSats {
		return "CON Maximum amount is 1,000,000 sats\nEnter amount in sats:"
	}

	return e.createInvoice(ctx, st.Phone, amount, "")
}

func (e *Engine) handleInvoicePhone(ctx context.Context, st *session.State, input string) string {
	if isBack(input) {
		st.ResetFlows()
		return e.mainMenu(ctx, st)
	}

	p := phone.Normalize(input)
	if !phone.Validate(p) {
		return "CON Invalid phone number format.\nEnter recipient phone number:"
	}

	st.Invoice = &session.InvoiceData{Recipient: p}
	st.Menu = session.MenuInvoiceAmount
	return fmt.Sprintf("CON Send invoice to %s\nEnter amount in sats:", p)
}

func (e *Engine) handleInvoiceAmount(ctx context.Context, st *session.State, input string) string {
	if isBack(input) {
		st.Invoice = nil
		st.Menu = session.MenuInvoicePhone
		return promptInvoicePhone
	}
	if st.Invoice == nil {
		st.ResetFlows()
		return e.mainMenu(ctx, st)
	}

	amount, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil {
		return "CON Invalid amount. Enter amount in sats:"
	}
	if amount < 1 {
		return "CON Minimum amount is 1 sat\nEnter amount in sats:"
	}
	if amount > maxSendSats {
		return "CON Maximum amount is 1,000,000 sats\nEnter amount in sats:"
	}

	return e.sendInvoice(ctx, st.Phone, st.Invoice.Recipient, amount)
}

func (e *Engine) handleTopupAmount(ctx context.Context, st *session.State, input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	if lower == "back" {
		st.ResetFlows()
		return e.mainMenu(ctx, st)
	}
	if lower == "rates" || lower == "rates?" {
		return msgRates
	}

	cleaned := phone.Digits(input)
	if cleaned == "" {
		return "CON Invalid amount. Please enter a valid number.\n" +
			"Enter KES amount (Min: 10 KES):\n\n" +
			"(Ask 'rates?' or say 'back')"
	}

	kes, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return "CON Invalid amount. Please enter a valid number.\n" +
			"Enter KES amount (Min: 10 KES):\n\n" +
			"(Ask 'rates?' or say 'back')"
	}
	if kes < 10 {
		return "CON Minimum top-up is 10 KES.\n" +
			"Enter KES amount (Min: 10 KES):\n\n" +
			"(Ask 'rates?' or say 'back')"
	}

	sats := rate.KESToSats(kes)
	st.Topup = &session.TopupData{AmountKES: kes, Sats: sats}
	st.Menu = session.MenuTopupConfirm
	return topupConfirmPrompt(kes, sats)
}

func (e *Engine) handleTopupConfirm(ctx context.Context, st *session.State, input string) string {
	if st.Topup == nil {
		st.ResetFlows()
		return e.mainMenu(ctx, st)
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "yes", "y", "confirm":
		return e.initiateTopup(ctx, st.Phone, st.Topup.AmountKES, st.Topup.Sats)
	case "2", "no", "n", "cancel", "back":
		return "END M-Pesa top-up cancelled."
	default:
		return topupConfirmPrompt(st.Topup.AmountKES, st.Topup.Sats)
	}
}

func (e *Engine) handleWithdrawAmount(ctx context.Context, st *session.State, input string) string {
	if isBack(input) {
		st.ResetFlows()
		return e.mainMenu(ctx, st)
	}

	kes, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil {
		return "CON Invalid amount. Enter amount in KES:"
	}
	if kes < 100 {
		return "CON Minimum withdrawal is 100 KES.\nEnter amount in KES:"
	}

	sats := rate.KESToSats(kes)
	if bal := e.balance(ctx, st.Phone); bal < sats {
		return fmt.Sprintf("CON Insufficient balance.\nNeed %d sats, have %d sats.\nEnter amount in KES:", sats, bal)
	}

	st.Withdraw = &session.WithdrawData{AmountKES: kes, Sats: sats}
	st.Menu = session.MenuWithdrawPhone
	return fmt.Sprintf("CON Withdraw %d KES (%d sats)\nEnter M-Pesa phone number:", kes, sats)
}

func (e *Engine) handleWithdrawPhone(ctx context.Context, st *session.State, input string) string {
	if isBack(input) {
		st.Withdraw = nil
		st.Menu = session.MenuWithdrawAmount
		return promptWithdrawAmount
	}
	if st.Withdraw == nil {
		st.ResetFlows()
		return e.mainMenu(ctx, st)
	}

	p := phone.Normalize(input)
	if !phone.Validate(p) {
		return "CON Invalid phone number format.\nEnter M-Pesa phone number:"
	}

	return e.doWithdraw(ctx, st.Phone, p, st.Withdraw.AmountKES, st.Withdraw.Sats)
}

func (e *Engine) handleAirtimeAmount(ctx context.Context, st *session.State, input string) string {
	if isBack(input) {
		st.ResetFlows()
		return e.mainMenu(ctx, st)
	}

	kes, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil {
		return "CON Invalid amount. Enter amount in KES:"
	}
	if kes < airtime.MinKES {
		return "CON Minimum airtime purchase is 10 KES.\nEnter amount in KES:"
	}
	if kes > airtime.MaxKES {
		return "CON Maximum airtime purchase is 1,000 KES.\nEnter amount in KES:"
	}

	st.Airtime = &session.AirtimeData{AmountKES: kes}
	st.Menu = session.MenuAirtimePhone
	return fmt.Sprintf("CON Buy %d KES airtime\n\n1. For my number (%s)\n2. For another number", kes, st.Phone)
}

func (e *Engine) handleAirtimePhone(ctx context.Context, st *session.State, input string) string {
	if isBack(input) {
		st.Airtime = nil
		st.Menu = session.MenuAirtimeAmount
		return promptAirtimeAmount
	}
	if st.Airtime == nil {
		st.ResetFlows()
		return e.mainMenu(ctx, st)
	}

	switch strings.TrimSpace(input) {
	case "1":
		return e.doAirtime(ctx, st.Phone, st.Phone, st.Airtime.AmountKES)
	case "2":
		return "CON Enter phone number for airtime:"
	}

	p := phone.Normalize(input)
	if !phone.Validate(p) {
		return "CON Invalid phone number format.\nEnter phone number for airtime:"
	}
	return e.doAirtime(ctx, st.Phone, p, st.Airtime.AmountKES)
}

func isBack(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), "back")
}
