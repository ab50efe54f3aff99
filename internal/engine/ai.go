package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"sambaza/internal/intent"
	"sambaza/internal/phone"
	"sambaza/internal/rate"
	"sambaza/internal/session"
)

const aiHelpText = "END Lightning Wallet Help:\n\n" +
	"You can say things like:\n" +
	"• 'Check my balance'\n" +
	"• 'Send 5000 to Bob'\n" +
	"• 'Top up 500 KES'\n" +
	"• 'Buy airtime 100 KES'\n" +
	"• 'Generate invoice 3000'\n" +
	"• 'Show history'\n" +
	"• Or use menu options 1-7"

// handleNatural runs free text through the intent parser and executes the
// resulting action.
func (e *Engine) handleNatural(ctx context.Context, sessionID string, st *session.State, text string) string {
	in := intent.Input{
		Text:        text,
		Phone:       st.Phone,
		BalanceSats: e.balance(ctx, st.Phone),
		History:     st.Turns,
		Context:     st.AI,
	}
	st.AddTurn("user", text)

	res, err := e.parser.Parse(ctx, in)
	if err != nil {
		e.logger.Error("parse natural language",
			zap.String("session_id", sessionID), zap.Error(err))
		return "END Sorry, I couldn't understand that. Please try again or use the menu."
	}

	if res.Action == nil {
		st.AddTurn("assistant", res.Reply)
		if replyWantsMore(res.Reply) {
			return "CON " + res.Reply
		}
		return "END " + res.Reply
	}

	st.AddTurn("assistant", "function: "+res.Action.Kind)
	return e.dispatchAction(ctx, st, res.Action)
}

func (e *Engine) dispatchAction(ctx context.Context, st *session.State, act *intent.Action) string {
	switch act.Kind {
	case intent.KindSendBitcoin:
		return e.aiSend(ctx, st, act)
	case intent.KindCheckBalance:
		bal := e.balance(ctx, st.Phone)
		return fmt.Sprintf("END Your balance is %s sats (≈%.2f KES)", comma(bal), float64(bal)*150/1000)
	case intent.KindTopupMpesa:
		return e.aiTopup(st, int64(act.Amount))
	case intent.KindWithdrawMpesa:
		return e.aiWithdraw(ctx, st, act)
	case intent.KindGenerateInvoice:
		if act.Amount <= 0 {
			st.Menu = session.MenuReceiveAmount
			return promptReceiveAmount
		}
		return e.createInvoice(ctx, st.Phone, int64(act.Amount), act.Memo)
	case intent.KindShowMenu:
		return fmt.Sprintf("CON Lightning Wallet\nBalance: %s sats\n\n%s", comma(e.balance(ctx, st.Phone)), menuText)
	case intent.KindHistory:
		return e.renderHistory(ctx, st.Phone, act.Limit)
	case intent.KindHelp:
		return aiHelpText
	case intent.KindBuyAirtime:
		return e.aiAirtime(ctx, st, act)
	default:
		return "END I didn't understand that. Reply with 'menu' to see options."
	}
}

func (e *Engine) aiSend(ctx context.Context, st *session.State, act *intent.Action) string {
	if act.Recipient == "" {
		st.Menu = session.MenuSendPhone
		return promptSendPhone
	}

	recipient := phone.Normalize(intent.ResolveAlias(act.Recipient))
	if !phone.Validate(recipient) {
		st.AI = &session.AIContext{Operation: intent.KindSendBitcoin, Awaiting: "recipient", Sats: satsFrom(act)}
		return "CON Invalid phone number format.\nEnter recipient phone number:"
	}

	sats := satsFrom(act)
	if sats <= 0 {
		st.AI = &session.AIContext{Operation: intent.KindSendBitcoin, Awaiting: "amount", Recipient: recipient}
		return fmt.Sprintf("CON Send BTC to %s\nEnter amount in sats:", recipient)
	}
	return e.finishAISend(ctx, st, recipient, sats)
}

// finishAISend validates bounds and balance, then executes the transfer.
// Validation failures keep an amount-collection context alive.
func (e *Engine) finishAISend(ctx context.Context, st *session.State, recipient string, sats int64) string {
	retry := &session.AIContext{Operation: intent.KindSendBitcoin, Awaiting: "amount", Recipient: recipient}
	if sats < minSendSats {
		st.AI = retry
		return "CON Minimum send amount is 10 sats (≈0.015 KES)\nEnter amount in sats:"
	}
	if sats > maxSendSats {
		st.AI = retry
		return "CON Maximum send amount is 1,000,000 sats (≈6,667 KES)\nEnter amount in sats:"
	}
	if bal := e.balance(ctx, st.Phone); bal < sats {
		st.AI = retry
		return fmt.Sprintf("CON Insufficient balance. You have %s sats, need %s sats.\nEnter amount in sats:", comma(bal), comma(sats))
	}

	st.AI = nil
	return e.doSend(ctx, st.Phone, recipient, sats)
}

func (e *Engine) aiTopup(st *session.State, kes int64) string {
	if kes <= 0 {
		st.AI = &session.AIContext{Operation: intent.KindTopupMpesa, Awaiting: "amount"}
		return "CON Top Up via M-Pesa\nEnter amount in KES:"
	}
	if kes < 10 {
		st.AI = &session.AIContext{Operation: intent.KindTopupMpesa, Awaiting: "amount"}
		return "CON Minimum Lightning purchase is 10 KES (66 sats).\nEnter amount in KES:"
	}

	sats := rate.KESToSats(kes)
	st.AI = &session.AIContext{Operation: intent.KindTopupMpesa, Awaiting: "confirmation", AmountKES: kes, Sats: sats}
	return topupConfirmPrompt(kes, sats)
}

func (e *Engine) aiWithdraw(ctx context.Context, st *session.State, act *intent.Action) string {
	if act.Amount <= 0 {
		st.AI = &session.AIContext{Operation: intent.KindWithdrawMpesa, Awaiting: "amount"}
		return promptWithdrawAmount
	}

	var kes, sats int64
	if strings.EqualFold(act.Currency, "sats") || strings.EqualFold(act.Currency, "satoshis") {
		sats = int64(act.Amount)
		kes = rate.SatsToKES(sats)
	} else {
		kes = int64(act.Amount)
		sats = rate.KESToSats(kes)
	}
	return e.stageAIWithdraw(ctx, st, kes, sats)
}

func (e *Engine) stageAIWithdraw(ctx context.Context, st *session.State, kes, sats int64) string {
	retry := &session.AIContext{Operation: intent.KindWithdrawMpesa, Awaiting: "amount"}
	if kes < 100 {
		st.AI = retry
		return "CON Minimum withdrawal is 100 KES.\nEnter amount in KES:"
	}
	if bal := e.balance(ctx, st.Phone); bal < sats {
		st.AI = retry
		return fmt.Sprintf("CON Insufficient balance. You have %s sats, need %s sats.\nEnter amount in KES:", comma(bal), comma(sats))
	}

	st.AI = &session.AIContext{Operation: intent.KindWithdrawMpesa, Awaiting: "phone_number", AmountKES: kes, Sats: sats}
	return fmt.Sprintf("CON Withdraw %d KES (%s sats)\nEnter M-Pesa phone number:", kes, comma(sats))
}

func (e *Engine) aiAirtime(ctx context.Context, st *session.State, act *intent.Action) string {
	if act.Amount <= 0 {
		st.AI = &session.AIContext{Operation: intent.KindBuyAirtime, Awaiting: "amount"}
		return promptAirtimeAmount
	}
	return e.stageAIAirtime(ctx, st, int64(act.Amount), act.Recipient)
}

func (e *Engine) stageAIAirtime(ctx context.Context, st *session.State, kes int64, target string) string {
	retry := &session.AIContext{Operation: intent.KindBuyAirtime, Awaiting: "amount"}
	if kes < 10 {
		st.AI = retry
		return "CON Minimum airtime purchase is 10 KES.\nEnter amount in KES:"
	}
	if kes > 1000 {
		st.AI = retry
		return "CON Maximum airtime purchase is 1,000 KES.\nEnter amount in KES:"
	}

	if target != "" {
		p := phone.Normalize(intent.ResolveAlias(target))
		if p != st.Phone {
			if !phone.Validate(p) {
				st.AI = &session.AIContext{Operation: intent.KindBuyAirtime, Awaiting: "phone_number", AmountKES: kes}
				return "CON Invalid phone number.\nEnter phone number for airtime:"
			}
			st.AI = nil
			return e.doAirtime(ctx, st.Phone, p, kes)
		}
	}

	st.AI = &session.AIContext{Operation: intent.KindBuyAirtime, Awaiting: "phone_choice", AmountKES: kes}
	return fmt.Sprintf("CON Buy %d KES airtime\n\n1. For my number (%s)\n2. For another number", kes, st.Phone)
}

// handleAIContext resolves follow-up input while an AI overlay is active.
// Informational questions answer in place and keep the operation alive.
func (e *Engine) handleAIContext(ctx context.Context, sessionID string, st *session.State, input string) string {
	ai := st.AI

	if isBack(input) {
		return e.resumePrompt(ai)
	}
	switch intent.ClassifyInfo(input) {
	case intent.InfoContinue:
		return e.resumePrompt(ai)
	case intent.InfoRate:
		return e.ratePromptWithContext(ai)
	case intent.InfoHelp:
		return e.helpPromptWithContext(ai)
	}

	switch ai.Operation {
	case intent.KindTopupMpesa:
		return e.contextTopup(ctx, st, input)
	case intent.KindWithdrawMpesa:
		return e.contextWithdraw(ctx, st, input)
	case intent.KindSendBitcoin:
		return e.contextSend(ctx, st, input)
	case intent.KindBuyAirtime:
		return e.contextAirtime(ctx, st, input)
	default:
		st.AI = nil
		return "END I didn't understand your response. Please try again or say 'menu' for options."
	}
}

func (e *Engine) contextTopup(ctx context.Context, st *session.State, input string) string {
	ai := st.AI
	switch ai.Awaiting {
	case "amount":
		kes, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
		if err != nil {
			return "CON Invalid amount. Enter amount in KES:"
		}
		if kes < 10 {
			return "CON Minimum Lightning Network purchase is 10 KES (66 sats).\nEnter amount in KES:"
		}
		sats := rate.KESToSats(kes)
		st.AI = &session.AIContext{Operation: intent.KindTopupMpesa, Awaiting: "confirmation", AmountKES: kes, Sats: sats}
		return topupConfirmPrompt(kes, sats)

	case "confirmation":
		switch strings.ToLower(strings.TrimSpace(input)) {
		case "1", "yes", "y", "confirm":
			st.AI = nil
			return e.initiateTopup(ctx, st.Phone, ai.AmountKES, ai.Sats)
		case "2", "no", "n", "cancel":
			st.AI = nil
			return "END M-Pesa top-up cancelled."
		default:
			return topupConfirmPrompt(ai.AmountKES, ai.Sats)
		}
	}
	st.AI = nil
	return "END I didn't understand your response. Please try again or say 'menu' for options."
}

func (e *Engine) contextWithdraw(ctx context.Context, st *session.State, input string) string {
	ai := st.AI
	switch ai.Awaiting {
	case "amount":
		kes, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
		if err != nil {
			return "CON Invalid amount. Enter amount in KES:"
		}
		return e.stageAIWithdraw(ctx, st, kes, rate.KESToSats(kes))

	case "phone_number":
		p := phone.Normalize(input)
		if !phone.Validate(p) {
			return "CON Invalid phone number format.\nEnter M-Pesa phone number:"
		}
		st.AI = nil
		return e.doWithdraw(ctx, st.Phone, p, ai.AmountKES, ai.Sats)
	}
	st.AI = nil
	return "END I didn't understand your response. Please try again or say 'menu' for options."
}

func (e *Engine) contextSend(ctx context.Context, st *session.State, input string) string {
	ai := st.AI
	switch ai.Awaiting {
	case "recipient":
		p := phone.Normalize(intent.ResolveAlias(input))
		if !phone.Validate(p) {
			return "CON Invalid phone number format.\nEnter recipient phone number:"
		}
		if ai.Sats > 0 {
			return e.finishAISend(ctx, st, p, ai.Sats)
		}
		st.AI = &session.AIContext{Operation: intent.KindSendBitcoin, Awaiting: "amount", Recipient: p}
		return fmt.Sprintf("CON Send BTC to %s\nEnter amount in sats:", p)

	case "amount":
		sats, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
		if err != nil {
			return "CON Invalid amount. Enter amount in sats:"
		}
		return e.finishAISend(ctx, st, ai.Recipient, sats)
	}
	st.AI = nil
	return "END I didn't understand your response. Please try again or say 'menu' for options."
}

func (e *Engine) contextAirtime(ctx context.Context, st *session.State, input string) string {
	ai := st.AI
	switch ai.Awaiting {
	case "amount":
		kes, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
		if err != nil {
			return "CON Invalid amount. Enter amount in KES:"
		}
		return e.stageAIAirtime(ctx, st, kes, "")

	case "phone_choice":
		switch strings.TrimSpace(input) {
		case "1":
			st.AI = nil
			return e.doAirtime(ctx, st.Phone, st.Phone, ai.AmountKES)
		case "2":
			st.AI = &session.AIContext{Operation: intent.KindBuyAirtime, Awaiting: "phone_number", AmountKES: ai.AmountKES}
			return "CON Enter phone number for airtime:"
		default:
			return fmt.Sprintf("CON Buy %d KES airtime\n\n1. For my number (%s)\n2. For another number", ai.AmountKES, st.Phone)
		}

	case "phone_number":
		p := phone.Normalize(input)
		if !phone.Validate(p) {
			return "CON Invalid phone number format.\nEnter phone number for airtime:"
		}
		st.AI = nil
		return e.doAirtime(ctx, st.Phone, p, ai.AmountKES)
	}
	st.AI = nil
	return "END I didn't understand your response. Please try again or say 'menu' for options."
}

func (e *Engine) resumePrompt(ai *session.AIContext) string {
	switch {
	case ai.Operation == intent.KindTopupMpesa && ai.Awaiting == "amount":
		return "CON Lightning Network Purchase\n\nBuy Bitcoin via M-Pesa\nEnter amount in KES:"
	case ai.Operation == intent.KindTopupMpesa && ai.Awaiting == "confirmation":
		return topupConfirmPrompt(ai.AmountKES, ai.Sats)
	case ai.Operation == intent.KindWithdrawMpesa && ai.Awaiting == "amount":
		return "CON M-Pesa Withdrawal\n\nEnter amount in KES:"
	case ai.Operation == intent.KindWithdrawMpesa && ai.Awaiting == "phone_number":
		return fmt.Sprintf("CON Withdraw %d KES (%s sats)\nEnter M-Pesa phone number:", ai.AmountKES, comma(ai.Sats))
	case ai.Operation == intent.KindSendBitcoin && ai.Awaiting == "amount":
		return "CON Send Bitcoin\n\nEnter amount in sats:"
	case ai.Operation == intent.KindSendBitcoin && ai.Awaiting == "recipient":
		return "CON Send Bitcoin\n\nEnter recipient phone number:"
	default:
		return "CON No pending operation to continue.\n\n0. Main menu"
	}
}

func (e *Engine) ratePromptWithContext(ai *session.AIContext) string {
	out := "CON Current Exchange Rate:\n150 KES = 1,000 sats\n\n"
	switch {
	case ai.Operation == intent.KindTopupMpesa && ai.Awaiting == "amount":
		out += "You were entering Lightning purchase amount.\nEnter amount in KES:"
	case ai.Operation == intent.KindWithdrawMpesa && ai.Awaiting == "amount":
		out += "You were entering withdrawal amount.\nEnter amount in KES:"
	case ai.Operation == intent.KindSendBitcoin && ai.Awaiting == "amount":
		out += "You were entering Bitcoin amount.\nEnter amount in sats:"
	case ai.Operation == intent.KindSendBitcoin && ai.Awaiting == "recipient":
		out += "You were entering recipient phone.\nEnter phone number:"
	case ai.Operation == intent.KindTopupMpesa && ai.Awaiting == "confirmation":
		out += topupConfirmPrompt(ai.AmountKES, ai.Sats)[len("CON "):]
	default:
		out += "Press 0 for main menu."
	}
	return out
}

func (e *Engine) helpPromptWithContext(ai *session.AIContext) string {
	out := "CON Lightning Network Help:\n" +
		"• 150 KES = 1,000 sats\n" +
		"• Min Lightning purchase: 10 KES (66 sats)\n" +
		"• Min withdrawal: 100 KES\n\n"
	if ai.Operation != "" && ai.Awaiting != "" {
		out += fmt.Sprintf("Currently: %s - %s\n\n", strings.ReplaceAll(ai.Operation, "_", " "), ai.Awaiting)
		switch ai.Awaiting {
		case "amount":
			out += "Enter numeric amount:"
		case "recipient", "phone_number":
			out += "Enter phone number:"
		default:
			out += "Type 'continue' to resume:"
		}
	} else {
		out += "0. Main menu"
	}
	return out
}

func satsFrom(act *intent.Action) int64 {
	if strings.EqualFold(act.Currency, "kes") || strings.EqualFold(act.Currency, "shillings") {
		return rate.KESToSats(int64(act.Amount))
	}
	return int64(act.Amount)
}

// replyWantsMore decides whether a conversational reply is a follow-up
// question (CON) or a final answer (END).
func replyWantsMore(reply string) bool {
	lower := strings.ToLower(reply)
	for _, w := range []string{"amount", "specify", "provide", "enter", "how much", "?"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
