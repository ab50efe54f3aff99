// Package intent turns free-text USSD input into structured wallet actions.
// The parser itself is an external capability (OpenAI function calling); this
// package defines the contract, the closed informational-intent classifier,
// and the static name alias table.
package intent

import (
	"context"

	"sambaza/internal/session"
)

// Action kinds the parser can produce.
const (
	KindSendBitcoin     = "send_bitcoin"
	KindCheckBalance    = "check_balance"
	KindTopupMpesa      = "topup_mpesa"
	KindWithdrawMpesa   = "withdraw_mpesa"
	KindGenerateInvoice = "generate_invoice"
	KindShowMenu        = "show_menu"
	KindHistory         = "transaction_history"
	KindHelp            = "help"
	KindBuyAirtime      = "buy_airtime"
)

// Action is a discriminated operation request. Zero-valued fields mean the
// user did not specify them; the engine collects the rest interactively.
type Action struct {
	Kind      string
	Recipient string  // phone number or alias, send/airtime flows
	Amount    float64 // as spoken by the user
	Currency  string  // "sats" or "kes"; empty defaults per operation
	Memo      string
	Limit     int // history flows
}

// Result is the parser outcome: either a structured Action or a free-text
// Reply for conversational answers.
type Result struct {
	Action *Action
	Reply  string
}

// Input carries everything the parser needs for one turn.
type Input struct {
	Text        string
	Phone       string
	BalanceSats int64
	History     []session.Turn
	Context     *session.AIContext
}

// Parser converts natural language into an Action or a general reply.
type Parser interface {
	Parse(ctx context.Context, in Input) (Result, error)
}
