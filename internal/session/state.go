// Package session holds per-USSD-session conversational state and the stores
// that persist it for the lifetime of a session.
package session

// Menu identifies which prompt the session is waiting on.
type Menu string

// Menu states. A session starts at MenuMain; terminal responses delete the
// session rather than moving it to a state.
const (
	MenuMain           Menu = "main_menu"
	MenuSendPhone      Menu = "send_phone"
	MenuSendAmount     Menu = "send_amount"
	MenuReceiveAmount  Menu = "receive_amount"
	MenuInvoicePhone   Menu = "invoice_phone"
	MenuInvoiceAmount  Menu = "invoice_amount"
	MenuTopupAmount    Menu = "topup_amount"
	MenuTopupConfirm   Menu = "topup_confirm"
	MenuWithdrawAmount Menu = "withdraw_amount"
	MenuWithdrawPhone  Menu = "withdraw_phone"
	MenuAirtimeAmount  Menu = "airtime_amount"
	MenuAirtimePhone   Menu = "airtime_phone"
)

// Turn is one exchange fed to the intent parser as conversation history.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// AIContext is the overlay set when a natural-language action was only
// partially specified and the engine needs more turns to complete it. It is
// orthogonal to Menu: while present, input routes through the AI flows.
type AIContext struct {
	Operation string `json:"operation"` // intent kind, e.g. "topup_mpesa"
	Awaiting  string `json:"awaiting"`  // "amount", "confirmation", "phone_number", "phone_choice"
	AmountKES int64  `json:"amount_kes,omitempty"`
	Sats      int64  `json:"sats,omitempty"`
	Recipient string `json:"recipient,omitempty"`
}

// State is the full session record. Exactly one flow struct is non-nil at a
// time; each carries only the fields its flow accumulates, so stale data from
// an unrelated flow cannot leak across operations.
type State struct {
	Phone string `json:"phone"`
	Menu  Menu   `json:"menu"`

	Send     *SendData     `json:"send,omitempty"`
	Invoice  *InvoiceData  `json:"invoice,omitempty"`
	Topup    *TopupData    `json:"topup,omitempty"`
	Withdraw *WithdrawData `json:"withdraw,omitempty"`
	Airtime  *AirtimeData  `json:"airtime,omitempty"`

	AI    *AIContext `json:"ai,omitempty"`
	Turns []Turn     `json:"turns,omitempty"`
}

// SendData accumulates the send-BTC flow.
type SendData struct {
	Recipient string `json:"recipient"`
}

// InvoiceData accumulates the send-invoice flow.
type InvoiceData struct {
	Recipient string `json:"recipient"`
}

// TopupData accumulates the M-Pesa top-up flow.
type TopupData struct {
	AmountKES int64 `json:"amount_kes"`
	Sats      int64 `json:"sats"`
}

// WithdrawData accumulates the withdraw flow.
type WithdrawData struct {
	AmountKES int64 `json:"amount_kes"`
	Sats      int64 `json:"sats"`
}

// AirtimeData accumulates the airtime flow.
type AirtimeData struct {
	AmountKES int64 `json:"amount_kes"`
}

// NewState returns a fresh session at the main menu.
func NewState(phone string) *State {
	return &State{Phone: phone, Menu: MenuMain}
}

// ResetFlows clears all flow data and returns the session to the main menu.
// The AI overlay and conversation history survive; they have their own
// lifecycle.
func (s *State) ResetFlows() {
	s.Menu = MenuMain
	s.Send = nil
	s.Invoice = nil
	s.Topup = nil
	s.Withdraw = nil
	s.Airtime = nil
}

// maxTurns bounds conversation history to keep intent-parser payloads small.
const maxTurns = 10

// AddTurn appends to the bounded conversation history.
func (s *State) AddTurn(role, content string) {
	s.Turns = append(s.Turns, Turn{Role: role, Content: content})
	if len(s.Turns) > maxTurns {
		s.Turns = s.Turns[len(s.Turns)-maxTurns:]
	}
}
