package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sambaza/internal/airtime"
	"sambaza/internal/intent"
	"sambaza/internal/ledger"
	"sambaza/internal/lightning"
	"sambaza/internal/models"
	"sambaza/internal/momo"
	"sambaza/internal/reconciler"
	"sambaza/internal/session"
)

const (
	userPhone = "+254712345678"
	bobPhone  = "+254787654321"
)

// scriptedParser returns canned results and records whether it was consulted.
type scriptedParser struct {
	results []intent.Result
	err     error
	calls   int
	last    intent.Input
}

func (p *scriptedParser) Parse(_ context.Context, in intent.Input) (intent.Result, error) {
	p.calls++
	p.last = in
	if p.err != nil {
		return intent.Result{}, p.err
	}
	res := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return res, nil
}

type fixture struct {
	eng     *Engine
	ledger  *ledger.Memory
	store   *session.MemoryStore
	gateway *momo.MockGateway
	pending *reconciler.MemoryPendingStore
	rec     *reconciler.Reconciler
}

func newFixture(parser intent.Parser) *fixture {
	logger := zap.NewNop()
	led := ledger.NewMemory()
	store := session.NewMemoryStore()
	gateway := momo.NewMockGateway(logger)
	pending := reconciler.NewMemoryPendingStore()

	eng := New(Config{
		Sessions: store,
		Ledger:   led,
		Node:     lightning.NewMockProvider(logger),
		Gateway:  gateway,
		Airtime:  airtime.NewSimulatedPurchaser(logger),
		Pending:  pending,
		Parser:   parser,
		Logger:   logger,
	})
	return &fixture{
		eng:     eng,
		ledger:  led,
		store:   store,
		gateway: gateway,
		pending: pending,
		rec:     reconciler.New(pending, led, gateway, logger),
	}
}

func (f *fixture) handle(text string) string {
	return f.eng.Handle(context.Background(), Request{
		SessionID:   "session-1",
		ServiceCode: "*483*8#",
		Phone:       userPhone,
		Text:        text,
	})
}

func (f *fixture) fund(t *testing.T, phone string, sats int64) {
	t.Helper()
	_, err := f.ledger.Credit(context.Background(), phone, sats, models.TxTypeTopUp, "mpesa", "")
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, phone string) int64 {
	t.Helper()
	bal, err := f.ledger.GetBalance(context.Background(), phone)
	require.NoError(t, err)
	return bal
}

func TestMainMenuShowsBalance(t *testing.T) {
	f := newFixture(nil)
	f.fund(t, userPhone, 1234)

	reply := f.handle("")
	assert.True(t, strings.HasPrefix(reply, "CON Welcome to Bitcoin Lightning!"), reply)
	assert.Contains(t, reply, "₿ Balance: 1,234 sats")
	assert.Contains(t, reply, "7. History")
	assert.Contains(t, reply, "0. Exit")
}

func TestSendFlowStepByStep(t *testing.T) {
	f := newFixture(nil)
	f.fund(t, userPhone, 1000)

	assert.Equal(t, promptSendPhone, f.handle("1"))
	assert.Equal(t, "CON Send BTC to +254787654321\nEnter amount in sats:", f.handle("1*0787654321"))
	assert.Equal(t, "END Sent 500 sats to +254787654321. New balance: 500 sats", f.handle("1*0787654321*500"))

	assert.Equal(t, int64(500), f.balance(t, userPhone))
	assert.Equal(t, int64(500), f.balance(t, bobPhone))

	// Terminal replies end the session.
	_, err := f.store.Get(context.Background(), "session-1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSendCombinedInputMatchesStepByStep(t *testing.T) {
	f := newFixture(nil)
	f.fund(t, userPhone, 1000)

	// A single callback carrying the whole path replays the flow from scratch.
	reply := f.handle("1*0787654321*500")
	assert.Equal(t, "END Sent 500 sats to +254787654321. New balance: 500 sats", reply)
	assert.Equal(t, int64(500), f.balance(t, bobPhone))
}

func TestSendAmountValidation(t *testing.T) {
	f := newFixture(nil)
	f.fund(t, userPhone, 1000)

	f.handle("1")
	f.handle("1*0787654321")
	assert.Equal(t, "CON Invalid amount. Enter amount in sats:", f.handle("1*0787654321*abc"))
	assert.Equal(t, "CON Minimum send amount is 10 sats (≈0.015 KES)\nEnter amount in sats:", f.handle("1*0787654321*abc*5"))
	assert.Contains(t, f.handle("1*0787654321*abc*5*2000000"), "Maximum send amount is 1,000,000 sats")

	reply := f.handle("1*0787654321*abc*5*2000000*500")
	assert.Equal(t, "END Sent 500 sats to +254787654321. New balance: 500 sats", reply)
}

func TestSendInvalidPhoneReprompts(t *testing.T) {
	f := newFixture(nil)
	f.handle("1")
	assert.Equal(t, "CON Invalid phone number format.\nEnter recipient phone number:", f.handle("1*12345"))
}

// countingNode records node traffic so tests can assert nothing left the
// wallet on a rejected send.
type countingNode struct {
	inner    *lightning.MockProvider
	invoices int
	payments int
}

func (n *countingNode) CreateInvoice(ctx context.Context, payee string, amountSats int64, memo string) (lightning.Invoice, error) {
	n.invoices++
	return n.inner.CreateInvoice(ctx, payee, amountSats, memo)
}

func (n *countingNode) PayInvoice(ctx context.Context, payer, paymentRequest string) error {
	n.payments++
	return n.inner.PayInvoice(ctx, payer, paymentRequest)
}

func TestSendInsufficientBalanceNeverTouchesNode(t *testing.T) {
	logger := zap.NewNop()
	node := &countingNode{inner: lightning.NewMockProvider(logger)}
	led := ledger.NewMemory()
	eng := New(Config{
		Sessions: session.NewMemoryStore(),
		Ledger:   led,
		Node:     node,
		Gateway:  momo.NewMockGateway(logger),
		Airtime:  airtime.NewSimulatedPurchaser(logger),
		Pending:  reconciler.NewMemoryPendingStore(),
		Logger:   logger,
	})
	_, err := led.Credit(context.Background(), userPhone, 100, models.TxTypeTopUp, "mpesa", "")
	require.NoError(t, err)

	reply := eng.Handle(context.Background(), Request{SessionID: "s", Phone: userPhone, Text: "1*0787654321*500"})
	assert.Equal(t, "END Payment failed: Insufficient balance. Current: 100 sats", reply)

	// An uncovered send must be refused before any invoice exists, let alone
	// is paid.
	assert.Equal(t, 0, node.invoices)
	assert.Equal(t, 0, node.payments)

	bal, _ := led.GetBalance(context.Background(), userPhone)
	assert.Equal(t, int64(100), bal)
}

func TestSendInsufficientBalance(t *testing.T) {
	f := newFixture(nil)
	f.fund(t, userPhone, 100)

	reply := f.handle("1*0787654321*500")
	assert.Equal(t, "END Payment failed: Insufficient balance. Current: 100 sats", reply)
	assert.Equal(t, int64(100), f.balance(t, userPhone))
	assert.Equal(t, int64(0), f.balance(t, bobPhone))
}

func TestReceiveGeneratesInvoice(t *testing.T) {
	f := newFixture(nil)

	assert.Equal(t, promptReceiveAmount, f.handle("2"))
	reply := f.handle("2*1000")
	assert.True(t, strings.HasPrefix(reply, "END Invoice created: "), reply)
	assert.Contains(t, reply, "Amount: 1000 sats")
}

func TestSendInvoiceFlow(t *testing.T) {
	f := newFixture(nil)

	assert.Equal(t, promptInvoicePhone, f.handle("3"))
	assert.Equal(t, "CON Send invoice to +254787654321\nEnter amount in sats:", f.handle("3*0787654321"))
	assert.Equal(t, "END Invoice sent to +254787654321\nAmount: 500 sats", f.handle("3*0787654321*500"))
}

func TestTopupConfirmThenReconcile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil)

	assert.Equal(t, promptTopupAmount, f.handle("4"))
	assert.Equal(t, "CON Top up 50 KES (333 sats)?\n\n1. Yes, send M-Pesa request\n2. Cancel", f.handle("4*50"))

	reply := f.handle("4*50*1")
	assert.True(t, strings.HasPrefix(reply, "END M-Pesa payment request sent to +254712345678"), reply)
	assert.Contains(t, reply, "Amount: 50 KES (333 sats)")

	// Nothing is credited at initiation.
	assert.Equal(t, int64(0), f.balance(t, userPhone))
	pending, err := f.pending.List(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(333), pending[0].AmountSats)

	// Customer completes the STK push; reconciliation credits exactly once.
	f.gateway.Complete(pending[0].InvoiceID)
	res, err := f.rec.Reconcile(ctx, pending[0].InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, reconciler.OutcomeCredited, res.Outcome)
	assert.Equal(t, int64(333), f.balance(t, userPhone))
}

func TestTopupCancel(t *testing.T) {
	f := newFixture(nil)

	f.handle("4")
	f.handle("4*50")
	assert.Equal(t, "END M-Pesa top-up cancelled.", f.handle("4*50*2"))

	pending, err := f.pending.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestTopupMinimumAndRates(t *testing.T) {
	f := newFixture(nil)

	f.handle("4")
	assert.Contains(t, f.handle("4*5"), "Minimum top-up is 10 KES.")
	assert.Equal(t, msgRates, f.handle("4*5*rates?"))
}

func TestWithdrawFlow(t *testing.T) {
	f := newFixture(nil)
	f.fund(t, userPhone, 1000)

	assert.Equal(t, promptWithdrawAmount, f.handle("5"))
	assert.Equal(t, "CON Withdraw 150 KES (1000 sats)\nEnter M-Pesa phone number:", f.handle("5*150"))
	assert.Equal(t, "END Withdrew 150 KES (1000 sats) to +254787654321\nNew balance: 0 sats", f.handle("5*150*0787654321"))
	assert.Equal(t, int64(0), f.balance(t, userPhone))

	txs, err := f.ledger.History(context.Background(), userPhone, 5)
	require.NoError(t, err)
	require.NotEmpty(t, txs)
	assert.Equal(t, models.TxTypeWithdraw, txs[0].Type)
	assert.True(t, strings.HasPrefix(txs[0].Reference, "BTC_WITHDRAW_"), txs[0].Reference)
}

func TestWithdrawValidation(t *testing.T) {
	f := newFixture(nil)
	f.fund(t, userPhone, 100)

	f.handle("5")
	assert.Equal(t, "CON Minimum withdrawal is 100 KES.\nEnter amount in KES:", f.handle("5*50"))
	assert.Equal(t, "CON Insufficient balance.\nNeed 1000 sats, have 100 sats.\nEnter amount in KES:", f.handle("5*50*150"))
}

func TestAirtimeForOwnNumber(t *testing.T) {
	f := newFixture(nil)
	f.fund(t, userPhone, 1000)

	assert.Equal(t, promptAirtimeAmount, f.handle("6"))
	assert.Equal(t, "CON Buy 100 KES airtime\n\n1. For my number (+254712345678)\n2. For another number", f.handle("6*100"))
	assert.Equal(t, "END Airtime purchased successfully!\n100 KES airtime for Safaricom\nNew balance: 334 sats", f.handle("6*100*1"))
	assert.Equal(t, int64(334), f.balance(t, userPhone))
}

func TestAirtimeForAnotherNumber(t *testing.T) {
	f := newFixture(nil)
	f.fund(t, userPhone, 1000)

	f.handle("6")
	f.handle("6*100")
	assert.Equal(t, "CON Enter phone number for airtime:", f.handle("6*100*2"))
	assert.Equal(t, "END Airtime sent successfully!\n100 KES Airtel airtime to +254734567890\nNew balance: 334 sats",
		f.handle("6*100*2*0734567890"))
}

func TestAirtimeAmountBounds(t *testing.T) {
	f := newFixture(nil)

	f.handle("6")
	assert.Equal(t, "CON Minimum airtime purchase is 10 KES.\nEnter amount in KES:", f.handle("6*5"))
	assert.Equal(t, "CON Maximum airtime purchase is 1,000 KES.\nEnter amount in KES:", f.handle("6*5*2000"))
}

func TestHistoryRendering(t *testing.T) {
	f := newFixture(nil)
	f.fund(t, userPhone, 1000)
	f.fund(t, bobPhone, 1000)
	_, err := f.ledger.Transfer(context.Background(), bobPhone, userPhone, 200)
	require.NoError(t, err)

	reply := f.handle("7")
	assert.True(t, strings.HasPrefix(reply, "END Recent Transactions:"), reply)
	assert.Contains(t, reply, "Received 200 sats")
	assert.Contains(t, reply, "Top-up: 1,000 sats")
}

func TestHistoryEmpty(t *testing.T) {
	f := newFixture(nil)
	assert.Equal(t, "END No recent transactions found.", f.handle("7"))
}

func TestExit(t *testing.T) {
	f := newFixture(nil)
	assert.Equal(t, MsgGoodbye, f.handle("0"))
}

func TestRatesAndHelpKeywords(t *testing.T) {
	f := newFixture(nil)
	assert.Equal(t, msgRates, f.handle("rates?"))

	f2 := newFixture(nil)
	assert.Equal(t, msgCommandHelp, f2.handle("help"))
}

func TestBackNavigation(t *testing.T) {
	f := newFixture(nil)
	f.fund(t, userPhone, 500)

	f.handle("1")
	f.handle("1*0787654321")
	// Back from the amount step returns to the phone prompt.
	assert.Equal(t, promptSendPhone, f.handle("1*0787654321*back"))
	// Back from the phone prompt returns to the main menu.
	reply := f.handle("1*0787654321*back*back")
	assert.True(t, strings.HasPrefix(reply, "CON Welcome to Bitcoin Lightning!"), reply)
}

func TestUnknownSelectionShowsMenu(t *testing.T) {
	f := newFixture(nil)
	reply := f.handle("9")
	assert.True(t, strings.HasPrefix(reply, "CON Welcome to Bitcoin Lightning!"), reply)
}

// panicLedger blows up on first use so Handle's recovery path can be observed.
type panicLedger struct{}

func (panicLedger) GetBalance(context.Context, string) (int64, error) { panic("boom") }
func (panicLedger) Transfer(context.Context, string, string, int64) (int64, error) {
	panic("boom")
}
func (panicLedger) Credit(context.Context, string, int64, string, string, string) (int64, error) {
	panic("boom")
}
func (panicLedger) Debit(context.Context, string, int64, string, string, string) (int64, error) {
	panic("boom")
}
func (panicLedger) History(context.Context, string, int) ([]models.Transaction, error) {
	panic("boom")
}
func (panicLedger) FindByReference(context.Context, string) (*models.Transaction, error) {
	panic("boom")
}

func TestPanicRecovery(t *testing.T) {
	logger := zap.NewNop()
	store := session.NewMemoryStore()
	eng := New(Config{
		Sessions: store,
		Ledger:   panicLedger{},
		Node:     lightning.NewMockProvider(logger),
		Gateway:  momo.NewMockGateway(logger),
		Airtime:  airtime.NewSimulatedPurchaser(logger),
		Pending:  reconciler.NewMemoryPendingStore(),
		Logger:   logger,
	})

	reply := eng.Handle(context.Background(), Request{SessionID: "s", Phone: userPhone, Text: ""})
	assert.Equal(t, MsgInternalError, reply)
	_, err := store.Get(context.Background(), "s")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestNaturalLanguageNotConsultedForDigitInput(t *testing.T) {
	parser := &scriptedParser{results: []intent.Result{{Reply: "unused"}}}
	f := newFixture(parser)
	f.fund(t, userPhone, 1000)

	reply := f.handle("1*0787654321*500")
	assert.Equal(t, "END Sent 500 sats to +254787654321. New balance: 500 sats", reply)
	assert.Equal(t, 0, parser.calls)
}

func TestNaturalCheckBalance(t *testing.T) {
	parser := &scriptedParser{results: []intent.Result{
		{Action: &intent.Action{Kind: intent.KindCheckBalance}},
	}}
	f := newFixture(parser)
	f.fund(t, userPhone, 1000)

	assert.Equal(t, "END Your balance is 1,000 sats (≈150.00 KES)", f.handle("check my balance"))
	assert.Equal(t, 1, parser.calls)
	assert.Equal(t, userPhone, parser.last.Phone)
	assert.Equal(t, int64(1000), parser.last.BalanceSats)
}

func TestNaturalSendWithAlias(t *testing.T) {
	parser := &scriptedParser{results: []intent.Result{
		{Action: &intent.Action{Kind: intent.KindSendBitcoin, Recipient: "bob", Amount: 500, Currency: "sats"}},
	}}
	f := newFixture(parser)
	f.fund(t, userPhone, 1000)

	assert.Equal(t, "END Sent 500 sats to +254787654321. New balance: 500 sats", f.handle("send 500 sats to bob"))
	assert.Equal(t, int64(500), f.balance(t, bobPhone))
}

func TestNaturalSendCollectsMissingAmount(t *testing.T) {
	parser := &scriptedParser{results: []intent.Result{
		{Action: &intent.Action{Kind: intent.KindSendBitcoin, Recipient: "bob"}},
	}}
	f := newFixture(parser)
	f.fund(t, userPhone, 1000)

	assert.Equal(t, "CON Send BTC to +254787654321\nEnter amount in sats:", f.handle("send sats to bob"))
	// The follow-up amount resolves through the pending context, not the parser.
	assert.Equal(t, "END Sent 500 sats to +254787654321. New balance: 500 sats", f.handle("send sats to bob*500"))
	assert.Equal(t, 1, parser.calls)
}

func TestNaturalTopupWithMidFlowRateQuestion(t *testing.T) {
	parser := &scriptedParser{results: []intent.Result{
		{Action: &intent.Action{Kind: intent.KindTopupMpesa, Amount: 50}},
	}}
	f := newFixture(parser)

	assert.Equal(t, "CON Top up 50 KES (333 sats)?\n\n1. Yes, send M-Pesa request\n2. Cancel", f.handle("buy 50 kes of bitcoin"))

	// An informational question mid-flow answers in place and keeps the
	// operation alive.
	reply := f.handle("buy 50 kes of bitcoin*whats the rate")
	assert.True(t, strings.HasPrefix(reply, "CON Current Exchange Rate:"), reply)
	assert.Contains(t, reply, "Top up 50 KES (333 sats)?")

	reply = f.handle("buy 50 kes of bitcoin*whats the rate*1")
	assert.True(t, strings.HasPrefix(reply, "END M-Pesa payment request sent to"), reply)
	assert.Equal(t, 1, parser.calls)

	pending, err := f.pending.List(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(50), pending[0].AmountKES)
}

func TestNaturalReplyPassthrough(t *testing.T) {
	parser := &scriptedParser{results: []intent.Result{
		{Reply: "Bitcoin is digital money."},
	}}
	f := newFixture(parser)
	assert.Equal(t, "END Bitcoin is digital money.", f.handle("what is bitcoin"))

	parser2 := &scriptedParser{results: []intent.Result{
		{Reply: "How much would you like to send?"},
	}}
	f2 := newFixture(parser2)
	assert.Equal(t, "CON How much would you like to send?", f2.handle("i want to send money"))
}

func TestNaturalParserFailure(t *testing.T) {
	parser := &scriptedParser{err: context.DeadlineExceeded}
	f := newFixture(parser)
	assert.Equal(t, "END Sorry, I couldn't understand that. Please try again or use the menu.", f.handle("gibberish input"))
}

func TestNaturalWithdrawConversation(t *testing.T) {
	parser := &scriptedParser{results: []intent.Result{
		{Action: &intent.Action{Kind: intent.KindWithdrawMpesa, Amount: 150}},
	}}
	f := newFixture(parser)
	f.fund(t, userPhone, 1000)

	assert.Equal(t, "CON Withdraw 150 KES (1,000 sats)\nEnter M-Pesa phone number:", f.handle("withdraw 150 kes"))
	assert.Equal(t, "END Withdrew 150 KES (1000 sats) to +254712345678\nNew balance: 0 sats",
		f.handle("withdraw 150 kes*0712345678"))
}

func TestCommaFormatting(t *testing.T) {
	assert.Equal(t, "0", comma(0))
	assert.Equal(t, "999", comma(999))
	assert.Equal(t, "1,000", comma(1000))
	assert.Equal(t, "1,234,567", comma(1234567))
	assert.Equal(t, "-1,234", comma(-1234))
}
