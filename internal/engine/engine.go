// Package engine drives the USSD conversation: menu routing, stateful flows,
// and natural-language handling. One Handle call processes one USSD request
// and returns the full CON/END response text.
package engine

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"sambaza/internal/airtime"
	"sambaza/internal/intent"
	"sambaza/internal/ledger"
	"sambaza/internal/lightning"
	"sambaza/internal/models"
	"sambaza/internal/momo"
	"sambaza/internal/phone"
	"sambaza/internal/reconciler"
	"sambaza/internal/session"
)

// Request is one inbound USSD callback. Text is the full accumulated input
// with steps joined by "*", exactly as the aggregator delivers it.
type Request struct {
	SessionID   string
	ServiceCode string
	Phone       string
	Text        string
}

// Publisher receives completed transactions for the live feed.
type Publisher interface {
	Publish(tx models.Transaction)
}

// Engine executes USSD conversations. Parser and Events may be nil; natural
// language input then falls back to the literal menu handlers.
type Engine struct {
	sessions session.Store
	locks    *session.KeyedMutex
	ledger   ledger.Ledger
	node     lightning.PaymentProvider
	gateway  momo.Gateway
	airtime  airtime.Purchaser
	pending  reconciler.PendingStore
	parser   intent.Parser
	events   Publisher
	logger   *zap.Logger
}

// Config collects the engine's dependencies.
type Config struct {
	Sessions session.Store
	Ledger   ledger.Ledger
	Node     lightning.PaymentProvider
	Gateway  momo.Gateway
	Airtime  airtime.Purchaser
	Pending  reconciler.PendingStore
	Parser   intent.Parser
	Events   Publisher
	Logger   *zap.Logger
}

// New builds an engine.
func New(cfg Config) *Engine {
	return &Engine{
		sessions: cfg.Sessions,
		locks:    session.NewKeyedMutex(),
		ledger:   cfg.Ledger,
		node:     cfg.Node,
		gateway:  cfg.Gateway,
		airtime:  cfg.Airtime,
		pending:  cfg.Pending,
		parser:   cfg.Parser,
		events:   cfg.Events,
		logger:   cfg.Logger,
	}
}

// Handle processes one USSD request end to end. Requests for the same session
// id are serialized; a panic anywhere below clears the session and degrades to
// a terminal error response.
func (e *Engine) Handle(ctx context.Context, req Request) (reply string) {
	e.locks.Lock(req.SessionID)
	defer e.locks.Unlock(req.SessionID)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("request panicked",
				zap.String("session_id", req.SessionID), zap.Any("panic", r))
			_ = e.sessions.Delete(ctx, req.SessionID)
			reply = MsgInternalError
		}
	}()

	userPhone := phone.Normalize(req.Phone)
	st, err := e.sessions.Get(ctx, req.SessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			e.logger.Error("load session", zap.String("session_id", req.SessionID), zap.Error(err))
		}
		st = session.NewState(userPhone)
	}

	reply = e.route(ctx, req.SessionID, st, req.Text)

	if strings.HasPrefix(reply, "END") {
		if err := e.sessions.Delete(ctx, req.SessionID); err != nil {
			e.logger.Error("delete session", zap.String("session_id", req.SessionID), zap.Error(err))
		}
	} else {
		if err := e.sessions.Save(ctx, req.SessionID, st); err != nil {
			e.logger.Error("save session", zap.String("session_id", req.SessionID), zap.Error(err))
		}
	}
	return reply
}

func (e *Engine) route(ctx context.Context, sessionID string, st *session.State, text string) string {
	if text == "" {
		st.ResetFlows()
		return e.mainMenu(ctx, st)
	}

	parts := strings.Split(text, "*")
	last := parts[len(parts)-1]

	// An active AI overlay owns the conversation until resolved or cancelled.
	if st.AI != nil && st.AI.Awaiting != "" {
		return e.handleAIContext(ctx, sessionID, st, last)
	}

	// At the main menu, anything not opened by a menu digit goes to the
	// parser. Digit-led input like "4*500" is aggregator replay, not language.
	if st.Menu == session.MenuMain && e.parser != nil && !isMenuDigit(parts[0]) {
		return e.handleNatural(ctx, sessionID, st, text)
	}

	// Aggregators replay the whole input path each callback. When session
	// state was lost mid-flow, replay the steps to reconstruct it.
	if st.Menu == session.MenuMain && len(parts) > 1 {
		reply := e.selectMenu(ctx, st, parts[0])
		for _, step := range parts[1:] {
			if strings.HasPrefix(reply, "END") {
				return reply
			}
			reply = e.dispatch(ctx, st, step)
		}
		return reply
	}

	if st.Menu == session.MenuMain {
		return e.selectMenu(ctx, st, last)
	}
	return e.dispatch(ctx, st, last)
}

func (e *Engine) dispatch(ctx context.Context, st *session.State, input string) string {
	switch st.Menu {
	case session.MenuMain:
		return e.selectMenu(ctx, st, input)
	case session.MenuSendPhone:
		return e.handleSendPhone(ctx, st, input)
	case session.MenuSendAmount:
		return e.handleSendAmount(ctx, st, input)
	case session.MenuReceiveAmount:
		return e.handleReceiveAmount(ctx, st, input)
	case session.MenuInvoicePhone:
		return e.handleInvoicePhone(ctx, st, input)
	case session.MenuInvoiceAmount:
		return e.handleInvoiceAmount(ctx, st, input)
	case session.MenuTopupAmount:
		return e.handleTopupAmount(ctx, st, input)
	case session.MenuTopupConfirm:
		return e.handleTopupConfirm(ctx, st, input)
	case session.MenuWithdrawAmount:
		return e.handleWithdrawAmount(ctx, st, input)
	case session.MenuWithdrawPhone:
		return e.handleWithdrawPhone(ctx, st, input)
	case session.MenuAirtimeAmount:
		return e.handleAirtimeAmount(ctx, st, input)
	case session.MenuAirtimePhone:
		return e.handleAirtimePhone(ctx, st, input)
	default:
		st.ResetFlows()
		return e.mainMenu(ctx, st)
	}
}

// isMenuDigit reports whether the step is a bare menu digit rather than
// natural language.
func isMenuDigit(step string) bool {
	p := strings.TrimSpace(step)
	return len(p) == 1 && p[0] >= '0' && p[0] <= '9'
}
