package ledger

import (
	"context"
	"sync"
	"time"

	"sambaza/internal/models"
)

// Memory is the in-process ledger used in mock mode and tests. Accounts are
// guarded by one mutex each; transfers lock both accounts in sorted key order
// so concurrent transfers cannot deadlock.
type Memory struct {
	mu       sync.Mutex // guards the maps themselves
	accounts map[string]*account

	txMu   sync.Mutex
	nextID int64
	log    []models.Transaction
}

type account struct {
	mu      sync.Mutex
	balance int64
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]*account)}
}

func (m *Memory) account(phone string) *account {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[phone]
	if !ok {
		acc = &account{}
		m.accounts[phone] = acc
	}
	return acc
}

// GetBalance returns the current balance, creating the user lazily.
func (m *Memory) GetBalance(_ context.Context, phone string) (int64, error) {
	acc := m.account(phone)
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.balance, nil
}

// Transfer moves amountSats between two accounts atomically.
func (m *Memory) Transfer(_ context.Context, from, to string, amountSats int64) (int64, error) {
	if amountSats < MinTxSats {
		return 0, ErrAmountTooSmall
	}

	src, dst := m.account(from), m.account(to)
	first, second := src, dst
	if from > to {
		first, second = dst, src
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	if second != first {
		second.mu.Lock()
		defer second.mu.Unlock()
	}

	if src.balance < amountSats {
		return src.balance, ErrInsufficientFunds
	}
	src.balance -= amountSats
	dst.balance += amountSats

	m.append(models.Transaction{
		FromPhone:  from,
		ToPhone:    to,
		AmountSats: amountSats,
		Type:       models.TxTypeLightning,
	})
	return src.balance, nil
}

// Credit adds funds from an external counterparty.
func (m *Memory) Credit(_ context.Context, phone string, amountSats int64, txType, from, reference string) (int64, error) {
	if amountSats < MinTxSats {
		return 0, ErrAmountTooSmall
	}
	acc := m.account(phone)
	acc.mu.Lock()
	acc.balance += amountSats
	balance := acc.balance
	acc.mu.Unlock()

	m.append(models.Transaction{
		FromPhone:  from,
		ToPhone:    phone,
		AmountSats: amountSats,
		Type:       txType,
		Reference:  reference,
	})
	return balance, nil
}

// Debit removes funds toward an external counterparty.
func (m *Memory) Debit(_ context.Context, phone string, amountSats int64, txType, to, reference string) (int64, error) {
	if amountSats < MinTxSats {
		return 0, ErrAmountTooSmall
	}
	acc := m.account(phone)
	acc.mu.Lock()
	if acc.balance < amountSats {
		balance := acc.balance
		acc.mu.Unlock()
		return balance, ErrInsufficientFunds
	}
	acc.balance -= amountSats
	balance := acc.balance
	acc.mu.Unlock()

	m.append(models.Transaction{
		FromPhone:  phone,
		ToPhone:    to,
		AmountSats: amountSats,
		Type:       txType,
		Reference:  reference,
	})
	return balance, nil
}

// History returns the newest transactions touching phone.
func (m *Memory) History(_ context.Context, phone string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 5
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	var out []models.Transaction
	for i := len(m.log) - 1; i >= 0 && len(out) < limit; i-- {
		tx := m.log[i]
		if tx.FromPhone == phone || tx.ToPhone == phone {
			out = append(out, tx)
		}
	}
	return out, nil
}

// FindByReference scans the log for an external reference.
func (m *Memory) FindByReference(_ context.Context, reference string) (*models.Transaction, error) {
	if reference == "" {
		return nil, nil
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()
	for i := len(m.log) - 1; i >= 0; i-- {
		if m.log[i].Reference == reference {
			tx := m.log[i]
			return &tx, nil
		}
	}
	return nil, nil
}

func (m *Memory) append(tx models.Transaction) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.nextID++
	tx.ID = m.nextID
	tx.CreatedAt = time.Now().UTC()
	m.log = append(m.log, tx)
}
