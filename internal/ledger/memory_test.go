package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sambaza/internal/models"
)

const (
	alice = "+254712345678"
	bob   = "+254787654321"
)

func TestGetBalanceCreatesUser(t *testing.T) {
	m := NewMemory()
	bal, err := m.GetBalance(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Credit(ctx, alice, 1000, models.TxTypeTopUp, "mpesa", "inv-1")
	require.NoError(t, err)

	newBal, err := m.Transfer(ctx, alice, bob, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(700), newBal)

	bobBal, err := m.GetBalance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(300), bobBal)
}

func TestTransferInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Credit(ctx, alice, 100, models.TxTypeTopUp, "mpesa", "inv-1")
	require.NoError(t, err)

	_, err = m.Transfer(ctx, alice, bob, 500)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	bal, _ := m.GetBalance(ctx, alice)
	assert.Equal(t, int64(100), bal)
	bal, _ = m.GetBalance(ctx, bob)
	assert.Equal(t, int64(0), bal)
}

func TestAmountBelowMinimum(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Transfer(ctx, alice, bob, 0)
	assert.ErrorIs(t, err, ErrAmountTooSmall)
	_, err = m.Credit(ctx, alice, -5, models.TxTypeTopUp, "mpesa", "")
	assert.ErrorIs(t, err, ErrAmountTooSmall)
	_, err = m.Debit(ctx, alice, 0, models.TxTypeWithdraw, "M-Pesa", "")
	assert.ErrorIs(t, err, ErrAmountTooSmall)
}

func TestDebitNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Credit(ctx, alice, 100, models.TxTypeTopUp, "mpesa", "inv-1")
	require.NoError(t, err)

	// Two concurrent 60-sat debits against a 100-sat balance: exactly one
	// must win.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Debit(ctx, alice, 60, models.TxTypeWithdraw, "M-Pesa", "")
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	bal, _ := m.GetBalance(ctx, alice)
	assert.Equal(t, int64(40), bal)
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Credit(ctx, alice, 10_000, models.TxTypeTopUp, "mpesa", "inv-1")
	require.NoError(t, err)
	_, err = m.Credit(ctx, bob, 10_000, models.TxTypeTopUp, "mpesa", "inv-2")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = m.Transfer(ctx, alice, bob, 7)
		}()
		go func() {
			defer wg.Done()
			_, _ = m.Transfer(ctx, bob, alice, 3)
		}()
	}
	wg.Wait()

	aliceBal, _ := m.GetBalance(ctx, alice)
	bobBal, _ := m.GetBalance(ctx, bob)
	assert.Equal(t, int64(20_000), aliceBal+bobBal)
	assert.GreaterOrEqual(t, aliceBal, int64(0))
	assert.GreaterOrEqual(t, bobBal, int64(0))
}

func TestHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Credit(ctx, alice, 1000, models.TxTypeTopUp, "mpesa", "inv-1")
	require.NoError(t, err)
	_, err = m.Transfer(ctx, alice, bob, 200)
	require.NoError(t, err)
	_, err = m.Debit(ctx, alice, 300, models.TxTypeWithdraw, "M-Pesa", "ref-1")
	require.NoError(t, err)

	txs, err := m.History(ctx, alice, 10)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, models.TxTypeWithdraw, txs[0].Type)
	assert.Equal(t, models.TxTypeLightning, txs[1].Type)
	assert.Equal(t, models.TxTypeTopUp, txs[2].Type)

	// Limit applies after filtering to the newest entries.
	txs, err = m.History(ctx, alice, 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, models.TxTypeWithdraw, txs[0].Type)

	// Bob only sees the transfer.
	txs, err = m.History(ctx, bob, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TxTypeLightning, txs[0].Type)
}

func TestFindByReference(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Credit(ctx, alice, 500, models.TxTypeTopUp, "mpesa", "inv-42")
	require.NoError(t, err)

	tx, err := m.FindByReference(ctx, "inv-42")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, alice, tx.ToPhone)
	assert.Equal(t, int64(500), tx.AmountSats)

	tx, err = m.FindByReference(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, tx)

	tx, err = m.FindByReference(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, tx)
}
