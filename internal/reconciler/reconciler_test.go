package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sambaza/internal/ledger"
	"sambaza/internal/models"
	"sambaza/internal/momo"
)

const payer = "+254712345678"

func newTestReconciler(t *testing.T) (*Reconciler, *MemoryPendingStore, *ledger.Memory, *momo.MockGateway) {
	t.Helper()
	pending := NewMemoryPendingStore()
	led := ledger.NewMemory()
	gateway := momo.NewMockGateway(zap.NewNop())
	return New(pending, led, gateway, zap.NewNop()), pending, led, gateway
}

func initiate(t *testing.T, gateway *momo.MockGateway, pending *MemoryPendingStore, sats int64) string {
	t.Helper()
	ctx := context.Background()
	col, err := gateway.InitiateCollection(ctx, payer, 10, "BTC_TOPUP_1")
	require.NoError(t, err)
	require.NoError(t, pending.Save(ctx, models.PendingPayment{
		InvoiceID:  col.InvoiceID,
		Phone:      payer,
		AmountKES:  10,
		AmountSats: sats,
		CreatedAt:  time.Now().UTC(),
	}))
	return col.InvoiceID
}

func TestReconcileCreditsOnce(t *testing.T) {
	ctx := context.Background()
	rec, pending, led, gateway := newTestReconciler(t)
	invoiceID := initiate(t, gateway, pending, 66)
	gateway.Complete(invoiceID)

	res, err := rec.Reconcile(ctx, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCredited, res.Outcome)
	assert.Equal(t, payer, res.Phone)
	assert.Equal(t, int64(66), res.AmountSats)
	assert.Equal(t, int64(66), res.NewBalance)

	bal, _ := led.GetBalance(ctx, payer)
	assert.Equal(t, int64(66), bal)

	// Replay: the pending record is gone but the ledger remembers.
	res, err = rec.Reconcile(ctx, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, res.Outcome)

	bal, _ = led.GetBalance(ctx, payer)
	assert.Equal(t, int64(66), bal)
}

func TestReconcileConcurrentCreditsOnce(t *testing.T) {
	ctx := context.Background()
	rec, pending, led, gateway := newTestReconciler(t)
	invoiceID := initiate(t, gateway, pending, 66)
	gateway.Complete(invoiceID)

	const n = 8
	results := make([]Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := rec.Reconcile(ctx, invoiceID)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	credited := 0
	for _, res := range results {
		if res.Outcome == OutcomeCredited {
			credited++
		} else {
			assert.Equal(t, OutcomeAlreadyProcessed, res.Outcome)
		}
	}
	assert.Equal(t, 1, credited)

	bal, _ := led.GetBalance(ctx, payer)
	assert.Equal(t, int64(66), bal)
}

func TestReconcileStillPending(t *testing.T) {
	ctx := context.Background()
	rec, pending, led, gateway := newTestReconciler(t)
	invoiceID := initiate(t, gateway, pending, 66)

	res, err := rec.Reconcile(ctx, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStillPending, res.Outcome)

	bal, _ := led.GetBalance(ctx, payer)
	assert.Equal(t, int64(0), bal)

	// Record stays for the next sweep.
	list, err := rec.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReconcileProviderFailed(t *testing.T) {
	ctx := context.Background()
	rec, pending, led, gateway := newTestReconciler(t)
	invoiceID := initiate(t, gateway, pending, 66)
	gateway.Fail(invoiceID, "customer cancelled")

	res, err := rec.Reconcile(ctx, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProviderFailed, res.Outcome)
	assert.Equal(t, "customer cancelled", res.ProviderMsg)

	bal, _ := led.GetBalance(ctx, payer)
	assert.Equal(t, int64(0), bal)

	list, err := rec.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReconcileUnknownInvoice(t *testing.T) {
	ctx := context.Background()
	rec, _, _, _ := newTestReconciler(t)

	res, err := rec.Reconcile(ctx, "never-issued")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	rec, pending, led, gateway := newTestReconciler(t)

	done := initiate(t, gateway, pending, 66)
	gateway.Complete(done)
	waiting := initiate(t, gateway, pending, 133)

	results, err := rec.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	outcomes := map[string]Outcome{}
	for _, res := range results {
		outcomes[res.InvoiceID] = res.Outcome
	}
	assert.Equal(t, OutcomeCredited, outcomes[done])
	assert.Equal(t, OutcomeStillPending, outcomes[waiting])

	bal, _ := led.GetBalance(ctx, payer)
	assert.Equal(t, int64(66), bal)
}

func TestMemoryPendingStoreClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPendingStore()
	require.NoError(t, store.Save(ctx, models.PendingPayment{InvoiceID: "inv-1", Phone: payer}))

	p, err := store.Claim(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, payer, p.Phone)

	_, err = store.Claim(ctx, "inv-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "inv-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
