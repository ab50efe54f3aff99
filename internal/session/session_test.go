package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	st := NewState("+254712345678")
	st.Menu = MenuSendAmount
	st.Send = &SendData{Recipient: "+254787654321"}
	require.NoError(t, store.Save(ctx, "s1", st))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, MenuSendAmount, got.Menu)
	require.NotNil(t, got.Send)
	assert.Equal(t, "+254787654321", got.Send.Recipient)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is not an error.
	require.NoError(t, store.Delete(ctx, "s1"))
}

func TestMemoryStoreCopiesState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	st := NewState("+254712345678")
	st.Topup = &TopupData{AmountKES: 100, Sats: 666}
	require.NoError(t, store.Save(ctx, "s1", st))

	// Mutating after Save must not leak into the store.
	st.Topup.AmountKES = 999

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Topup.AmountKES)

	// Two Gets return independent copies.
	other, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	got.Topup.AmountKES = 1
	assert.Equal(t, int64(100), other.Topup.AmountKES)
}

func TestResetFlows(t *testing.T) {
	st := NewState("+254712345678")
	st.Menu = MenuWithdrawPhone
	st.Withdraw = &WithdrawData{AmountKES: 150, Sats: 1000}
	st.AI = &AIContext{Operation: "topup_mpesa", Awaiting: "amount"}
	st.AddTurn("user", "hi")

	st.ResetFlows()

	assert.Equal(t, MenuMain, st.Menu)
	assert.Nil(t, st.Withdraw)
	// AI overlay and history have their own lifecycle.
	assert.NotNil(t, st.AI)
	assert.Len(t, st.Turns, 1)
}

func TestAddTurnBounded(t *testing.T) {
	st := NewState("+254712345678")
	for i := 0; i < 25; i++ {
		st.AddTurn("user", fmt.Sprintf("turn %d", i))
	}
	require.Len(t, st.Turns, maxTurns)
	assert.Equal(t, "turn 24", st.Turns[maxTurns-1].Content)
	assert.Equal(t, "turn 15", st.Turns[0].Content)
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := NewKeyedMutex()

	var mu sync.Mutex
	counters := map[string]int{}
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		for _, key := range []string{"a", "b"} {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				km.Lock(key)
				defer km.Unlock(key)
				mu.Lock()
				counters[key]++
				mu.Unlock()
			}(key)
		}
	}
	wg.Wait()

	assert.Equal(t, 20, counters["a"])
	assert.Equal(t, 20, counters["b"])
}

func TestKeyedMutexReleasesUnusedKeys(t *testing.T) {
	km := NewKeyedMutex()
	km.Lock("k")
	km.Unlock("k")

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}
