package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgestao/smart-gestao/finance"
	"github.com/smartgestao/smart-gestao/finance/store"
	"github.com/smartgestao/smart-gestao/finance/storetest"
)

func TestMemory_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) finance.Store { return store.NewMemory() })
}

func TestMemory_ReturnsCopies(t *testing.T) {
	// Mutating a listed record must not change what the store holds.
	s := store.NewMemory()
	ctx := context.Background()
	tx := storetest.Expense("acme", "Food", "10", storetest.Oct10)
	require.NoError(t, s.CreateTransaction(ctx, &tx))

	list, err := s.ListTransactions(ctx, finance.TransactionFilter{CompanyID: "acme"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	list[0].Description = "changed"

	got, err := s.GetTransaction(ctx, "acme", tx.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Description)
}
