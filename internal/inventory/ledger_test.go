package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/inventory"
	"github.com/barberia/backoffice/internal/inventory/inventorytest"
	"github.com/barberia/backoffice/internal/shared"
)

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) ObserveMovement(movementType, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[movementType+"/"+result]++
}

func newLedgerFixture(t *testing.T, stock, min int) (*inventory.Service, *inventorytest.Store, inventory.Product, *countingMetrics) {
	t.Helper()
	store := inventorytest.NewStore(nil)
	p := store.Seed(inventory.Product{
		Name: "Pomada mate", Category: "styling", SalePrice: decimal.RequireFromString("12.50"),
		StockQty: stock, MinStock: min, Unit: "unit", ForSale: true, Active: true,
	})
	metrics := &countingMetrics{}
	rec := audit.NewRecorder()
	svc := inventory.NewService(store, inventory.NewLedger(rec, metrics), rec, nil, nil)
	return svc, store, p, metrics
}

func TestInThenSaleOut(t *testing.T) {
	svc, store, p, _ := newLedgerFixture(t, 0, 5)
	ctx := context.Background()

	in, err := svc.ApplyMovement(ctx, inventory.MovementInput{ProductID: p.ID, Type: inventory.MovementIn, Quantity: 5})
	require.NoError(t, err)
	require.Equal(t, 0, in.StockBefore)
	require.Equal(t, 5, in.StockAfter)
	require.NotEmpty(t, in.Reference)

	out, err := svc.ApplyMovement(ctx, inventory.MovementInput{ProductID: p.ID, Type: inventory.MovementSaleOut, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, 2, out.StockAfter)

	require.Equal(t, 2, store.Product(p.ID).StockQty)
	require.Len(t, store.Movements(), 2)
}

func TestSignedDeltaByType(t *testing.T) {
	cases := []struct {
		typ  inventory.MovementType
		want int
	}{
		{inventory.MovementIn, 14},
		{inventory.MovementAdjustUp, 14},
		{inventory.MovementSaleOut, 6},
		{inventory.MovementInternalOut, 6},
		{inventory.MovementAdjustDown, 6},
	}
	for _, tc := range cases {
		t.Run(string(tc.typ), func(t *testing.T) {
			svc, store, p, _ := newLedgerFixture(t, 10, 2)
			_, err := svc.ApplyMovement(context.Background(), inventory.MovementInput{ProductID: p.ID, Type: tc.typ, Quantity: 4})
			require.NoError(t, err)
			require.Equal(t, tc.want, store.Product(p.ID).StockQty)
		})
	}
}

func TestInsufficientStockLeavesNoTrace(t *testing.T) {
	svc, store, p, metrics := newLedgerFixture(t, 2, 5)
	_, err := svc.ApplyMovement(context.Background(), inventory.MovementInput{ProductID: p.ID, Type: inventory.MovementSaleOut, Quantity: 100})

	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, 2, store.Product(p.ID).StockQty)
	require.Empty(t, store.Movements())
	require.Zero(t, store.Log.Len())
	require.Equal(t, 1, metrics.counts["sale_out/insufficient_stock"])
}

func TestRejectsInvalidMovements(t *testing.T) {
	svc, store, p, _ := newLedgerFixture(t, 2, 5)
	ctx := context.Background()

	_, err := svc.ApplyMovement(ctx, inventory.MovementInput{ProductID: p.ID, Type: inventory.MovementIn, Quantity: 0})
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)

	_, err = svc.ApplyMovement(ctx, inventory.MovementInput{ProductID: p.ID, Type: "theft", Quantity: 1})
	require.ErrorIs(t, err, inventory.ErrUnknownMovementType)

	_, err = svc.ApplyMovement(ctx, inventory.MovementInput{ProductID: 999, Type: inventory.MovementIn, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.Empty(t, store.Movements())
}

func TestMovementIsAudited(t *testing.T) {
	svc, store, p, _ := newLedgerFixture(t, 3, 1)
	m, err := svc.ApplyMovement(context.Background(), inventory.MovementInput{ProductID: p.ID, Type: inventory.MovementAdjustDown, Quantity: 1, Reason: "damaged"})
	require.NoError(t, err)

	movements := store.Log.Filter(audit.TableInventoryMovements)
	require.Len(t, movements, 1)
	require.Equal(t, m.ID, movements[0].RecordID)
	require.Equal(t, audit.OpInsert, movements[0].Operation)

	products := store.Log.Filter(audit.TableProducts)
	require.Len(t, products, 1)
	require.Contains(t, string(products[0].OldData), `"stock_qty":3`)
	require.Contains(t, string(products[0].NewData), `"stock_qty":2`)
}

func TestConcurrentSaleOutNeverGoesNegative(t *testing.T) {
	svc, store, p, _ := newLedgerFixture(t, 5, 1)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyMovement(ctx, inventory.MovementInput{ProductID: p.ID, Type: inventory.MovementSaleOut, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, inventory.ErrInsufficientStock):
				fail++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, ok)
	require.Equal(t, 7, fail)
	require.Equal(t, 0, store.Product(p.ID).StockQty)
}

func TestStockStatus(t *testing.T) {
	cases := []struct {
		stock, min int
		want       inventory.StockLevel
	}{
		{0, 5, inventory.StockOut},
		{0, 0, inventory.StockOut},
		{3, 5, inventory.StockLow},
		{5, 5, inventory.StockLow},
		{6, 5, inventory.StockOK},
	}
	for _, tc := range cases {
		got := inventory.StockStatus(inventory.Product{StockQty: tc.stock, MinStock: tc.min})
		require.Equal(t, tc.want, got, "stock=%d min=%d", tc.stock, tc.min)
	}
}
