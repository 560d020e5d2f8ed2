package inventory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/inventory"
	"github.com/barberia/backoffice/internal/inventory/inventorytest"
	"github.com/barberia/backoffice/internal/shared"
)

type invalidatorSpy struct{ calls int }

func (s *invalidatorSpy) Invalidate(context.Context) error {
	s.calls++
	return nil
}

func newService(t *testing.T) (*inventory.Service, *inventorytest.Store, *invalidatorSpy) {
	t.Helper()
	store := inventorytest.NewStore(nil)
	spy := &invalidatorSpy{}
	return inventory.NewService(store, nil, nil, spy, nil), store, spy
}

func shampooInput() inventory.ProductInput {
	return inventory.ProductInput{
		Name:         "Champú anticaspa",
		Brand:        "Barbería",
		Category:     "hair",
		SalePrice:    decimal.RequireFromString("9.90"),
		CostPrice:    decimal.RequireFromString("4.10"),
		MinStock:     3,
		InitialStock: 8,
	}
}

func TestCreateProductRecordsInitialStock(t *testing.T) {
	svc, store, spy := newService(t)
	p, err := svc.CreateProduct(context.Background(), shampooInput())
	require.NoError(t, err)

	require.Equal(t, 8, p.StockQty)
	require.True(t, p.Active)
	require.Equal(t, "unit", p.Unit)

	movements := store.Movements()
	require.Len(t, movements, 1)
	require.Equal(t, inventory.MovementIn, movements[0].Type)
	require.Equal(t, 8, movements[0].Quantity)

	require.Len(t, store.Log.Filter(audit.TableProducts), 2)
	require.Equal(t, 1, spy.calls)
}

func TestCreateProductValidation(t *testing.T) {
	svc, store, _ := newService(t)
	in := shampooInput()
	in.SalePrice = decimal.RequireFromString("-1")
	_, err := svc.CreateProduct(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, store.Movements())
}

func TestCreateProductDuplicateNameRollsBack(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	_, err := svc.CreateProduct(ctx, shampooInput())
	require.NoError(t, err)
	logLen := store.Log.Len()

	_, err = svc.CreateProduct(ctx, shampooInput())
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Len(t, store.Movements(), 1)
	require.Equal(t, logLen, store.Log.Len())
}

func TestUpdateProductKeepsStock(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	p, err := svc.CreateProduct(ctx, shampooInput())
	require.NoError(t, err)

	in := shampooInput()
	in.SalePrice = decimal.RequireFromString("10.50")
	in.InitialStock = 100
	updated, err := svc.UpdateProduct(ctx, p.ID, in)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("10.50").Equal(updated.SalePrice))
	require.Equal(t, 8, updated.StockQty)
	require.Equal(t, 8, store.Product(p.ID).StockQty)
}

func TestDeleteProductWithHistoryIsInUse(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	p, err := svc.CreateProduct(ctx, shampooInput())
	require.NoError(t, err)

	err = svc.DeleteProduct(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrInUse)
	require.Equal(t, p.ID, store.Product(p.ID).ID)

	in := shampooInput()
	in.Name = "Toalla"
	in.InitialStock = 0
	bare, err := svc.CreateProduct(ctx, in)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProduct(ctx, bare.ID))
	require.Len(t, store.Log.Filter(audit.TableProducts), 4)
}

func TestListProductsByStockLevel(t *testing.T) {
	svc, store, _ := newService(t)
	store.Seed(inventory.Product{Name: "A", StockQty: 0, MinStock: 2, Active: true})
	store.Seed(inventory.Product{Name: "B", StockQty: 1, MinStock: 2, Active: true})
	store.Seed(inventory.Product{Name: "C", StockQty: 9, MinStock: 2, Active: true})

	items, page, err := svc.ListProducts(context.Background(), inventory.ProductFilter{Level: inventory.StockLow})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "B", items[0].Name)
	require.Equal(t, 1, page.Total)

	_, _, err = svc.ListProducts(context.Background(), inventory.ProductFilter{Level: "empty"})
	require.ErrorIs(t, err, shared.ErrValidation)

	low, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, low, 2)
	require.Equal(t, "A", low[0].Name)
}
