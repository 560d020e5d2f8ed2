package inventory_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/barberia/backoffice/internal/inventory"
	"github.com/barberia/backoffice/internal/inventory/inventorytest"
)

func newInventoryRouter(t *testing.T) (http.Handler, *inventorytest.Store) {
	t.Helper()
	store := inventorytest.NewStore(nil)
	svc := inventory.NewService(store, nil, nil, nil, nil)
	r := chi.NewRouter()
	inventory.NewHandler(nil, svc).MountRoutes(r)
	return r, store
}

func TestHandlerPostMovement(t *testing.T) {
	router, store := newInventoryRouter(t)
	p := store.Seed(inventory.Product{Name: "Cera", StockQty: 2, MinStock: 1, Active: true})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/products/1/movements",
		strings.NewReader(`{"movement_type":"in","quantity":4,"reason":"supplier delivery"}`)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, 6, store.Product(p.ID).StockQty)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/products/1/movements",
		strings.NewReader(`{"movement_type":"sale_out","quantity":100}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "insufficient stock")
	require.Equal(t, 6, store.Product(p.ID).StockQty)
}

func TestHandlerGetProductIncludesStatus(t *testing.T) {
	router, store := newInventoryRouter(t)
	store.Seed(inventory.Product{Name: "Cera", StockQty: 1, MinStock: 3, Active: true})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "low", body["stock_status"])
	require.Equal(t, "Cera", body["name"])

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/42", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerCreateProduct(t *testing.T) {
	router, store := newInventoryRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/products",
		strings.NewReader(`{"name":"Aceite barba","category":"beard","sale_price":"15.00","cost_price":"6.00","min_stock":2,"initial_stock":5}`)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, "/api/products/1", rr.Header().Get("Location"))
	require.Equal(t, 5, store.Product(1).StockQty)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"category":"beard"}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}
