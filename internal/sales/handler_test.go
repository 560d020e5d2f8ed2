package sales_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/barberia/backoffice/internal/inventory"
	"github.com/barberia/backoffice/internal/sales"
)

type fakeReceipts struct{ rendered []int64 }

func (f *fakeReceipts) RenderReceipt(_ context.Context, sale sales.Sale) ([]byte, error) {
	f.rendered = append(f.rendered, sale.ID)
	return []byte("%PDF-1.7 fake"), nil
}

func newRouter(m *memory, receipts sales.ReceiptRenderer) chi.Router {
	svc, _ := newService(m)
	r := chi.NewRouter()
	sales.NewHandler(nil, svc, receipts).MountRoutes(r)
	return r
}

func TestHandlerCreateSale(t *testing.T) {
	m := newMemory()
	oil := m.stock.Seed(inventory.Product{Name: "Aceite", SalePrice: dec("8.00"), StockQty: 1, ForSale: true, Active: true})
	r := newRouter(m, nil)

	body := `{"employee_id":7,"payment_method":"cash","lines":[{"line_type":"product","product_id":` +
		strconv.FormatInt(oil.ID, 10) + `,"quantity":1,"discount":"0"}]}`
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.True(t, strings.HasPrefix(rr.Header().Get("Location"), "/api/sales/"))
	require.Contains(t, rr.Body.String(), `"line_type":"product"`)
	require.Contains(t, rr.Body.String(), `"service_id":null`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(body)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "insufficient stock")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sales",
		strings.NewReader(`{"employee_id":7,"payment_method":"cash","lines":[{"line_type":"voucher","quantity":1}]}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandlerReceipt(t *testing.T) {
	m := newMemory()
	appt := seedBooked(m)
	svc, _ := newService(m)
	sale, _, err := svc.ConvertAppointmentToSale(context.Background(), appt.ID)
	require.NoError(t, err)

	receipts := &fakeReceipts{}
	r := newRouter(m, receipts)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sales/"+strconv.FormatInt(sale.ID, 10)+"/receipt.pdf", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	require.Equal(t, []int64{sale.ID}, receipts.rendered)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sales/99999/receipt.pdf", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	newRouter(m, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sales/"+strconv.FormatInt(sale.ID, 10)+"/receipt.pdf", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerSetStatus(t *testing.T) {
	m := newMemory()
	appt := seedBooked(m)
	svc, _ := newService(m)
	sale, _, err := svc.ConvertAppointmentToSale(context.Background(), appt.ID)
	require.NoError(t, err)
	r := newRouter(m, nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sales/actions/status",
		strings.NewReader(`{"ids":[`+strconv.FormatInt(sale.ID, 10)+`],"status":"refunded"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.JSONEq(t, `{"updated":1}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sales?status=refunded", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"refunded"`)
}
