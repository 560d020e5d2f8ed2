package report

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barberia/backoffice/internal/sales"
	"github.com/barberia/backoffice/internal/shared"
)

type stubNames struct{}

func (stubNames) ServiceName(_ context.Context, id int64) (string, error) {
	if id == 1 {
		return "Corte de pelo", nil
	}
	return "", shared.ErrNotFound
}

func (stubNames) ProductName(context.Context, int64) (string, error) {
	return "Pomada fijadora", nil
}

func sampleSale() sales.Sale {
	return sales.Sale{
		ID:            12,
		EmployeeID:    2,
		SoldAt:        time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		Subtotal:      decimal.RequireFromString("12035.00"),
		Tax:           decimal.Zero,
		Discount:      decimal.Zero,
		Total:         decimal.RequireFromString("12035.00"),
		PaymentMethod: sales.PaymentCash,
		Status:        sales.StatusCompleted,
		Lines: []sales.Line{
			{ID: 1, SaleID: 12, Item: sales.ServiceItem{ServiceID: 1}, Quantity: 1, UnitPrice: decimal.RequireFromString("20.00"), Discount: decimal.Zero, LineSubtotal: decimal.RequireFromString("20.00")},
			{ID: 2, SaleID: 12, Item: sales.ServiceItem{ServiceID: 9}, Quantity: 1, UnitPrice: decimal.RequireFromString("15.00"), Discount: decimal.Zero, LineSubtotal: decimal.RequireFromString("15.00")},
			{ID: 3, SaleID: 12, Item: sales.ProductItem{ProductID: 4}, Quantity: 1000, UnitPrice: decimal.RequireFromString("12.00"), Discount: decimal.Zero, LineSubtotal: decimal.RequireFromString("12000.00")},
		},
	}
}

func newRenderer(t *testing.T, conv PDFConverter, locale string) *ReceiptRenderer {
	t.Helper()
	r, err := NewReceiptRenderer(conv, stubNames{}, ReceiptConfig{Shop: "Barbería Centro", Locale: locale, Location: time.UTC}, nil)
	require.NoError(t, err)
	return r
}

func TestRenderHTMLLocalisesAmounts(t *testing.T) {
	html, err := newRenderer(t, nil, "es-ES").RenderHTML(context.Background(), sampleSale())
	require.NoError(t, err)

	assert.Contains(t, html, "Barbería Centro")
	assert.Contains(t, html, "Recibo #12")
	assert.Contains(t, html, "Corte de pelo")
	assert.Contains(t, html, "service #9")
	assert.Contains(t, html, "Pomada fijadora")
	assert.Contains(t, html, "12.035,00")
	assert.Contains(t, html, "14/03/2026 10:30")
	assert.NotContains(t, html, "Impuestos")
}

func TestRenderHTMLEnglishLabels(t *testing.T) {
	html, err := newRenderer(t, nil, "en-US").RenderHTML(context.Background(), sampleSale())
	require.NoError(t, err)
	assert.Contains(t, html, "Receipt #12")
	assert.Contains(t, html, "12,035.00")
}

type convFunc func(ctx context.Context, html string) ([]byte, error)

func (f convFunc) RenderHTML(ctx context.Context, html string) ([]byte, error) { return f(ctx, html) }

func TestRenderReceiptConvertsThroughConverter(t *testing.T) {
	var got string
	r := newRenderer(t, convFunc(func(_ context.Context, html string) ([]byte, error) {
		got = html
		return []byte("%PDF-1.7"), nil
	}), "es")
	pdf, err := r.RenderReceipt(context.Background(), sampleSale())
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), pdf)
	assert.Contains(t, got, "<table>")

	failing := newRenderer(t, convFunc(func(context.Context, string) ([]byte, error) {
		return nil, errors.New("gotenberg down")
	}), "es")
	_, err = failing.RenderReceipt(context.Background(), sampleSale())
	require.Error(t, err)
}

func TestGotenbergClientPostsMultipartHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		assert.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		reader := multipart.NewReader(r.Body, params["boundary"])
		var html string
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			if part.FormName() == "files" {
				assert.Equal(t, "index.html", part.FileName())
				raw, _ := io.ReadAll(part)
				html = string(raw)
			}
		}
		if !strings.Contains(html, "hola") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/")
	require.NoError(t, client.Ping(context.Background()))
	pdf, err := client.RenderHTML(context.Background(), "<p>hola</p>")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf))

	_, err = client.RenderHTML(context.Background(), "<p>adiós</p>")
	require.Error(t, err)
}

type stubSales struct{}

func (stubSales) GetSale(_ context.Context, id int64) (sales.Sale, error) {
	if id != 12 {
		return sales.Sale{}, shared.ErrNotFound
	}
	return sampleSale(), nil
}

func TestPreviewRoute(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(NewClient("http://127.0.0.1:1"), newRenderer(t, nil, "es"), stubSales{}, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/receipts/12", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Corte de pelo")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/receipts/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenderSendsPaperFields(t *testing.T) {
	var width, margin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		width = r.FormValue("paperWidth")
		margin = r.FormValue("marginLeft")
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithPaper(PaperByName("roll80")), WithTimeout(5*time.Second))
	_, err := client.RenderHTML(context.Background(), "<p>ticket</p>")
	require.NoError(t, err)
	assert.Equal(t, "3.15", width)
	assert.Equal(t, "0.10", margin)
	assert.Equal(t, PaperA5, PaperByName("letter"))
}

func TestRendererUnavailable(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").RenderHTML(context.Background(), "<p>x</p>")
	require.ErrorIs(t, err, ErrRendererUnavailable)
}
