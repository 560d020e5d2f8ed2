package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/barberia/backoffice/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.handleListProducts)
		r.Post("/", h.handleCreateProduct)
		r.Get("/low-stock", h.handleLowStock)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetProduct)
			r.Put("/", h.handleUpdateProduct)
			r.Delete("/", h.handleDeleteProduct)
			r.Get("/movements", h.handleProductMovements)
			r.Post("/movements", h.handlePostMovement)
		})
	})
	r.Get("/movements", h.handleListMovements)
}

type productView struct {
	Product
	StockStatus StockLevel `json:"stock_status"`
}

func viewOf(p Product) productView {
	return productView{Product: p, StockStatus: StockStatus(p)}
}

func viewsOf(items []Product) []productView {
	out := make([]productView, 0, len(items))
	for _, p := range items {
		out = append(out, viewOf(p))
	}
	return out
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	active, err := httpx.QueryBool(r, "active")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	items, page, err := h.service.ListProducts(r.Context(), ProductFilter{
		Search:   strings.TrimSpace(q.Get("q")),
		Category: q.Get("category"),
		Brand:    q.Get("brand"),
		Active:   active,
		Level:    StockLevel(strings.TrimSpace(q.Get("stock_status"))),
		Page:     httpx.PageFromQuery(r),
	})
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[productView]{Items: viewsOf(items), Pagination: page})
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.CreateProduct(r.Context(), in)
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	w.Header().Set("Location", "/api/products/"+strconv.FormatInt(p.ID, 10))
	httpx.JSON(w, http.StatusCreated, viewOf(p))
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(p))
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ProductInput
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(p))
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.fail(w, "delete product", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context())
	if err != nil {
		h.fail(w, "low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewsOf(items))
}

func (h *Handler) handleProductMovements(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.listMovements(w, r, &id)
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.QueryInt64(r, "product_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.listMovements(w, r, productID)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request, productID *int64) {
	from, err := httpx.QueryTime(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryTime(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, page, err := h.service.ListMovements(r.Context(), MovementFilter{
		ProductID: productID,
		Type:      MovementType(strings.TrimSpace(r.URL.Query().Get("type"))),
		From:      from,
		To:        to,
		Page:      httpx.PageFromQuery(r),
	})
	if err != nil {
		h.fail(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[Movement]{Items: items, Pagination: page})
}

func (h *Handler) handlePostMovement(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in MovementInput
	if err := httpx.DecodeAndValidate(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.ProductID = id
	m, err := h.service.ApplyMovement(r.Context(), in)
	if err != nil {
		h.fail(w, "apply movement", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
