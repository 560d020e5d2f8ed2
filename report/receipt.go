package report

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/barberia/backoffice/internal/sales"
)

//go:embed templates/receipt.html
var templateFS embed.FS

// PDFConverter turns HTML into PDF bytes.
type PDFConverter interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// ItemNames resolves catalog names for receipt lines. Lookups that fail fall
// back to a generic description.
type ItemNames interface {
	ServiceName(ctx context.Context, id int64) (string, error)
	ProductName(ctx context.Context, id int64) (string, error)
}

// ReceiptConfig tunes receipt rendering.
type ReceiptConfig struct {
	Shop     string
	Locale   string
	Location *time.Location
}

type receiptLabels struct {
	Receipt, Payment, Item, Qty, Price, Discount, Amount, Subtotal, Tax, Total string
}

var labelsByLang = map[string]receiptLabels{
	"es": {"Recibo", "Forma de pago", "Concepto", "Cant.", "Precio", "Descuento", "Importe", "Subtotal", "Impuestos", "Total"},
	"en": {"Receipt", "Payment", "Item", "Qty", "Price", "Discount", "Amount", "Subtotal", "Tax", "Total"},
}

// ReceiptRenderer renders sale receipts as PDF through Gotenberg.
type ReceiptRenderer struct {
	converter PDFConverter
	names     ItemNames
	tpl       *template.Template
	printer   *message.Printer
	lang      string
	labels    receiptLabels
	cfg       ReceiptConfig
	logger    *slog.Logger
}

// NewReceiptRenderer parses the embedded template. names may be nil.
func NewReceiptRenderer(converter PDFConverter, names ItemNames, cfg ReceiptConfig, logger *slog.Logger) (*ReceiptRenderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Shop == "" {
		cfg.Shop = "Barbería"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		tag = language.Spanish
	}
	base, _ := tag.Base()
	labels, ok := labelsByLang[base.String()]
	if !ok {
		labels = labelsByLang["en"]
	}
	tpl, err := template.ParseFS(templateFS, "templates/receipt.html")
	if err != nil {
		return nil, fmt.Errorf("parse receipt template: %w", err)
	}
	return &ReceiptRenderer{
		converter: converter,
		names:     names,
		tpl:       tpl,
		printer:   message.NewPrinter(tag),
		lang:      base.String(),
		labels:    labels,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

type receiptLine struct {
	Description string
	Quantity    string
	UnitPrice   string
	Discount    string
	Subtotal    string
}

type receiptView struct {
	Lang        string
	Shop        string
	Labels      receiptLabels
	Sale        sales.Sale
	SoldAt      string
	Lines       []receiptLine
	Subtotal    string
	Tax         string
	Discount    string
	Total       string
	HasTax      bool
	HasDiscount bool
}

// RenderHTML produces the receipt document.
func (r *ReceiptRenderer) RenderHTML(ctx context.Context, sale sales.Sale) (string, error) {
	view := receiptView{
		Lang:        r.lang,
		Shop:        r.cfg.Shop,
		Labels:      r.labels,
		Sale:        sale,
		SoldAt:      sale.SoldAt.In(r.cfg.Location).Format("02/01/2006 15:04"),
		Subtotal:    r.money(sale.Subtotal),
		Tax:         r.money(sale.Tax),
		Discount:    r.money(sale.Discount),
		Total:       r.money(sale.Total),
		HasTax:      !sale.Tax.IsZero(),
		HasDiscount: !sale.Discount.IsZero(),
	}
	for _, l := range sale.Lines {
		view.Lines = append(view.Lines, receiptLine{
			Description: r.describe(ctx, l.Item),
			Quantity:    r.printer.Sprint(number.Decimal(l.Quantity)),
			UnitPrice:   r.money(l.UnitPrice),
			Discount:    r.money(l.Discount),
			Subtotal:    r.money(l.LineSubtotal),
		})
	}
	var buf bytes.Buffer
	if err := r.tpl.ExecuteTemplate(&buf, "receipt.html", view); err != nil {
		return "", fmt.Errorf("execute receipt template: %w", err)
	}
	return buf.String(), nil
}

// RenderReceipt renders the sale to HTML and converts it to PDF.
func (r *ReceiptRenderer) RenderReceipt(ctx context.Context, sale sales.Sale) ([]byte, error) {
	html, err := r.RenderHTML(ctx, sale)
	if err != nil {
		return nil, err
	}
	pdf, err := r.converter.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("convert receipt %d: %w", sale.ID, err)
	}
	return pdf, nil
}

func (r *ReceiptRenderer) money(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return r.printer.Sprint(number.Decimal(f, number.Scale(2)))
}

func (r *ReceiptRenderer) describe(ctx context.Context, item sales.LineItem) string {
	var (
		name string
		err  error
		id   int64
	)
	switch it := item.(type) {
	case sales.ServiceItem:
		id = it.ServiceID
		if r.names != nil {
			name, err = r.names.ServiceName(ctx, id)
		}
	case sales.ProductItem:
		id = it.ProductID
		if r.names != nil {
			name, err = r.names.ProductName(ctx, id)
		}
	default:
		return ""
	}
	if err != nil {
		r.logger.Warn("receipt item name lookup failed", slog.Int64("id", id), slog.Any("error", err))
	}
	if name == "" {
		name = string(item.Type()) + " #" + strconv.FormatInt(id, 10)
	}
	return name
}
