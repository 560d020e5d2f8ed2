// Package report renders printable documents through a Gotenberg service.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrRendererUnavailable marks failures reaching Gotenberg or a non-2xx reply.
var ErrRendererUnavailable = errors.New("report: pdf renderer unavailable")

// Paper is a page size with uniform margins, in inches.
type Paper struct {
	Width  float64
	Height float64
	Margin float64
}

// Paper presets selectable by name.
var (
	PaperA5     = Paper{Width: 5.83, Height: 8.27, Margin: 0.4}
	PaperRoll80 = Paper{Width: 3.15, Height: 11.7, Margin: 0.1}
)

// PaperByName resolves "a5" or "roll80"; anything else falls back to A5.
func PaperByName(name string) Paper {
	if strings.EqualFold(strings.TrimSpace(name), "roll80") {
		return PaperRoll80
	}
	return PaperA5
}

func (p Paper) fields() map[string]string {
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	return map[string]string{
		"paperWidth":   format(p.Width),
		"paperHeight":  format(p.Height),
		"marginTop":    format(p.Margin),
		"marginBottom": format(p.Margin),
		"marginLeft":   format(p.Margin),
		"marginRight":  format(p.Margin),
	}
}

// Client talks to the Gotenberg chromium HTML route.
type Client struct {
	baseURL string
	paper   Paper
	http    *http.Client
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithPaper sets the page size sent with every conversion.
func WithPaper(p Paper) ClientOption {
	return func(c *Client) { c.paper = p }
}

// WithTimeout bounds each request to Gotenberg.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient builds a client for the Gotenberg instance at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		paper:   PaperA5,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping calls /health.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRendererUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: health status %d", ErrRendererUnavailable, resp.StatusCode)
	}
	return nil
}

// RenderHTML converts a standalone HTML document to PDF.
func (c *Client) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	body, contentType, err := c.form(html)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRendererUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRendererUnavailable, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return io.ReadAll(resp.Body)
}

// form builds the multipart body: the document as index.html plus page fields.
func (c *Client) form(html string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(part, html); err != nil {
		return nil, "", err
	}
	for field, value := range c.paper.fields() {
		if err := mw.WriteField(field, value); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body, mw.FormDataContentType(), nil
}
