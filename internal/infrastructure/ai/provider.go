package ai

import (
	"io"
	"net/http"
	"strings"
	"time"
)

// Option ajusta un proveedor (URL base, cliente HTTP). Usado en tests con httptest.
type Option func(*client)

// WithBaseURL reemplaza la URL base de la API.
func WithBaseURL(url string) Option {
	return func(c *client) { c.baseURL = strings.TrimRight(strings.TrimSpace(url), "/") }
}

// WithHTTPClient reemplaza el cliente HTTP.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// client datos comunes a los adaptadores REST.
type client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func newClient(apiKey, model, baseURL string, timeout time.Duration, opts []Option) client {
	c := client{
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// readBody lee como máximo 64 KiB de la respuesta.
func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, 64*1024))
}

func (c *client) closeIdle() {
	c.httpClient.CloseIdleConnections()
}
