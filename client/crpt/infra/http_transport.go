package infra

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// maxDrain limita quanto do corpo da resposta é lido só para reaproveitar a conexão.
const maxDrain = 64 << 10

// HTTPTransport implementa domain.Transport com net/http.
type HTTPTransport struct {
	client *http.Client
}

type HTTPTransportOption func(*http.Client)

// WithHTTPTimeout limita a duração total de cada envio. 0 = sem limite (só o ctx).
func WithHTTPTimeout(d time.Duration) HTTPTransportOption {
	return func(c *http.Client) { c.Timeout = d }
}

func WithRoundTripper(rt http.RoundTripper) HTTPTransportOption {
	return func(c *http.Client) { c.Transport = rt }
}

func NewHTTPTransport(opts ...HTTPTransportOption) *HTTPTransport {
	c := &http.Client{Timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return &HTTPTransport{client: c}
}

// Send faz um POST com o corpo e os headers informados e devolve o status.
func (t *HTTPTransport) Send(ctx context.Context, url string, headers map[string]string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	return resp.StatusCode, nil
}
