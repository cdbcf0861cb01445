package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	"manifest-relay/internal/logger"
	"manifest-relay/internal/model"

	"github.com/rs/zerolog"
)

// Sink accepts one row per call.
type Sink interface {
	Send(ctx context.Context, url string, row model.Row) error
}

// Client posts rows to the sheet endpoints as multipart forms.
type Client struct {
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logger.Component("relay-client"),
	}
}

func (c *Client) Send(ctx context.Context, url string, row model.Row) error {
	body, contentType, err := encodeForm(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("body", string(detail)).
			Msg("Sink rejected row")
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	// drain so the connection can be reused
	io.Copy(io.Discard, resp.Body)
	return nil
}

// encodeForm writes every field of the row as a form value, in name order.
func encodeForm(row model.Row) (*bytes.Buffer, string, error) {
	names := make([]string, 0, len(row))
	for name := range row {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, name := range names {
		if err := w.WriteField(name, row[name].String()); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
