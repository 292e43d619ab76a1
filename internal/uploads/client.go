package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// the image host answered with a non-2xx status
var ErrUpstream = errors.New("image host error")

// Client talks to the external image-hosting endpoint. It forwards the
// raw bytes as multipart form data and hands back the durable URL the
// host assigns.
type Client struct {
	endpoint string
	apiKey   string
	httpc    *http.Client
}

func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload sends fields `file` and `fileName` and returns the hosted URL.
func (c *Client) Upload(ctx context.Context, fileName string, file io.Reader) (string, error) {
	var body bytes.Buffer

	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", fileName)

	if err != nil {
		return "", err
	}

	if _, err = io.Copy(part, file); err != nil {
		return "", err
	}

	if err = w.WriteField("fileName", fileName); err != nil {
		return "", err
	}

	if err = w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)

	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", w.FormDataContentType())

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)

	if err != nil {
		return "", err
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var out uploadResponse

	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: bad response body", ErrUpstream)
	}

	if out.URL == "" {
		return "", fmt.Errorf("%w: missing url in response", ErrUpstream)
	}

	return out.URL, nil
}
