package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

type apiClient struct {
	name      string
	baseURL   string
	secretKey string
	client    *http.Client
}

func newAPIClient(name, baseURL, secretKey string, timeout time.Duration) *apiClient {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &apiClient{
		name:      name,
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		secretKey: strings.TrimSpace(secretKey),
		client:    &http.Client{Timeout: timeout},
	}
}

// do sends a JSON request and returns the raw response body. Transport failures
// and 5xx answers are classified as transient, 404 as not found and any other 4xx
// as a gateway rejection.
func (c *apiClient) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classifyTransportError(err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", ErrTransactionNotFound, c.name, path)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s responded status=%d", ErrTransientNetwork, c.name, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, &GatewayError{Provider: c.name, StatusCode: resp.StatusCode, Message: responseMessage(body)}
	}

	return body, nil
}

// classifyTransportError maps every failure to reach the provider, timeouts
// included, to ErrTransientNetwork.
func (c *apiClient) classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s timed out: %v", ErrTransientNetwork, c.name, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrTransientNetwork, c.name, err)
}

func responseMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil && strings.TrimSpace(envelope.Message) != "" {
		return strings.TrimSpace(envelope.Message)
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return msg
}

func isNumeric(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func stringPtr(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
