// Package utils provides HTTP and caching helpers shared by the feed client
// and the tile renderer.
package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("resource not found on server")

// Accept header values for GetReader and GetBytes.
const (
	AcceptJSON  = "application/json"
	AcceptImage = "image/png,image/jpeg,image/*;q=0.8"
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// GetReader issues a GET for url and returns the body of a 2xx response.
// An empty accept sends no Accept header. The caller must close the body.
func GetReader(ctx context.Context, client *http.Client, url, accept string) (io.ReadCloser, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		closeBody(resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
		}
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	return resp.Body, nil
}

// GetBytes is GetReader followed by a full read of the body.
func GetBytes(ctx context.Context, client *http.Client, url, accept string) ([]byte, error) {
	body, err := GetReader(ctx, client, url, accept)
	if err != nil {
		return nil, err
	}
	defer closeBody(body)

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body from %s: %w", url, err)
	}
	return data, nil
}

func closeBody(body io.Closer) {
	if err := body.Close(); err != nil {
		log.Debug().Err(err).Msg("Error closing response body")
	}
}
