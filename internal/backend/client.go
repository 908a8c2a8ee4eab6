// Package backend talks to the walkingpad API from the capture side.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zombor/walkingpad-tracker/internal/imaging"
)

// ErrEmptyAnalysis is returned when the API answers 2xx with no body
var ErrEmptyAnalysis = errors.New("analysis response is empty")

// StatusError is returned when the API answers with a non-2xx status
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %d - %s", e.Op, e.Code, e.Body)
}

// Client uploads captures and asks for their analysis
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client for baseURL. A zero timeout leaves requests unbounded.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Upload stores a PNG capture and returns its retrievable URL
func (c *Client) Upload(ctx context.Context, png []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", bytes.NewReader(png))
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", imaging.ContentTypePNG)

	body, err := c.do(req, "upload")
	if err != nil {
		return "", err
	}

	var result struct {
		Filename string `json:"filename"`
		URL      string `json:"url"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("upload response has no url")
	}
	return result.URL, nil
}

// Analyze returns the raw model answer for imageURL
func (c *Client) Analyze(ctx context.Context, imageURL string) (string, error) {
	endpoint := c.baseURL + "/api/analyze?imageUrl=" + url.QueryEscape(imageURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("creating analyze request: %w", err)
	}

	body, err := c.do(req, "analysis")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(body)) == "" {
		return "", ErrEmptyAnalysis
	}
	return string(body), nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
