package scanning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ExtractionPrompt is the fixed instruction sent with every image. Existing
// evaluation expectations depend on this exact wording.
const ExtractionPrompt = `This is a walking pad LED display. Extract all the numbers shown. Return the numbers in a JSON format with the first number labelled as either time or calories, the second as speed, and the third as either distance or steps. Make sure numbers include colons and periods. Example: {"time": "12:34", "speed": "5.6", "distance": "1.1"} or {"calories": "1234", "speed": "5.6", "steps": "2345"}. Return only the JSON object, no additional text.`

// ErrEmptyResponse is returned when the model answers with no text
var ErrEmptyResponse = errors.New("no response from AI model")

// maxImageSize bounds a fetched image
const maxImageSize = 50 << 20

// Image is a stored capture. Data is set when the server holds the bytes
// itself; otherwise providers that send bytes inline fetch URL.
type Image struct {
	URL         string
	Data        []byte
	ContentType string
}

// Analyzer defines the interface for vision extraction
type Analyzer interface {
	// Analyze sends the image with ExtractionPrompt and returns the model's
	// raw text answer
	Analyze(ctx context.Context, img Image) (string, error)
	// Close closes the analyzer and releases resources
	Close() error
}

// bytes returns the image data, fetching URL through client when the data
// is not already in hand
func (img Image) bytes(ctx context.Context, client *http.Client) ([]byte, string, error) {
	if len(img.Data) > 0 {
		return img.Data, img.ContentType, nil
	}
	return fetchImage(ctx, client, img.URL)
}

// fetchImage downloads an image for providers that need the bytes inline.
// client should use NewSafeTransport.
func fetchImage(ctx context.Context, client *http.Client, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetching image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// nonEmpty returns ErrEmptyResponse for blank answers
func nonEmpty(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
