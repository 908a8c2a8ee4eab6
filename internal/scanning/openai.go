package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zombor/walkingpad-tracker/internal/imaging"
)

// OpenAI implements the Analyzer interface against an OpenAI-compatible chat
// completions endpoint. Supplied bytes are sent as a data URL; otherwise the
// image URL is passed through for the provider to fetch, so the blob must be
// publicly reachable.
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAI creates a new OpenAI Analyzer instance
func NewOpenAI(baseURL, apiKey, modelName string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if modelName == "" {
		modelName = "gpt-4o"
	}

	return &OpenAI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   modelName,
		client:  &http.Client{},
	}, nil
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIMessage struct {
	Role    string              `json:"role"`
	Content []openAIContentPart `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

// Analyze asks the model to read the display in the image
func (o *OpenAI) Analyze(ctx context.Context, img Image) (string, error) {
	imageURL := img.URL
	if len(img.Data) > 0 {
		pngData, err := imaging.ToPNG(img.Data, img.ContentType)
		if err != nil {
			return "", err
		}
		imageURL = "data:" + imaging.ContentTypePNG + ";base64," + base64.StdEncoding.EncodeToString(pngData)
	}

	requestBody, err := json.Marshal(openAIRequest{
		Model: o.model,
		Messages: []openAIMessage{
			{
				Role: "user",
				Content: []openAIContentPart{
					{Type: "text", Text: ExtractionPrompt},
					{Type: "image_url", ImageURL: &openAIImageURL{URL: imageURL}},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	// exactly one message is expected back
	if len(response.Choices) != 1 {
		return "", ErrEmptyResponse
	}

	return nonEmpty(response.Choices[0].Message.Content)
}

// Close is a no-op for the HTTP client
func (o *OpenAI) Close() error {
	return nil
}
