package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrUnavailable = errors.New("ocr service is not configured")

// DocumentReader loads the stored bytes the recognizer should run over.
type DocumentReader interface {
	Read(ctx context.Context, storageRef string) ([]byte, error)
}

type VisionClientConfig struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// VisionClient calls a Google Vision style images:annotate endpoint with
// TEXT_DETECTION and returns the full text annotation.
type VisionClient struct {
	endpoint   string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	store      DocumentReader
}

func NewVisionClient(config VisionClientConfig, store DocumentReader) *VisionClient {
	if strings.TrimSpace(config.Endpoint) == "" {
		config.Endpoint = "https://vision.googleapis.com"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &VisionClient{
		endpoint:   strings.TrimSuffix(config.Endpoint, "/"),
		apiKey:     strings.TrimSpace(config.APIKey),
		timeout:    config.Timeout,
		httpClient: config.HTTPClient,
		store:      store,
	}
}

func (c *VisionClient) Available() bool {
	return c.apiKey != ""
}

func (c *VisionClient) RecognizeText(ctx context.Context, storageRef string) (string, error) {
	if !c.Available() {
		return "", ErrUnavailable
	}

	content, err := c.store.Read(ctx, storageRef)
	if err != nil {
		return "", fmt.Errorf("load document for ocr: %w", err)
	}

	payload := map[string]any{
		"requests": []map[string]any{{
			"image":    map[string]string{"content": base64.StdEncoding.EncodeToString(content)},
			"features": []map[string]any{{"type": "TEXT_DETECTION"}},
		}},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal ocr payload: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		c.endpoint+"/v1/images:annotate?key="+c.apiKey,
		bytes.NewReader(encoded),
	)
	if err != nil {
		return "", fmt.Errorf("create ocr request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return "", fmt.Errorf("ocr transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return "", fmt.Errorf("read ocr body: %w", err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > 700 {
			message = message[:700]
		}
		return "", fmt.Errorf("ocr status %d: %s", httpResponse.StatusCode, message)
	}

	var raw visionAnnotateResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	if len(raw.Responses) == 0 {
		return "", errors.New("ocr response without results")
	}
	first := raw.Responses[0]
	if first.Error != nil && first.Error.Message != "" {
		return "", fmt.Errorf("ocr rejected request: %s", first.Error.Message)
	}

	text := strings.TrimSpace(first.FullTextAnnotation.Text)
	if text == "" {
		return "", errors.New("ocr found no text in document")
	}
	return text, nil
}

type visionAnnotateResponse struct {
	Responses []struct {
		FullTextAnnotation struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}
