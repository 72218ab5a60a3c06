// Package speech is the HTTP client for the Speechify voice API: one-shot
// voice cloning from an audio sample and text-to-speech with the cloned
// voice.
package speech

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

// ErrUnavailable means the provider could not be reached in time. The
// action is retryable and must not consume any quota.
var ErrUnavailable = errors.New("speech provider unavailable")

// ProviderError is a structured rejection from the API. Message is shown
// to the user verbatim when present.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("speech provider rejected request (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("speech provider rejected request (%d)", e.StatusCode)
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type cloneResponse struct {
	ID string `json:"id"`
}

// CloneVoice uploads an audio sample and returns the new voice id.
func (c *Client) CloneVoice(ctx context.Context, name string, sample []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("sample", "sample.ogg")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(sample); err != nil {
		return "", err
	}
	if err := writer.WriteField("name", name); err != nil {
		return "", err
	}
	consent, _ := json.Marshal(map[string]string{"fullName": name})
	if err := writer.WriteField("consent", string(consent)); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/voices", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", decodeError(resp)
	}

	var result cloneResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode clone response: %w", err)
	}
	if result.ID == "" {
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: "no voice id in response"}
	}
	return result.ID, nil
}

type synthesizeRequest struct {
	Input        string `json:"input"`
	VoiceID      string `json:"voice_id"`
	OutputFormat string `json:"output_format"`
	Model        string `json:"model"`
}

// Synthesize converts text to MP3 audio using the given cloned voice.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	payload := synthesizeRequest{
		Input:        text,
		VoiceID:      voiceID,
		OutputFormat: "mp3",
		Model:        "simba-multilingual",
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/stream", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio stream: %v", ErrUnavailable, err)
	}
	return audio, nil
}

// decodeError extracts the provider's message payload when there is one.
func decodeError(resp *http.Response) error {
	perr := &ProviderError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return perr
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		perr.Message = payload.Message
	} else if len(raw) > 0 {
		perr.Message = string(raw)
	}
	return perr
}
