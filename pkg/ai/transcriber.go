package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Transcription is the result of one audio transcription call.
type Transcription struct {
	Text            string
	DurationSeconds float64
}

// Transcriber converts an audio stream into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (Transcription, error)
}

// OpenAICompatTranscriber calls an OpenAI-compatible /v1/audio/transcriptions
// endpoint (Whisper API shape).
type OpenAICompatTranscriber struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAICompatTranscriber builds a transcriber bound to a model.
func NewOpenAICompatTranscriber(baseURL, apiKey, model string) *OpenAICompatTranscriber {
	return &OpenAICompatTranscriber{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

// Transcribe uploads the audio and returns the transcript with its duration.
func (t *OpenAICompatTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (Transcription, error) {
	if t.model == "" {
		return Transcription{}, fmt.Errorf("transcription model required")
	}
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, audio); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if err := mw.WriteField("model", t.model); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if err := mw.WriteField("response_format", "verbose_json"); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(mw.Close())
	}()

	url := t.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return Transcription{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return Transcription{}, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return Transcription{}, fmt.Errorf("transcription api error: %s", errResp.Error.Message)
		}
		return Transcription{}, fmt.Errorf("transcription api error: %s", resp.Status)
	}
	var out struct {
		Text     string  `json:"text"`
		Duration float64 `json:"duration"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Transcription{}, fmt.Errorf("transcription decode: %w", err)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return Transcription{}, fmt.Errorf("empty transcription response")
	}
	return Transcription{Text: text, DurationSeconds: out.Duration}, nil
}
