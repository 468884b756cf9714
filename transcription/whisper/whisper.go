package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/provider"
	"github.com/skillsenselab/scribe/transcription"
)

const (
	// ProviderName is the registered name for the Whisper provider.
	ProviderName = "whisper"

	defaultWhisperURL     = "http://localhost:8387"
	defaultWhisperModel   = "base"
	defaultWhisperTimeout = 120 * time.Second
)

// Config holds configuration for the Whisper transcription provider.
type Config struct {
	URL      string        `json:"url" yaml:"url"`
	Model    string        `json:"model" yaml:"model"`
	Language string        `json:"language,omitempty" yaml:"language"`
	APIKey   string        `json:"api_key,omitempty" yaml:"api_key"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// Provider implements transcription.Provider using a faster-whisper HTTP sidecar.
type Provider struct {
	cfg    Config
	client *http.Client
}

// NewProvider creates a new Whisper transcription provider.
func NewProvider(cfg Config) *Provider {
	if cfg.URL == "" {
		cfg.URL = defaultWhisperURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultWhisperModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultWhisperTimeout
	}
	return &Provider{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Factory returns a provider.Factory that creates Whisper Provider
// instances from a generic config map.
func Factory() provider.Factory[transcription.Provider] {
	return func(cfg map[string]any) (transcription.Provider, error) {
		wc := Config{}
		if v, ok := cfg["url"].(string); ok {
			wc.URL = v
		}
		if v, ok := cfg["model"].(string); ok {
			wc.Model = v
		}
		if v, ok := cfg["language"].(string); ok {
			wc.Language = v
		}
		if v, ok := cfg["api_key"].(string); ok {
			wc.APIKey = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			wc.Timeout = v
		}
		return NewProvider(wc), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the Whisper sidecar is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Transcribe sends audio to the Whisper sidecar and returns the transcription.
// Rate-limit responses (HTTP 429) surface as retryable rate-limit errors so
// the caller's governor can react.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
	if len(req.Audio) == 0 {
		return nil, errors.InvalidInput("audio", "must not be empty")
	}

	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	lang := p.cfg.Language
	if req.Language != "" {
		lang = req.Language
	}
	filename := req.Filename
	if filename == "" {
		filename = "audio.wav"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, errors.Internal(fmt.Errorf("write audio data: %w", err))
	}

	_ = writer.WriteField("model", model)
	if lang != "" {
		_ = writer.WriteField("language", lang)
	}
	if req.Prompt != "" {
		_ = writer.WriteField("prompt", req.Prompt)
	}
	if req.Diarize {
		_ = writer.WriteField("diarize", "true")
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL+"/transcribe", &buf)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	key := p.cfg.APIKey
	if req.APIKey != "" {
		key = req.APIKey
	}
	if key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Timeout("whisper transcribe")
		}
		return nil, errors.Provider(ProviderName, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.ProviderRateLimited(ProviderName)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.Provider(ProviderName,
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var result whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Provider(ProviderName, fmt.Errorf("decode response: %w", err))
	}

	return toResponse(&result), nil
}

// --- internal Whisper API response types ---

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
}

type whisperSegment struct {
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
}

func toResponse(resp *whisperResponse) *transcription.Response {
	segments := make([]transcription.Segment, len(resp.Segments))
	var utterances []transcription.Utterance
	for i, seg := range resp.Segments {
		segments[i] = transcription.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		}
		if seg.Speaker != "" {
			utterances = append(utterances, transcription.Utterance{
				Speaker: seg.Speaker,
				Start:   seg.Start,
				End:     seg.End,
				Text:    seg.Text,
			})
		}
	}

	var duration float64
	if len(resp.Segments) > 0 {
		duration = resp.Segments[len(resp.Segments)-1].End
	}

	return &transcription.Response{
		Text:       resp.Text,
		Segments:   segments,
		Utterances: utterances,
		Duration:   duration,
		Language:   resp.Language,
	}
}
