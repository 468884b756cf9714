package whisper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/transcription"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "base" {
			http.Error(w, "unexpected model", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hello world","segments":[{"text":"hello world","start":0,"end":1.5}],"language":"en"}`))
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL})
	resp, err := p.Transcribe(context.Background(), transcription.Request{
		Audio: []byte("RIFFfakewav"),
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if resp.Text != "hello world" {
		t.Errorf("Text = %q, want %q", resp.Text, "hello world")
	}
	if len(resp.Segments) != 1 || resp.Segments[0].End != 1.5 {
		t.Errorf("unexpected segments: %+v", resp.Segments)
	}
	if resp.Duration != 1.5 {
		t.Errorf("Duration = %f, want 1.5", resp.Duration)
	}
}

func TestTranscribe_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL})
	_, err := p.Transcribe(context.Background(), transcription.Request{Audio: []byte("x")})
	if !errors.IsCode(err, errors.ErrCodeProviderRateLimited) {
		t.Errorf("want rate-limited error, got %v", err)
	}
	if !errors.IsRetryable(err) {
		t.Error("rate-limited error must be retryable")
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL})
	_, err := p.Transcribe(context.Background(), transcription.Request{Audio: []byte("x")})
	if !errors.IsCode(err, errors.ErrCodeProvider) {
		t.Errorf("want provider error, got %v", err)
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	p := NewProvider(Config{})
	_, err := p.Transcribe(context.Background(), transcription.Request{})
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("want invalid input error, got %v", err)
	}
}

func TestTranscribe_PerRequestKeyOverridesConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer caller-key" {
			http.Error(w, "wrong credential", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL, APIKey: "service-key"})
	resp, err := p.Transcribe(context.Background(), transcription.Request{
		Audio:  []byte("x"),
		APIKey: "caller-key",
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("Text = %q, want %q", resp.Text, "ok")
	}
}

func TestTranscribe_Diarization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("diarize") != "true" {
			http.Error(w, "diarize flag missing", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hi there","segments":[` +
			`{"text":"hi","start":0,"end":1,"speaker":"SPEAKER_00"},` +
			`{"text":"there","start":1,"end":2,"speaker":"SPEAKER_01"}]}`))
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL})
	resp, err := p.Transcribe(context.Background(), transcription.Request{
		Audio:   []byte("x"),
		Diarize: true,
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if len(resp.Utterances) != 2 {
		t.Fatalf("want 2 utterances, got %d", len(resp.Utterances))
	}
	if resp.Utterances[1].Speaker != "SPEAKER_01" {
		t.Errorf("Speaker = %q, want SPEAKER_01", resp.Utterances[1].Speaker)
	}
}
