package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeBridge simulates the voice transcript bridge service.
type fakeBridge struct {
	mu       sync.Mutex
	text     string
	speaking bool
	resets   int
	spoken   []string
}

func (f *fakeBridge) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/reset-user-text/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.resets++
		f.text = ""
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/get-user-text/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{
			"conversation_id": r.URL.Query().Get("conversation_id"),
			"text":            f.text,
		})
	})
	mux.HandleFunc("/get-is-speaking/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"is_speaking": f.speaking})
	})
	mux.HandleFunc("/speak/", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.spoken = append(f.spoken, payload["text"])
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (f *fakeBridge) setText(text string) {
	f.mu.Lock()
	f.text = text
	f.mu.Unlock()
}

func TestNewBridgeEngineRequiresBaseURL(t *testing.T) {
	if _, err := NewBridgeEngine("conv-1"); err == nil {
		t.Fatal("expected error without base URL")
	}
}

func TestBridgeEngineMirrorsTranscript(t *testing.T) {
	bridge := &fakeBridge{}
	srv := httptest.NewServer(bridge.handler())
	defer srv.Close()

	engine, err := NewBridgeEngine("conv-1", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewBridgeEngine failed: %v", err)
	}

	ctx := context.Background()
	if err := engine.StartListening(ctx); err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	defer engine.StopListening()

	if bridge.resets != 1 {
		t.Errorf("expected one buffer reset, got %d", bridge.resets)
	}

	bridge.setText("the resident fell")
	deadline := time.Now().Add(2 * time.Second)
	for engine.Transcript() != "the resident fell" {
		if time.Now().After(deadline) {
			t.Fatalf("transcript never mirrored, have %q", engine.Transcript())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := engine.StopListening(); err != nil {
		t.Fatalf("StopListening failed: %v", err)
	}
	// The accumulated transcript remains readable after stopping.
	if engine.Transcript() != "the resident fell" {
		t.Errorf("transcript lost after stop: %q", engine.Transcript())
	}
}

func TestBridgeEngineStartResetsTranscript(t *testing.T) {
	bridge := &fakeBridge{}
	srv := httptest.NewServer(bridge.handler())
	defer srv.Close()

	engine, err := NewBridgeEngine("conv-1", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewBridgeEngine failed: %v", err)
	}

	ctx := context.Background()
	if err := engine.StartListening(ctx); err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	bridge.setText("first capture")
	deadline := time.Now().Add(2 * time.Second)
	for engine.Transcript() == "" {
		if time.Now().After(deadline) {
			t.Fatal("transcript never mirrored")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := engine.StopListening(); err != nil {
		t.Fatalf("StopListening failed: %v", err)
	}

	if err := engine.StartListening(ctx); err != nil {
		t.Fatalf("second StartListening failed: %v", err)
	}
	defer engine.StopListening()
	if engine.Transcript() != "" {
		t.Errorf("transcript must reset on a new capture, got %q", engine.Transcript())
	}
	if bridge.resets != 2 {
		t.Errorf("expected a bridge-side reset per capture, got %d", bridge.resets)
	}
}

func TestBridgeEngineSpeakWaitsForPlayback(t *testing.T) {
	bridge := &fakeBridge{speaking: true}
	srv := httptest.NewServer(bridge.handler())
	defer srv.Close()

	engine, err := NewBridgeEngine("conv-1", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewBridgeEngine failed: %v", err)
	}

	go func() {
		time.Sleep(300 * time.Millisecond)
		bridge.mu.Lock()
		bridge.speaking = false
		bridge.mu.Unlock()
	}()

	start := time.Now()
	if err := engine.Speak(context.Background(), "Please say yes or no."); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	if time.Since(start) < 250*time.Millisecond {
		t.Error("Speak returned before playback finished")
	}

	bridge.mu.Lock()
	defer bridge.mu.Unlock()
	if len(bridge.spoken) != 1 || bridge.spoken[0] != "Please say yes or no." {
		t.Errorf("unexpected spoken payloads %v", bridge.spoken)
	}
}

func TestBridgeEngineSpeakCancelled(t *testing.T) {
	bridge := &fakeBridge{speaking: true}
	srv := httptest.NewServer(bridge.handler())
	defer srv.Close()

	engine, err := NewBridgeEngine("conv-1", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewBridgeEngine failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := engine.Speak(ctx, "hello"); err == nil {
		t.Fatal("expected cancellation error while playback never ends")
	}
}
