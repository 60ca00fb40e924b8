package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBuildHostedProviders(t *testing.T) {
	built, err := Build(context.Background(), []Spec{
		{Name: "anthropic", APIKey: "sk-a"},
		{Name: "openai", APIKey: "sk-o", Model: "gpt-4o"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(built) != 2 {
		t.Fatalf("built %d providers, want 2", len(built))
	}
	if built["openai"].Model() != "gpt-4o" {
		t.Errorf("openai model = %s", built["openai"].Model())
	}
	if built["anthropic"].Model() == "" {
		t.Error("anthropic must get a default model")
	}
}

func TestBuildMissingKeyIsHardError(t *testing.T) {
	for _, name := range []string{"anthropic", "openai"} {
		if _, err := Build(context.Background(), []Spec{{Name: name}}); err == nil {
			t.Errorf("%s without a key must be a hard error", name)
		}
	}
}

func TestBuildUnknownProvider(t *testing.T) {
	if _, err := Build(context.Background(), []Spec{{Name: "bard"}}); err == nil {
		t.Error("unknown provider must be a hard error")
	}
}

func TestBuildSkipsUnhealthyLocal(t *testing.T) {
	// Nothing listens on this base URL; the probe must fail and the local
	// provider gets skipped, which leaves the set empty and errors.
	_, err := Build(context.Background(), []Spec{
		{Name: "local", BaseURL: "http://127.0.0.1:1/v1"},
	})
	if err == nil {
		t.Error("an unreachable local server as the only provider must error")
	}
}

func TestBuildKeepsHealthyLocal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	built, err := Build(context.Background(), []Spec{
		{Name: "local", BaseURL: srv.URL + "/v1"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := built["local"]; !ok {
		t.Error("healthy local server must be registered")
	}
}

func TestSendErrNeverBlocksOnFullChannel(t *testing.T) {
	ch := make(chan error, 1)
	first := errors.New("stream error")
	second := errors.New("request failed")

	sendErr(ch, first)

	done := make(chan struct{})
	go func() {
		sendErr(ch, second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second send blocked on a full error channel")
	}

	if got := <-ch; got != first {
		t.Errorf("delivered error = %v, want the first error", got)
	}
	select {
	case got, ok := <-ch:
		if ok {
			t.Errorf("unexpected extra error %v", got)
		}
	default:
	}
}
