package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/assessli/companion/internal/model"
)

func newServerAndClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-model", 2*time.Second)
}

func TestComplete_Success(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	c := newServerAndClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello back"}}]}`))
	})

	p := &model.Profile{Name: "Ava", Meta: model.ProfileMeta{Bio: "loves hiking"}}
	out, err := c.Complete(context.Background(), "sk-test", p, "hello")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "hello back" {
		t.Fatalf("unexpected completion: %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("credential not sent as bearer: %q", gotAuth)
	}
	if gotBody.Model != "test-model" || len(gotBody.Messages) != 2 {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
	if !strings.Contains(gotBody.Messages[1].Content, "loves hiking") {
		t.Fatalf("profile summary missing from prompt: %q", gotBody.Messages[1].Content)
	}
}

func TestComplete_NonSuccessStatus(t *testing.T) {
	c := newServerAndClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := c.Complete(context.Background(), "sk-test", nil, "hello")
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("want *Error, got %v", err)
	}
}

func TestComplete_MalformedBody(t *testing.T) {
	c := newServerAndClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := c.Complete(context.Background(), "sk-test", nil, "hello")
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("want *Error for malformed body, got %v", err)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	c := newServerAndClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := c.Complete(context.Background(), "sk-test", nil, "hello")
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("want *Error for empty choices, got %v", err)
	}
}

func TestComplete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"late"}}]}`))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "test-model", 50*time.Millisecond)

	_, err := c.Complete(context.Background(), "sk-test", nil, "hello")
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("want *Error on timeout, got %v", err)
	}
}
