package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	routererr "github.com/solswap/router/internal/errors"
)

func TestDoJSONRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(time.Second, 2)
	var out struct {
		OK bool `json:"ok"`
	}
	if _, err := c.GetJSON(context.Background(), srv.URL, nil, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if !out.OK {
		t.Fatal("expected decoded body")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDoJSONMapsClientErrorsWithoutRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"amount too small"}`))
	}))
	defer srv.Close()

	c := New(time.Second, 3)
	body, err := c.GetJSON(context.Background(), srv.URL, nil, nil)
	if err == nil {
		t.Fatal("expected error for 400 status")
	}
	if !routererr.HasCode(err, routererr.CodeProvider) {
		t.Fatalf("expected provider code, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", calls)
	}
	if string(body) != `{"message":"amount too small"}` {
		t.Fatalf("expected raw body returned for translation, got %q", body)
	}
}

func TestDoJSONRateLimitCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(time.Second, 0)
	_, err := c.GetJSON(context.Background(), srv.URL, nil, nil)
	if !routererr.HasCode(err, routererr.CodeRateLimited) {
		t.Fatalf("expected rate limited code, got %v", err)
	}
}

func TestPostJSONReplaysBodyAcrossRetries(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		bodies = append(bodies, string(buf))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(time.Second, 1)
	if _, err := c.PostJSON(context.Background(), srv.URL, map[string]string{"a": "b"}, nil, nil); err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	if len(bodies) != 2 || bodies[0] != bodies[1] {
		t.Fatalf("expected identical bodies across retries, got %v", bodies)
	}
}
