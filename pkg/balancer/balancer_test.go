package balancer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestResolve_OK(t *testing.T) {
	var gotKey, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("appkey")
		gotUA = r.UserAgent()
		_, _ = w.Write([]byte("var SOCKET_SERVER = \"http://broker-1.local:8080\";"))
	}))
	defer srv.Close()

	server, err := New().Resolve(context.Background(), srv.URL+"/server/2.1/", "myKey")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if server != "http://broker-1.local:8080" {
		t.Fatalf("unexpected server %q", server)
	}
	if gotKey != "myKey" || gotUA != UserAgent {
		t.Fatalf("unexpected request: appkey=%q ua=%q", gotKey, gotUA)
	}
}

func TestResolve_MultiLineBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("var SOCKET_SERVER = \n\"https://broker-2.local\";\n"))
	}))
	defer srv.Close()

	server, err := New().Resolve(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if server != "https://broker-2.local" {
		t.Fatalf("unexpected server %q", server)
	}
}

func TestResolve_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("No server available"))
	}))
	defer srv.Close()

	_, err := New().Resolve(context.Background(), srv.URL, "k")
	var inv *InvalidResponseError
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvalidResponseError, got %v", err)
	}
	if inv.Body != "No server available" {
		t.Fatalf("raw body not carried: %q", inv.Body)
	}
}

func TestResolve_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("var SOCKET_SERVER = \"http://broker-1.local\";"))
	}))
	defer srv.Close()

	_, err := New().Resolve(context.Background(), srv.URL, "")
	var inv *InvalidResponseError
	if !errors.As(err, &inv) || inv.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected InvalidResponseError with 503, got %v", err)
	}
}

func TestResolve_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(WithTimeout(50*time.Millisecond)).Resolve(context.Background(), srv.URL, "")
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestResolveAsync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("var SOCKET_SERVER = \"http://broker-9.local\";"))
	}))
	defer srv.Close()

	type result struct {
		server string
		err    error
	}
	ch := make(chan result, 1)
	New().ResolveAsync(context.Background(), srv.URL, "", func(server string, err error) {
		ch <- result{server, err}
	})
	select {
	case r := <-ch:
		if r.err != nil || r.server != "http://broker-9.local" {
			t.Fatalf("unexpected async result %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("ResolveAsync did not complete")
	}
}

func TestRequestURL(t *testing.T) {
	if got := RequestURL("balancer.local/server/2.1", "k"); got != "http://balancer.local/server/2.1?appkey=k" {
		t.Fatalf("unexpected %q", got)
	}
	if got := RequestURL("https://balancer.local", " "); got != "https://balancer.local" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestSecureClusterURL(t *testing.T) {
	if got := SecureClusterURL("http://ortc.local/server/2.1/"); got != "https://ortc.local/server/ssl/2.1/" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SecureClusterURL("https://ortc.local/server/ssl/2.1/"); !strings.HasPrefix(got, "https://") || strings.Count(got, "ssl") != 1 {
		t.Fatalf("secure URL must be unchanged, got %q", got)
	}
}
