package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tariff-engine/internal/errors"
	"tariff-engine/internal/fetch"
)

func newClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	fetcher := fetch.NewClient(nil, fetch.Options{MaxAttempts: 1, BreakerThreshold: 10}, nil)
	return New(fetcher, Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil), srv
}

func TestSearchDecodesBareArray(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("keyword"); got != "sports footwear" {
			t.Errorf("keyword = %q", got)
		}
		_, _ = w.Write([]byte(`[{"htsno":"6404112030","description":"Sports footwear"}]`))
	})

	records, err := c.Search(context.Background(), "sports footwear")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0]["htsno"] != "6404112030" {
		t.Errorf("records = %v", records)
	}
}

func TestSearchDecodesWrappedShapes(t *testing.T) {
	for _, body := range []string{
		`{"results":[{"htsno":"1"}]}`,
		`{"data":[{"htsno":"1"}]}`,
	} {
		c, _ := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		records, err := c.Search(context.Background(), "x")
		if err != nil {
			t.Fatalf("body %s: %v", body, err)
		}
		if len(records) != 1 {
			t.Errorf("body %s: records = %v", body, records)
		}
	}
}

func TestSearchNonJSONIsParseFailure(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>Maintenance</body></html>`))
	})

	_, err := c.Search(context.Background(), "x")
	if !errors.IsType(err, errors.TypeParsing) {
		t.Errorf("err = %v, want PARSING_ERROR, never a silent empty success", err)
	}
}

func TestRangeSendsBounds(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("from") != "6404110000" || q.Get("to") != "6404119999" {
			t.Errorf("bounds = %s-%s", q.Get("from"), q.Get("to"))
		}
		_, _ = w.Write([]byte(`[]`))
	})

	if _, err := c.Range(context.Background(), "6404110000", "6404119999"); err != nil {
		t.Fatal(err)
	}
}

func TestProxyRewriter(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Query().Get("url")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	fetcher := fetch.NewClient(nil, fetch.Options{MaxAttempts: 1, BreakerThreshold: 10}, nil)
	c := New(fetcher, Config{
		BaseURL: "https://upstream.example/reststop",
		Timeout: 5 * time.Second,
		Rewrite: ProxyRewriter(srv.URL),
	}, nil)

	if _, err := c.Search(context.Background(), "laptop"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(seen, "https://upstream.example/reststop/search") {
		t.Errorf("proxied url = %q", seen)
	}
}
