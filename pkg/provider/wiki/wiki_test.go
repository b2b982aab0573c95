package wiki

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLookupSummaryAndImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page/summary/Napoleon_Bonaparte" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"title": "Napoleon Bonaparte",
			"extract": "French military commander.",
			"pageid": 69880,
			"thumbnail": {"source": "https://img.example/napoleon.jpg"}
		}`))
	}))
	defer srv.Close()

	c := NewClient(ClientParams{BaseURL: srv.URL})
	got, err := c.Lookup(context.Background(), "Napoleon Bonaparte", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary != "French military commander." {
		t.Fatalf("summary = %q", got.Summary)
	}
	if got.ImageURL != "https://img.example/napoleon.jpg" {
		t.Fatalf("image = %q", got.ImageURL)
	}
	if got.ExternalRef != "69880" {
		t.Fatalf("external ref = %q", got.ExternalRef)
	}
}

func TestLookupMissingPageIsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(ClientParams{BaseURL: srv.URL})
	got, err := c.Lookup(context.Background(), "No Such Page", "")
	if err != nil {
		t.Fatalf("missing page should not error: %v", err)
	}
	if got.Summary != "" || got.ImageURL != "" || got.ExternalRef != "" {
		t.Fatalf("expected empty enrichment, got %+v", got)
	}
}

func TestLookupServerErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientParams{BaseURL: srv.URL})
	if _, err := c.Lookup(context.Background(), "Anything", ""); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
