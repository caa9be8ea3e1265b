package scanner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scholarflow/internal/domain/document"
	"scholarflow/internal/errs"
)

func TestAPIScan(t *testing.T) {
	const cleanHash = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" // "hello"
	const evilHash = "8f434346648f6b96df89dda901c5176b10a6d83961dd3c1ac88b59b2dc327aa4"  // "hi"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-apikey") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch strings.TrimPrefix(r.URL.Path, "/api/v3/files/") {
		case cleanHash:
			_, _ = w.Write([]byte(`{"data":{"attributes":{"last_analysis_stats":{"malicious":0,"harmless":60}}}}`))
		case evilHash:
			_, _ = w.Write([]byte(`{"data":{"attributes":{"last_analysis_stats":{"malicious":12},"popular_threat_classification":{"suggested_threat_label":"trojan.emotet"}}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	api, err := NewAPI(APIOptions{BaseURL: srv.URL + "/api/v3/", APIKey: "k", RequestsPerSecond: 1000})
	if err != nil {
		t.Fatalf("NewAPI() error = %v", err)
	}
	ctx := context.Background()

	result, err := api.Scan(ctx, writeSample(t, "hello"), "a.pdf")
	if err != nil || !result.Clean {
		t.Fatalf("Scan(clean) = %+v err=%v", result, err)
	}

	result, err = api.Scan(ctx, writeSample(t, "hi"), "b.pdf")
	if err != nil {
		t.Fatalf("Scan(malicious) error = %v", err)
	}
	if result.Clean || result.ThreatName != "trojan.emotet" {
		t.Fatalf("Scan(malicious) = %+v", result)
	}

	_, err = api.Scan(ctx, writeSample(t, "never seen"), "c.pdf")
	if !errors.Is(err, ErrNoVerdict) || !errs.IsPermanent(err) {
		t.Fatalf("Scan(unknown) error = %v", err)
	}
}

func TestAPIOutageIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	api, err := NewAPI(APIOptions{BaseURL: srv.URL, RequestsPerSecond: 1000})
	if err != nil {
		t.Fatalf("NewAPI() error = %v", err)
	}
	_, err = api.Scan(context.Background(), writeSample(t, "hello"), "a.pdf")
	if !errors.Is(err, document.ErrScannerUnavailable) {
		t.Fatalf("Scan() error = %v", err)
	}

	srv.Close()
	_, err = api.Scan(context.Background(), writeSample(t, "hello"), "a.pdf")
	if !errors.Is(err, document.ErrScannerUnavailable) {
		t.Fatalf("Scan(closed server) error = %v", err)
	}
}
