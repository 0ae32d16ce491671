package printer_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"printlapse/internal/config"
	"printlapse/internal/printer"
	"printlapse/internal/services"
)

func newConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.Printer.URL = url
	cfg.Printer.APIKey = "secret"
	return &cfg
}

func TestFetchStatusPrusaLinkShape(t *testing.T) {
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"printer":{"state":"PRINTING","temp_nozzle":215},"job":{"id":7,"display_name":"benchy.gcode","progress":42}}`))
	}))
	defer srv.Close()

	snap, err := printer.NewClient(newConfig(srv.URL)).FetchStatus(context.Background())
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if gotKey != "secret" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
	if gotPath != "/api/v1/status" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if snap.State != "PRINTING" || snap.JobID != "7" || snap.JobLabel != "benchy.gcode" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !snap.HasJob() {
		t.Fatal("expected job")
	}
}

func TestFetchStatusIdleWithoutJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"printer":{"state":"IDLE"}}`))
	}))
	defer srv.Close()

	snap, err := printer.NewClient(newConfig(srv.URL)).FetchStatus(context.Background())
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if snap.State != "IDLE" || snap.HasJob() {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestFetchStatusCustomFieldPaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"state":{"text":"Printing"},"jobs":[{"uuid":"a1b2","file":{"name":"cube.gcode"}}]}`))
	}))
	defer srv.Close()

	cfg := newConfig(srv.URL)
	cfg.Printer.StatusPath = "/api/job"
	cfg.Printer.StateField = "state.text"
	cfg.Printer.JobIDField = "jobs.0.uuid"
	cfg.Printer.JobLabelField = "jobs.0.file.name"

	snap, err := printer.NewClient(cfg).FetchStatus(context.Background())
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if snap.State != "Printing" || snap.JobID != "a1b2" || snap.JobLabel != "cube.gcode" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestFetchStatusFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		marker  error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "busy", http.StatusServiceUnavailable)
			},
			marker: services.ErrTransient,
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad key", http.StatusUnauthorized)
			},
			marker: services.ErrTransient,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"printer":`))
			},
			marker: services.ErrValidation,
		},
		{
			name: "missing state",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"job":{"id":1}}`))
			},
			marker: services.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := printer.NewClient(newConfig(srv.URL)).FetchStatus(context.Background())
			if !errors.Is(err, printer.ErrStatusFetch) {
				t.Fatalf("expected ErrStatusFetch, got %v", err)
			}
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected marker %v, got %v", tt.marker, err)
			}
		})
	}
}

func TestFetchStatusTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := printer.NewClient(newConfig(srv.URL)).FetchStatus(ctx)
	if !errors.Is(err, printer.ErrStatusFetch) {
		t.Fatalf("expected ErrStatusFetch, got %v", err)
	}
}

func TestFetchStatusUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := printer.NewClient(newConfig(url)).FetchStatus(context.Background())
	if !errors.Is(err, printer.ErrStatusFetch) || !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient fetch error, got %v", err)
	}
}
