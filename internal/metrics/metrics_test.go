package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
	"github.com/JakeFAU/filament-catalog/internal/notify/memory"
)

func TestHostLabel(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HostLabel(tc.input); got != tc.expected {
				t.Errorf("HostLabel(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if httpRequestsTotal == nil || httpRequestDurationSeconds == nil ||
		pacerDelaySeconds == nil || notificationsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObservePacerDelay("filamentcolors.xyz", 250*time.Millisecond)
	if val := testutil.CollectAndCount(pacerDelaySeconds); val != 1 {
		t.Errorf("Expected one pacer delay series, got %d", val)
	}
}

type failingNotifier struct{}

func (failingNotifier) Publish(context.Context, catalog.MaterialRecord) error {
	return errors.New("broker down")
}

func (failingNotifier) Close() error { return nil }

func TestInstrumentNotifier(t *testing.T) {
	pub := memory.New()
	n := InstrumentNotifier(pub)
	okBefore := testutil.ToFloat64(notificationsTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(notificationsTotal.WithLabelValues("error"))

	if err := n.Publish(context.Background(), catalog.MaterialRecord{ID: 1, Key: "k"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(pub.Messages()) != 1 {
		t.Fatalf("expected message to reach the wrapped notifier")
	}
	if err := InstrumentNotifier(failingNotifier{}).Publish(context.Background(), catalog.MaterialRecord{}); err == nil {
		t.Fatal("expected publish error to propagate")
	}
	if got := testutil.ToFloat64(notificationsTotal.WithLabelValues("ok")) - okBefore; got != 1 {
		t.Errorf("expected one ok publish, got %f", got)
	}
	if got := testutil.ToFloat64(notificationsTotal.WithLabelValues("error")) - errBefore; got != 1 {
		t.Errorf("expected one failed publish, got %f", got)
	}
	if err := n.Close(); err != nil || !pub.Closed() {
		t.Fatalf("expected Close to reach the wrapped notifier, err=%v", err)
	}
}

// Fuzz test for HostLabel.
func FuzzHostLabel(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := HostLabel(orig)
		if sanitized == "" {
			t.Errorf("HostLabel(%q) returned an empty string", orig)
		}
	})
}
