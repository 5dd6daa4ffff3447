package ratelimit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiter_Wait(t *testing.T) {
	var delays atomic.Int32
	l := New(Config{
		Interval: 100 * time.Millisecond,
		OnDelay: func(host string, _ time.Duration) {
			if host != "test.com" {
				t.Errorf("unexpected host %q", host)
			}
			delays.Add(1)
		},
	})
	ctx := context.Background()

	// Burst 1 means the first token is available immediately.
	if err := l.Wait(ctx, "https://test.com/a"); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := l.Wait(ctx, "https://test.com/b"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
	if delays.Load() != 1 {
		t.Errorf("expected one delay report, got %d", delays.Load())
	}
}

func TestLimiter_DifferentHosts(t *testing.T) {
	l := New(Config{Interval: time.Second})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.com/1"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "https://b.com/1"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur > 100*time.Millisecond {
		t.Errorf("hosts should not share a bucket, waited %v", dur)
	}
	if l.Hosts() != 2 {
		t.Errorf("expected 2 hosts, got %d", l.Hosts())
	}
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := New(Config{Interval: time.Hour})
	if err := l.Wait(context.Background(), "https://a.com"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := l.Wait(ctx, "https://a.com"); err == nil {
		t.Fatal("expected error when context expires before a token is available")
	}
	if dur := time.Since(start); dur > time.Second {
		t.Errorf("wait should give up with the context, took %v", dur)
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(Config{Interval: -1})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Wait(ctx, "https://a.com"); err != nil {
			t.Fatal(err)
		}
	}
	if dur := time.Since(start); dur > 50*time.Millisecond {
		t.Errorf("disabled limiter should not block, took %v", dur)
	}
}

func TestHostOf(t *testing.T) {
	cases := map[string]string{
		"https://Example.com:8080/x": "Example.com",
		"not a url":                  "unknown",
		"":                           "unknown",
	}
	for in, want := range cases {
		if got := hostOf(in); got != want {
			t.Errorf("hostOf(%q) = %q, want %q", in, got, want)
		}
	}
}
