package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type stubCache struct {
	items map[string][]byte
}

func newStubCache() *stubCache {
	return &stubCache{items: make(map[string][]byte)}
}

func (c *stubCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, ok := c.items[key]
	return b, ok, nil
}

func (c *stubCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.items[key] = value
	return nil
}

func TestResolvePublicAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","country":"Nigeria","regionName":"Lagos","city":"Ikeja"}`))
	}))
	defer srv.Close()

	geo := NewGeoResolver(srv.URL+"/", time.Second, nil, time.Hour, 0)
	loc := geo.Resolve(context.Background(), "203.0.113.10")
	if loc == nil {
		t.Fatal("expected a location for a public address")
	}
	if loc.Country != "Nigeria" || loc.Region != "Lagos" || loc.City != "Ikeja" {
		t.Errorf("unexpected location %+v", loc)
	}
}

func TestResolveSkipsNonPublicAddresses(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"status":"success","country":"X","regionName":"Y","city":"Z"}`))
	}))
	defer srv.Close()

	geo := NewGeoResolver(srv.URL+"/", time.Second, nil, time.Hour, 0)
	for _, ip := range []string{"127.0.0.1", "10.0.0.4", "192.168.1.1", "0.0.0.0", "::1", "not-an-ip", ""} {
		if loc := geo.Resolve(context.Background(), ip); loc != nil {
			t.Errorf("Resolve(%q) = %+v, expected nil", ip, loc)
		}
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("provider was called %d times for non-public addresses", calls)
	}
}

func TestResolveUnresolvableAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail","message":"reserved range"}`))
	}))
	defer srv.Close()

	geo := NewGeoResolver(srv.URL+"/", time.Second, nil, time.Hour, 0)
	if loc := geo.Resolve(context.Background(), "203.0.113.11"); loc != nil {
		t.Errorf("expected nil for unresolvable address, got %+v", loc)
	}
}

func TestResolveProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	geo := NewGeoResolver(srv.URL+"/", time.Second, nil, time.Hour, 0)
	if loc := geo.Resolve(context.Background(), "203.0.113.12"); loc != nil {
		t.Errorf("expected nil on provider error, got %+v", loc)
	}
}

func TestResolveUsesCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"status":"success","country":"Ghana","regionName":"Greater Accra","city":"Accra"}`))
	}))
	defer srv.Close()

	geo := NewGeoResolver(srv.URL+"/", time.Second, newStubCache(), time.Hour, 0)
	for i := 0; i < 3; i++ {
		loc := geo.Resolve(context.Background(), "203.0.113.13")
		if loc == nil || loc.City != "Accra" {
			t.Fatalf("resolve %d returned %+v", i, loc)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("provider called %d times, expected 1 (cached thereafter)", got)
	}
}

func TestResolveRateLimited(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"status":"success","country":"Kenya","regionName":"Nairobi","city":"Nairobi"}`))
	}))
	defer srv.Close()

	// Burst of 2, then the limiter holds further lookups until tokens refill.
	geo := NewGeoResolver(srv.URL+"/", time.Second, nil, time.Hour, 2)
	resolved := 0
	for i := 0; i < 5; i++ {
		if geo.Resolve(context.Background(), "203.0.113.14") != nil {
			resolved++
		}
	}
	if resolved > 2 {
		t.Errorf("%d lookups passed the limiter, expected at most 2", resolved)
	}
	if atomic.LoadInt32(&calls) > 2 {
		t.Errorf("provider called %d times, expected at most 2", calls)
	}
}
