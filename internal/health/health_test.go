package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry(0)
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("empty registry should be healthy")
	}
	if len(statuses) != 0 {
		t.Fatalf("expected 0 statuses, got %d", len(statuses))
	}
}

func TestRegistryAllHealthy(t *testing.T) {
	r := NewRegistry(0)
	r.Register("config", func(_ context.Context) error { return nil })
	r.Register("metrics", func(_ context.Context) error { return nil })

	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("all-healthy registry should report healthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Name != "config" || statuses[1].Name != "metrics" {
		t.Fatalf("statuses out of registration order: %+v", statuses)
	}
}

func TestRegistryOneUnhealthy(t *testing.T) {
	r := NewRegistry(0)
	r.Register("config", func(_ context.Context) error { return nil })
	r.Register("convert_api", func(_ context.Context) error { return errors.New("connection refused") })

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Fatal("registry with unhealthy checker should report unhealthy")
	}
	if statuses[1].Detail != "connection refused" {
		t.Fatalf("expected detail 'connection refused', got %q", statuses[1].Detail)
	}
}

func TestRegistryOptionalFailureStaysHealthy(t *testing.T) {
	r := NewRegistry(0)
	r.RegisterOptional("credentials", func(_ context.Context) error { return errors.New("not configured") })

	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("optional failures should not make the registry unhealthy")
	}
	if statuses[0].Healthy || !statuses[0].Optional {
		t.Fatalf("unexpected status %+v", statuses[0])
	}
}

func TestRegistryTimeout(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	r.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Fatal("timed out check should be unhealthy")
	}
	if statuses[0].Detail != context.DeadlineExceeded.Error() {
		t.Fatalf("unexpected detail %q", statuses[0].Detail)
	}
}

func TestRegistryConcurrentRegisterAndCheck(t *testing.T) {
	r := NewRegistry(0)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register("checker", func(_ context.Context) error { return nil })
		}()
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.CheckAll(context.Background())
		}()
	}

	wg.Wait()
}
