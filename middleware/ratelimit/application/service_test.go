package application

import (
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"
)

type fakeAdmitter struct {
	allow bool
	calls int
}

func (f *fakeAdmitter) Allow(domain.Key) bool {
	f.calls++
	return f.allow
}

type hintingAdmitter struct {
	fakeAdmitter
	hint time.Duration
}

func (h *hintingAdmitter) RetryAfter(domain.Key) time.Duration { return h.hint }

type windowAdmitter struct {
	fakeAdmitter
	window time.Duration
}

func (w *windowAdmitter) MaxRequests() int { return 1 }
func (w *windowAdmitter) Window() time.Duration { return w.window }

func TestService_Decide_AllowsWhenNoAdmitter(t *testing.T) {
	svc := Service{}
	dec := svc.Decide("k")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_AllowsWhenAdmitterAllows(t *testing.T) {
	adm := &fakeAdmitter{allow: true}
	svc := Service{Admitter: adm, RetryAfter: 5 * time.Second}
	dec := svc.Decide("k")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if adm.calls != 1 {
		t.Fatalf("expected Allow to be called once, got %d", adm.calls)
	}
}

func TestService_Decide_BlocksWithRetryAfterDefault(t *testing.T) {
	svc := Service{Admitter: &fakeAdmitter{allow: false}}
	dec := svc.Decide("k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 1*time.Second {
		t.Fatalf("expected default RetryAfter=1s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_BlocksWithConfiguredRetryAfter(t *testing.T) {
	svc := Service{Admitter: &hintingAdmitter{hint: time.Minute}, RetryAfter: 2500 * time.Millisecond}
	dec := svc.Decide("k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 2500*time.Millisecond {
		t.Fatalf("expected RetryAfter=2.5s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_UsesAdmitterHint(t *testing.T) {
	svc := Service{Admitter: &hintingAdmitter{hint: 7 * time.Second}}
	dec := svc.Decide("k")
	if dec.RetryAfter != 7*time.Second {
		t.Fatalf("expected RetryAfter from hint, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_FallsBackToWindow(t *testing.T) {
	svc := Service{Admitter: &windowAdmitter{window: 30 * time.Second}}
	dec := svc.Decide("k")
	if dec.RetryAfter != 30*time.Second {
		t.Fatalf("expected RetryAfter=window, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_WithSlidingWindow(t *testing.T) {
	w, err := infra.NewSlidingWindow(2, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc := Service{Admitter: w}

	for i := 0; i < 2; i++ {
		if dec := svc.Decide("k"); !dec.Allowed {
			t.Fatalf("expected call %d allowed", i)
		}
	}
	dec := svc.Decide("k")
	if dec.Allowed {
		t.Fatalf("expected third call blocked")
	}
	if dec.RetryAfter <= 0 || dec.RetryAfter > time.Hour {
		t.Fatalf("expected RetryAfter within the window, got %s", dec.RetryAfter)
	}
}
