package ratelimit

import "testing"

func newTestLimiter(t *testing.T, writeTier, generalTier int) *Limiter {
	t.Helper()
	l, err := New(Config{WriteTier: writeTier, GeneralTier: generalTier})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAllow_PermitsUpToLimit(t *testing.T) {
	l := newTestLimiter(t, 3, 100)

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(TierWrite, "caller-a")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !ok {
			t.Fatalf("request %d: expected allowed", i+1)
		}
	}

	ok, err := l.Allow(TierWrite, "caller-a")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Fatal("4th request: expected denied")
	}
}

func TestAllow_TiersAreIndependent(t *testing.T) {
	l := newTestLimiter(t, 1, 1)

	if ok, err := l.Allow(TierWrite, "caller-a"); err != nil || !ok {
		t.Fatalf("write tier first request: ok=%v err=%v", ok, err)
	}
	if ok, err := l.Allow(TierGeneral, "caller-a"); err != nil || !ok {
		t.Fatalf("general tier first request: ok=%v err=%v", ok, err)
	}
	if ok, _ := l.Allow(TierWrite, "caller-a"); ok {
		t.Fatal("write tier second request: expected denied")
	}
}

func TestAllow_CallersAreIndependent(t *testing.T) {
	l := newTestLimiter(t, 1, 100)

	if ok, err := l.Allow(TierWrite, "caller-a"); err != nil || !ok {
		t.Fatalf("caller-a first request: ok=%v err=%v", ok, err)
	}
	if ok, err := l.Allow(TierWrite, "caller-b"); err != nil || !ok {
		t.Fatalf("caller-b first request: ok=%v err=%v", ok, err)
	}
	if ok, _ := l.Allow(TierWrite, "caller-a"); ok {
		t.Fatal("caller-a second request: expected denied")
	}
}
