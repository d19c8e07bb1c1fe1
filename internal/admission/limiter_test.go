package admission

import (
	"testing"
	"time"
)

func TestAllowWithinBudget(t *testing.T) {
	l := NewLimiter(3, time.Minute)
	defer l.Close()

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("conn-1")
		if !ok {
			t.Fatalf("request %d rejected within budget", i+1)
		}
	}
	ok, retryAfter := l.Allow("conn-1")
	if ok {
		t.Fatal("fourth request allowed, want rejection")
	}
	if retryAfter <= 0 {
		t.Fatalf("retryAfter = %v, want positive hint", retryAfter)
	}
}

func TestBudgetsArePerConnection(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	defer l.Close()

	if ok, _ := l.Allow("conn-a"); !ok {
		t.Fatal("first request on conn-a rejected")
	}
	if ok, _ := l.Allow("conn-a"); ok {
		t.Fatal("second request on conn-a allowed")
	}
	if ok, _ := l.Allow("conn-b"); !ok {
		t.Fatal("conn-b should have its own budget")
	}
}
