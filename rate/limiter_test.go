package rate

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	burst := 1

	interval := 20 * time.Millisecond
	lim := Every(interval)
	r := NewLimiter(burst, time.Hour, lim)
	defer r.Stop()

	tooshort := 1 * time.Millisecond

	client := "addr:127.0.0.1"
	expected := []bool{true, false, true, true, false, false}
	waits := []time.Duration{tooshort, interval, interval, tooshort, tooshort, tooshort}
	for i, exp := range expected {
		if got := r.Check(client); got != exp {
			t.Fatalf("iteration %d: expected %v, but got %v", i, exp, got)
		}
		time.Sleep(waits[i])
	}
}

func TestLimiterPerClient(t *testing.T) {
	r := NewLimiter(1, time.Hour, Every(time.Hour))
	defer r.Stop()

	if !r.Check("user:1") {
		t.Fatal("first request of user:1 must pass")
	}
	if r.Check("user:1") {
		t.Fatal("second request of user:1 must be limited")
	}
	if !r.Check("user:2") {
		t.Fatal("user:2 has its own bucket")
	}
}

func TestLimiterWithBurst(t *testing.T) {
	client := "user:42"
	burst := 10

	interval := 100 * time.Millisecond
	lim := Every(interval)

	tooshort := 10 * time.Millisecond

	shortest := 1 * time.Millisecond

	expected := []bool{true, true, true, true, true, true, true, true, true, true}
	waits := []time.Duration{0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	expected = append(expected, false, true, true, false, false, false)
	waits = append(waits, interval, interval, tooshort, tooshort, shortest, shortest)

	rr := NewLimiter(burst, time.Hour, lim)
	defer rr.Stop()
	for i, exp := range expected {
		if got := rr.Check(client); got != exp {
			t.Fatalf("iteration %d: expected %v, but got %v", i, exp, got)
		}
		time.Sleep(waits[i])
	}
}
