package session

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestCountdownStepsDownToZero(t *testing.T) {
	var mu sync.Mutex
	var got []int

	cd := StartCountdown(3, 2*time.Millisecond, func(remaining int) {
		mu.Lock()
		got = append(got, remaining)
		mu.Unlock()
	})

	select {
	case <-cd.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	if want := []int{2, 1, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
}

func TestCountdownStop(t *testing.T) {
	called := make(chan int, 8)
	cd := StartCountdown(3, time.Hour, func(remaining int) {
		called <- remaining
	})
	cd.Stop()

	select {
	case <-cd.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stopped countdown did not exit")
	}
	if len(called) != 0 {
		t.Errorf("step called %d times after Stop", len(called))
	}
}
