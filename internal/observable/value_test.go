package observable

import (
	"testing"
	"time"
)

func TestValue_GetSet(t *testing.T) {
	v := New(3)
	if v.Get() != 3 {
		t.Fatalf("Expected initial 3, got %d", v.Get())
	}
	v.Set(7)
	if v.Get() != 7 {
		t.Errorf("Expected 7, got %d", v.Get())
	}
}

func TestValue_Subscribe(t *testing.T) {
	v := New(false)
	ch, cancel := v.Subscribe()
	defer cancel()

	if got := <-ch; got != false {
		t.Fatalf("Expected primed value false, got %v", got)
	}

	v.Set(true)
	select {
	case got := <-ch:
		if !got {
			t.Errorf("Expected true, got %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for update")
	}
}

func TestValue_SlowSubscriberSeesLatest(t *testing.T) {
	v := New(0)
	ch, cancel := v.Subscribe()
	defer cancel()
	<-ch

	for i := 1; i <= 100; i++ {
		v.Set(i)
	}

	if got := <-ch; got != 100 {
		t.Errorf("Expected latest value 100, got %d", got)
	}
	select {
	case got := <-ch:
		t.Errorf("Expected no further values, got %d", got)
	default:
	}
}

func TestValue_Update(t *testing.T) {
	v := New([]string{"a"})
	ch, cancel := v.Subscribe()
	defer cancel()
	<-ch

	got := v.Update(func(cur []string) []string {
		return append(cur, "b")
	})
	if len(got) != 2 {
		t.Fatalf("Expected 2 items, got %v", got)
	}
	if latest := <-ch; len(latest) != 2 || latest[1] != "b" {
		t.Errorf("Subscriber saw %v", latest)
	}
}

func TestValue_Cancel(t *testing.T) {
	v := New(1)
	ch, cancel := v.Subscribe()
	<-ch
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("Expected channel to be closed")
	}
	v.Set(2)
}
