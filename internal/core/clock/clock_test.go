package clock

import (
	"testing"
	"time"
)

func TestAdvanceScales(t *testing.T) {
	c := New()
	if got := c.Advance(100 * time.Millisecond); got != 100*time.Millisecond {
		t.Errorf("Expected 100ms step, got %s", got)
	}
	c.Set(2)
	c.Advance(100 * time.Millisecond)
	if c.Now() != 300*time.Millisecond {
		t.Errorf("Expected 300ms, got %s", c.Now())
	}
	if got := c.Advance(-time.Second); got != 0 {
		t.Errorf("Expected negative dt ignored, got %s", got)
	}
}

func TestFreezeAndThaw(t *testing.T) {
	c := New()
	c.Set(1.5)
	c.Push(0.5)
	c.Freeze()
	if !c.Frozen() {
		t.Fatal("Expected frozen")
	}
	c.Advance(time.Second)
	if c.Now() != 0 {
		t.Errorf("Expected no time while frozen, got %s", c.Now())
	}
	c.Thaw()
	if c.Scale() != 1.5 {
		t.Errorf("Expected base scale 1.5 after thaw, got %v", c.Scale())
	}
	if c.Pop() {
		t.Error("Expected base scale never popped")
	}
}

func TestPushPopAndReset(t *testing.T) {
	c := New()
	c.Push(-3)
	if c.Scale() != 0 {
		t.Errorf("Expected negative scale clamped to 0, got %v", c.Scale())
	}
	if !c.Pop() || c.Scale() != 1 {
		t.Errorf("Expected scale 1 after pop, got %v", c.Scale())
	}
	c.Set(2)
	c.Advance(time.Second)
	c.Reset()
	if c.Now() != 0 || c.Scale() != 1 {
		t.Errorf("Expected reset to 0 at 1x, got %s at %v", c.Now(), c.Scale())
	}
}
