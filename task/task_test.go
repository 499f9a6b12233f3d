package task

import "testing"

func TestPercentageSaturatesAtOne(t *testing.T) {
	total := int64(10)
	p := Progress{Current: 25, Total: &total}
	if got := p.Percentage(); got != 1.0 {
		t.Fatalf("want 1.0, got %v", got)
	}
}

func TestPercentageZeroTotalIsComplete(t *testing.T) {
	total := int64(0)
	p := Progress{Current: 0, Total: &total}
	if got := p.Percentage(); got != 1.0 {
		t.Fatalf("want 1.0, got %v", got)
	}
}

func TestPercentageNilTotalIsIndeterminate(t *testing.T) {
	p := Progress{Current: 5}
	if got := p.Percentage(); got != 0 {
		t.Fatalf("want 0, got %v", got)
	}
}

func TestPercentagePartial(t *testing.T) {
	total := int64(4)
	p := Progress{Current: 1, Total: &total}
	if got := p.Percentage(); got != 0.25 {
		t.Fatalf("want 0.25, got %v", got)
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	nonTerminal := []Status{StatusPending, StatusRunning}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}
