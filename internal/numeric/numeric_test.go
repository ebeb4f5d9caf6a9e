package numeric

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(12, 1, 10); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := Clamp(-3, 1, 10); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := Clamp(0.5, 0.0, 1.0); got != 0.5 {
		t.Fatalf("expected 0.5, got %f", got)
	}
}

func TestParseFloatFailsClosed(t *testing.T) {
	for _, raw := range []string{"", "abc", "NaN", "+Inf", "-inf", "1e400"} {
		if _, err := ParseFloat(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	v, err := ParseFloat(" 37.5 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v != 37.5 {
		t.Fatalf("expected 37.5, got %f", v)
	}
}
