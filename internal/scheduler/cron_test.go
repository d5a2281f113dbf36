package scheduler

import (
	"testing"
	"time"
)

func TestCalculateNextDue(t *testing.T) {
	from := time.Date(2025, 6, 1, 10, 7, 30, 0, time.UTC)

	next, err := CalculateNextDue("*/15 * * * *", from)
	if err != nil {
		t.Fatalf("CalculateNextDue: %v", err)
	}

	want := time.Date(2025, 6, 1, 10, 15, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestCalculateNextDueDaily(t *testing.T) {
	from := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue("0 3 * * *", from)
	if err != nil {
		t.Fatalf("CalculateNextDue: %v", err)
	}

	want := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestCalculateNextDueInvalid(t *testing.T) {
	if _, err := CalculateNextDue("61 * * * *", time.Now()); err == nil {
		t.Error("expected error for out-of-range minute")
	}
	if _, err := CalculateNextDue("", time.Now()); err == nil {
		t.Error("expected error for empty expression")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("*/5 * * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("every 5 minutes"); err == nil {
		t.Error("expected error for free-form expression")
	}
}
