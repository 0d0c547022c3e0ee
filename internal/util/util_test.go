package util

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRateLimiterNew(t *testing.T) {
	rl := NewRateLimiter(60)
	if rl == nil {
		t.Fatal("NewRateLimiter returned nil")
	}
}

func TestRateLimiterContextCanceled(t *testing.T) {
	rl := NewRateLimiter(1)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait on canceled context = %v, want context.Canceled", err)
	}
}

func TestNewLoggerLevelFallback(t *testing.T) {
	log := NewLogger("chatty")
	if !log.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("unknown level should enable info")
	}
	if log.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("unknown level should not enable debug")
	}
	if !NewLogger("DEBUG").Enabled(context.Background(), slog.LevelDebug) {
		t.Error("level names should parse case-insensitively")
	}
}

func TestTradingCalendarSession(t *testing.T) {
	cal := NewTradingCalendar()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// Wednesday 2024-06-05.
	midSession := time.Date(2024, 6, 5, 12, 0, 0, 0, loc)
	if !cal.IsMarketOpen(midSession) {
		t.Error("market should be open mid-session on a weekday")
	}
	preOpen := time.Date(2024, 6, 5, 9, 0, 0, 0, loc)
	if cal.IsMarketOpen(preOpen) {
		t.Error("market should be closed before 9:30")
	}
	afterClose := time.Date(2024, 6, 5, 16, 0, 0, 0, loc)
	if cal.IsMarketOpen(afterClose) {
		t.Error("market should be closed at 16:00")
	}

	// Saturday.
	saturday := time.Date(2024, 6, 8, 12, 0, 0, 0, loc)
	if cal.IsMarketOpen(saturday) {
		t.Error("market should be closed on Saturday")
	}

	nextOpen := cal.NextOpen(saturday)
	wantOpen := time.Date(2024, 6, 10, 9, 30, 0, 0, loc)
	if !nextOpen.Equal(wantOpen) {
		t.Errorf("NextOpen(saturday) = %v, want %v", nextOpen, wantOpen)
	}

	nextClose := cal.NextClose(midSession)
	wantClose := time.Date(2024, 6, 5, 16, 0, 0, 0, loc)
	if !nextClose.Equal(wantClose) {
		t.Errorf("NextClose(mid-session) = %v, want %v", nextClose, wantClose)
	}
}
