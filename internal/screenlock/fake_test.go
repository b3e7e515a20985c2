package screenlock

import (
	"errors"
	"testing"
)

func TestFakeControllerLockUnlock(t *testing.T) {
	f := NewFakeController()

	locked, err := f.IsLocked()
	if err != nil || locked {
		t.Fatalf("new controller: got (%v, %v), want (false, nil)", locked, err)
	}

	if err := f.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if locked, _ := f.IsLocked(); !locked {
		t.Error("expected locked after Lock")
	}

	// Idempotence: locking again is harmless.
	if err := f.Lock(); err != nil {
		t.Fatalf("second Lock: %v", err)
	}
	if f.LockCalls != 2 {
		t.Errorf("expected 2 lock calls, got %d", f.LockCalls)
	}

	if err := f.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if locked, _ := f.IsLocked(); locked {
		t.Error("expected unlocked after Unlock")
	}

	// Unlocking an unlocked screen stays unlocked.
	if err := f.Unlock(); err != nil {
		t.Fatalf("second Unlock: %v", err)
	}
	if locked, _ := f.IsLocked(); locked {
		t.Error("expected still unlocked")
	}
}

func TestFakeControllerErrors(t *testing.T) {
	f := NewFakeController()
	wantErr := errors.New("session gone")

	f.LockErr = wantErr
	if err := f.Lock(); !errors.Is(err, wantErr) {
		t.Errorf("Lock error: got %v, want %v", err, wantErr)
	}
	if f.Locked {
		t.Error("failed Lock must not change state")
	}

	f.StatusErr = wantErr
	if _, err := f.IsLocked(); !errors.Is(err, wantErr) {
		t.Errorf("IsLocked error: got %v, want %v", err, wantErr)
	}

	f.Reset()
	if f.LockErr != nil || f.StatusErr != nil || f.LockCalls != 0 {
		t.Error("Reset did not clear state")
	}
}
