package screenlock

// FakeController is a test double that records lock operations.
type FakeController struct {
	// Locked is the current screensaver state.
	Locked bool

	// LockErr / UnlockErr / StatusErr, if set, are returned by the
	// corresponding call.
	LockErr   error
	UnlockErr error
	StatusErr error

	// Call counters for assertions.
	LockCalls   int
	UnlockCalls int
	StatusCalls int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeController creates an unlocked FakeController.
func NewFakeController() *FakeController {
	return &FakeController{}
}

// IsLocked returns the scripted state.
func (f *FakeController) IsLocked() (bool, error) {
	f.StatusCalls++
	if f.StatusErr != nil {
		return false, f.StatusErr
	}
	return f.Locked, nil
}

// Lock sets the state to locked.
func (f *FakeController) Lock() error {
	f.LockCalls++
	if f.LockErr != nil {
		return f.LockErr
	}
	f.Locked = true
	return nil
}

// Unlock clears the locked state.
func (f *FakeController) Unlock() error {
	f.UnlockCalls++
	if f.UnlockErr != nil {
		return f.UnlockErr
	}
	f.Locked = false
	return nil
}

// Close marks the controller as closed.
func (f *FakeController) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded calls and errors.
func (f *FakeController) Reset() {
	*f = FakeController{}
}
