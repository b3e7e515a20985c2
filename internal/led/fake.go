package led

// FakeLED is a test double that records LED states.
type FakeLED struct {
	// States contains every value passed to Set, in order.
	States []bool

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeLED creates a FakeLED.
func NewFakeLED() *FakeLED {
	return &FakeLED{}
}

// Set records the state.
func (f *FakeLED) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.States = append(f.States, on)
	return nil
}

// Close marks the LED as closed.
func (f *FakeLED) Close() error {
	f.Closed = true
	return nil
}

// Last returns the most recent state, or false if Set was never called.
func (f *FakeLED) Last() bool {
	if len(f.States) == 0 {
		return false
	}
	return f.States[len(f.States)-1]
}
