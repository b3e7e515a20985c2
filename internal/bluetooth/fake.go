package bluetooth

// FakeSource is a test double that returns scripted samples per device
// address.
type FakeSource struct {
	// Samples maps a device address to the sequence of readings to
	// return. Each call to Sample consumes the next entry; once
	// exhausted, the last entry repeats.
	Samples map[string][]Sample

	// Calls counts Sample invocations per address.
	Calls map[string]int

	// Closed tracks if Close was called.
	Closed bool

	index map[string]int
}

// Sample represents a single scripted reading. OK=false models a failed
// query (device unreachable or timeout).
type Sample struct {
	RSSI int
	OK   bool
}

// NewFakeSource creates a FakeSource with the given per-address scripts.
func NewFakeSource(samples map[string][]Sample) *FakeSource {
	return &FakeSource{
		Samples: samples,
		Calls:   make(map[string]int),
		index:   make(map[string]int),
	}
}

// Sample returns the next scripted reading for the address. Unknown
// addresses always report no reading.
func (f *FakeSource) Sample(address string) (int, bool) {
	f.Calls[address]++
	script := f.Samples[address]
	if len(script) == 0 {
		return 0, false
	}
	i := f.index[address]
	if i < len(script)-1 {
		f.index[address] = i + 1
	}
	s := script[i]
	return s.RSSI, s.OK
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds every script to the beginning.
func (f *FakeSource) Reset() {
	f.index = make(map[string]int)
	f.Calls = make(map[string]int)
	f.Closed = false
}
