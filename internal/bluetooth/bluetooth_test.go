package bluetooth

import "testing"

func TestParseHcitoolRSSI(t *testing.T) {
	tests := []struct {
		name string
		out  string
		rssi int
		ok   bool
	}{
		{"typical", "RSSI return value: -7\n", -7, true},
		{"positive", "RSSI return value: 4\n", 4, true},
		{"no newline", "RSSI return value: -63", -63, true},
		{"leading noise", "some banner\nRSSI return value: -12\n", -12, true},
		{"trailing lines", "RSSI return value: -12\nextra\n", -12, true},
		{"not connected", "Not connected.\n", 0, false},
		{"empty", "", 0, false},
		{"garbage value", "RSSI return value: abc\n", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rssi, ok := parseHcitoolRSSI(tt.out)
			if ok != tt.ok {
				t.Fatalf("ok: got %v, want %v", ok, tt.ok)
			}
			if ok && rssi != tt.rssi {
				t.Errorf("rssi: got %d, want %d", rssi, tt.rssi)
			}
		})
	}
}

func TestDeviceObjectPath(t *testing.T) {
	got := deviceObjectPath("aa:bb:cc:dd:ee:ff")
	want := "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFakeSourceScript(t *testing.T) {
	f := NewFakeSource(map[string][]Sample{
		"AA:BB:CC:DD:EE:FF": {
			{RSSI: -5, OK: true},
			{RSSI: -20, OK: true},
			{OK: false},
		},
	})

	wantRSSI := []int{-5, -20}
	for i, want := range wantRSSI {
		rssi, ok := f.Sample("AA:BB:CC:DD:EE:FF")
		if !ok || rssi != want {
			t.Errorf("call %d: got (%d, %v), want (%d, true)", i, rssi, ok, want)
		}
	}

	// Exhausted scripts repeat the last entry.
	for i := 0; i < 3; i++ {
		if _, ok := f.Sample("AA:BB:CC:DD:EE:FF"); ok {
			t.Errorf("call %d after exhaustion: expected no reading", i)
		}
	}

	if f.Calls["AA:BB:CC:DD:EE:FF"] != 5 {
		t.Errorf("expected 5 calls recorded, got %d", f.Calls["AA:BB:CC:DD:EE:FF"])
	}
}

func TestFakeSourceUnknownAddress(t *testing.T) {
	f := NewFakeSource(nil)
	if _, ok := f.Sample("00:00:00:00:00:00"); ok {
		t.Error("unknown address must report no reading")
	}
}

func TestFakeSourceClose(t *testing.T) {
	f := NewFakeSource(nil)
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !f.Closed {
		t.Error("Closed not set")
	}
}
