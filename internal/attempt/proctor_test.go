package attempt

import "testing"

func TestVisibilityTerminatesOnThird(t *testing.T) {
	m := NewMonitor(false)

	for i := 1; i <= 2; i++ {
		v := m.Record(ViolationVisibility)
		if v.Terminate {
			t.Fatalf("visibility loss %d should only warn", i)
		}
		if v.Message == "" {
			t.Errorf("visibility loss %d should carry a warning message", i)
		}
		if v.Count != i {
			t.Errorf("visibility count = %d, want %d", v.Count, i)
		}
	}

	v := m.Record(ViolationVisibility)
	if !v.Terminate {
		t.Fatal("third visibility loss should terminate")
	}
	if v.Count != 3 || v.Threshold != VisibilityThreshold {
		t.Errorf("count/threshold = %d/%d, want 3/%d", v.Count, v.Threshold, VisibilityThreshold)
	}
}

func TestFullscreenTerminatesOnSecond(t *testing.T) {
	m := NewMonitor(false)

	v := m.Record(ViolationFullscreen)
	if v.Terminate {
		t.Fatal("first fullscreen exit should only warn")
	}
	v = m.Record(ViolationFullscreen)
	if !v.Terminate {
		t.Fatal("second fullscreen exit should terminate")
	}
}

func TestMobileExemptFromFullscreen(t *testing.T) {
	m := NewMonitor(true)

	for i := 0; i < 5; i++ {
		v := m.Record(ViolationFullscreen)
		if !v.Exempt {
			t.Fatalf("mobile fullscreen event %d should be exempt", i)
		}
		if v.Terminate {
			t.Fatalf("mobile fullscreen event %d must never terminate", i)
		}
	}
	if got := m.Snapshot().Fullscreen; got != 0 {
		t.Errorf("exempt events must not count, got %d", got)
	}
	if m.FullscreenRequired() {
		t.Error("fullscreen must not be required on mobile")
	}

	// Other rules still apply on mobile.
	m.Record(ViolationVisibility)
	m.Record(ViolationVisibility)
	if v := m.Record(ViolationVisibility); !v.Terminate {
		t.Error("visibility rule should still terminate on mobile")
	}
}

func TestBackNavTerminatesOnSecond(t *testing.T) {
	m := NewMonitor(false)

	v := m.Record(ViolationBackNav)
	if v.Terminate {
		t.Fatal("first back navigation should only warn")
	}
	if v.Message == "" {
		t.Error("first back navigation should warn with a message")
	}
	if v := m.Record(ViolationBackNav); !v.Terminate {
		t.Fatal("second back navigation should terminate")
	}
}

func TestStrikesAreMonotonicAcrossCategories(t *testing.T) {
	m := NewMonitor(false)

	m.Record(ViolationVisibility)
	m.Record(ViolationBackNav)
	v := m.Record(ViolationVisibility)

	if v.Total != 3 {
		t.Errorf("total = %d, want 3", v.Total)
	}
	s := m.Snapshot()
	if s.Visibility != 2 || s.BackNav != 1 || s.Fullscreen != 0 {
		t.Errorf("unexpected strikes %+v", s)
	}
	if s.Total() != 3 {
		t.Errorf("Total() = %d, want 3", s.Total())
	}
}

func TestRestoreSeedsCounters(t *testing.T) {
	m := NewMonitor(false)
	m.Restore(Strikes{Visibility: 2})

	if v := m.Record(ViolationVisibility); !v.Terminate {
		t.Error("restored counters should carry over: third loss must terminate")
	}
}

func TestUnknownKindIsExempt(t *testing.T) {
	m := NewMonitor(false)
	v := m.Record(ViolationKind("devtools_open"))
	if !v.Exempt || v.Terminate {
		t.Errorf("unknown kind should be exempt, got %+v", v)
	}
	if m.Snapshot().Total() != 0 {
		t.Error("unknown kinds must not count")
	}
}

func TestIsMobileUserAgent(t *testing.T) {
	cases := []struct {
		ua     string
		mobile bool
	}{
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15", true},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36", true},
		{"Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X)", true},
		{"Opera/9.80 (J2ME/MIDP; Opera Mini/9.80) Presto/2.12", true},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0", false},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsMobileUserAgent(tc.ua); got != tc.mobile {
			t.Errorf("IsMobileUserAgent(%q) = %v, want %v", tc.ua, got, tc.mobile)
		}
	}
}
