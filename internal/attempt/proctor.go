package attempt

import (
	"fmt"
	"regexp"
	"sync"
)

// ViolationKind enumerates proctoring rule breaches reported by the client.
type ViolationKind string

const (
	ViolationVisibility ViolationKind = "visibility_loss"
	ViolationFullscreen ViolationKind = "fullscreen_exit"
	ViolationBackNav    ViolationKind = "back_navigation"
)

// Strike thresholds. Crossing one forces submission with reason "cheat".
const (
	VisibilityThreshold = 3
	// Full-screen exits are stricter, and only enforced on desktop.
	FullscreenThreshold = 2
	// The first back-navigation is trapped and warned; the second
	// terminates the attempt.
	BackNavThreshold = 2
)

var mobileUARe = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)

// IsMobileUserAgent reports whether the client is a mobile device. Mobile
// devices are exempt from the full-screen requirement: most mobile browsers
// cannot hold a page in programmatic full-screen at all.
func IsMobileUserAgent(ua string) bool {
	return mobileUARe.MatchString(ua)
}

// Verdict is the outcome of recording one violation event.
type Verdict struct {
	Kind      ViolationKind `json:"kind"`
	Count     int           `json:"count"`
	Threshold int           `json:"threshold"`
	Total     int           `json:"total"`
	Exempt    bool          `json:"exempt,omitempty"`
	Terminate bool          `json:"terminate"`
	Message   string        `json:"message,omitempty"`
}

// Monitor accumulates violation strikes for a single attempt. It only
// counts and decides; acting on a terminate verdict is the caller's job,
// and callers must stop feeding events once the attempt leaves the active
// phase.
type Monitor struct {
	mu      sync.Mutex
	mobile  bool
	strikes Strikes
}

// NewMonitor creates a Monitor. mobile exempts the full-screen rule.
func NewMonitor(mobile bool) *Monitor {
	return &Monitor{mobile: mobile}
}

// Restore seeds the counters from persisted state on resume.
func (m *Monitor) Restore(s Strikes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strikes = s
}

// Snapshot returns the current counters.
func (m *Monitor) Snapshot() Strikes {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.strikes
}

// FullscreenRequired reports whether the client must hold full-screen.
func (m *Monitor) FullscreenRequired() bool {
	return !m.mobile
}

// Record counts one violation event and decides whether to warn or
// terminate. Counters are monotonic: nothing ever decrements them.
func (m *Monitor) Record(kind ViolationKind) Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := Verdict{Kind: kind}

	switch kind {
	case ViolationVisibility:
		m.strikes.Visibility++
		v.Count = m.strikes.Visibility
		v.Threshold = VisibilityThreshold
		if v.Count >= VisibilityThreshold {
			v.Terminate = true
		} else {
			v.Message = fmt.Sprintf("Warning %d/%d: don't switch apps or tabs!", v.Count, VisibilityThreshold)
		}

	case ViolationFullscreen:
		if m.mobile {
			v.Exempt = true
			v.Total = m.strikes.Total()
			return v
		}
		m.strikes.Fullscreen++
		v.Count = m.strikes.Fullscreen
		v.Threshold = FullscreenThreshold
		if v.Count >= FullscreenThreshold {
			v.Terminate = true
		} else {
			v.Message = "Critical warning: do not exit full screen again. The next exit terminates the exam."
		}

	case ViolationBackNav:
		m.strikes.BackNav++
		v.Count = m.strikes.BackNav
		v.Threshold = BackNavThreshold
		if v.Count >= BackNavThreshold {
			v.Terminate = true
		} else {
			v.Message = "Don't go back! The next back navigation submits the exam."
		}

	default:
		v.Exempt = true
	}

	v.Total = m.strikes.Total()
	return v
}
