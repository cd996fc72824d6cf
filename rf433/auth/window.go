package auth

// WindowSize is the number of indices a one-byte sequence number can address.
const WindowSize = 0x100

// Reconstruct maps a sequence byte to the only index in
// [lower, lower+WindowSize-1] whose low byte equals seq.
//
// Replays and packets from too far ahead land on the wrong index and fail
// digest verification there; no explicit range check is made.
func Reconstruct(seq byte, lower uint64) uint64 {
	candidate := lower&^0xff | uint64(seq)
	if candidate < lower {
		candidate += WindowSize
	}
	return candidate
}

// Window applies Reconstruct against a schedule's lower bound.
type Window struct {
	schedule KeySchedule
}

func NewWindow(schedule KeySchedule) *Window {
	return &Window{schedule: schedule}
}

func (w *Window) Lower() uint64 { return w.schedule.Lower() }

func (w *Window) Candidate(seq byte) uint64 {
	return Reconstruct(seq, w.schedule.Lower())
}

// Accept consumes candidate and everything before it. Only call it after
// the packet digest verified.
func (w *Window) Accept(candidate uint64) {
	w.schedule.Advance(candidate)
}
