package schedule

import "time"

// ResolveLiveProgram returns the program of ch that is on air at now: the
// first program in list order with StartTime <= now < EndTime. The second
// result is false when now falls into a gap in the schedule.
//
// Programs are ordered by start time, so the scan stops at the first program
// that starts after now. Overlapping entries are not repaired; the earliest
// listed one wins.
func ResolveLiveProgram(ch Channel, now time.Time) (Program, bool) {
	for _, p := range ch.Programs {
		if p.StartTime.After(now) {
			break
		}
		if p.Covers(now) {
			return p, true
		}
	}
	return Program{}, false
}

// NextBoundary returns the earliest instant after now at which the result of
// ResolveLiveProgram for ch could change: the end of the covering program or
// the start of the next one, whichever comes first. The second result is
// false when no program starts or ends after now.
func NextBoundary(ch Channel, now time.Time) (time.Time, bool) {
	var next time.Time
	found := false
	consider := func(t time.Time) {
		if t.After(now) && (!found || t.Before(next)) {
			next = t
			found = true
		}
	}
	for _, p := range ch.Programs {
		consider(p.StartTime)
		consider(p.EndTime)
		// Later programs start no earlier than this one, so once a start
		// lies past the best candidate nothing after it can improve on it.
		if found && !p.StartTime.Before(next) {
			break
		}
	}
	return next, found
}

// UpcomingPrograms returns the live program, if any, followed by at most n
// programs that start after now.
func UpcomingPrograms(ch Channel, now time.Time, n int) []Program {
	if n < 0 {
		n = 0
	}
	out := make([]Program, 0, n+1)
	if live, ok := ResolveLiveProgram(ch, now); ok {
		out = append(out, live)
	}
	for _, p := range ch.Programs {
		if n <= 0 {
			break
		}
		if p.StartTime.After(now) {
			out = append(out, p)
			n--
		}
	}
	return out
}
