package quiz

import "time"

// DefaultEnrollGrace is how long after StartTime a student may still
// begin an attempt. Enrolling later is refused even if the quiz has not
// ended, so nobody starts with a silently truncated duration.
const DefaultEnrollGrace = 15 * time.Minute

// enrollOpen checks the enroll window for a student at now.
func enrollOpen(q Quiz, now time.Time, grace time.Duration) error {
	if now.Before(q.StartTime) {
		return errWindow(msgNotStarted)
	}
	if now.After(q.StartTime.Add(grace)) {
		return errWindow(msgEnrollClosed)
	}
	return nil
}

// writeOpen checks the save/submit deadline. The EndTime instant itself
// is still writable; only strictly-later writes fail.
func writeOpen(q Quiz, now time.Time) error {
	if now.After(q.EndTime) {
		return errWindow(msgTimeLimit)
	}
	return nil
}

// ended reports whether the scored window has fully elapsed (delete is
// only allowed from here on).
func ended(q Quiz, now time.Time) bool {
	return !now.Before(q.EndTime)
}
