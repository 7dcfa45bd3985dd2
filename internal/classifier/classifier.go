// Package classifier partitions the paper catalog into the candidate-facing
// Available / Attempted / Expired buckets. Classification is a pure function
// over its inputs: it performs no I/O and no mutation, so it may run
// concurrently with any number of live attempts.
//
// A started attempt is judged against its own deadline (start time plus
// duration), not the scheduled window: a candidate who began late keeps the
// paper Available until their own clock runs out, even after the scheduled
// window has closed.
package classifier

import (
	"time"

	"github.com/paperdesk/paperdesk-backend/internal/model"
)

// Policy holds classification knobs that are deliberately configurable
// rather than hard-coded.
type Policy struct {
	// ZeroDurationAvailable controls whether a paper with duration 0 is ever
	// offered once its scheduled start has passed. The default (false) treats
	// a zero-length window as expiring immediately.
	ZeroDurationAvailable bool
}

// Buckets is the partition of eligible papers for one candidate at one instant.
type Buckets struct {
	Available []model.Paper `json:"available"`
	Attempted []model.Paper `json:"attempted"`
	Expired   []model.Paper `json:"expired"`
}

// Classify partitions papers for the given candidate profile at time now.
// records maps paper code to that candidate's attempt record (absent entries
// mean no attempt exists). Ineligible papers are silently skipped; that is
// not an error condition.
func Classify(profile model.CandidateProfile, papers []model.Paper, records map[string]*model.AttemptRecord, now time.Time, policy Policy) Buckets {
	var b Buckets

	for i := range papers {
		paper := papers[i]

		if paper.FacultyTrack != profile.FacultyTrack || paper.Semester != profile.Semester {
			continue
		}

		rec := records[paper.Code]

		switch classifyOne(&paper, rec, now, policy) {
		case bucketAttempted:
			b.Attempted = append(b.Attempted, paper)
		case bucketAvailable:
			b.Available = append(b.Available, paper)
		case bucketExpired:
			b.Expired = append(b.Expired, paper)
		}
	}

	return b
}

type bucket int

const (
	bucketAvailable bucket = iota
	bucketAttempted
	bucketExpired
)

func classifyOne(paper *model.Paper, rec *model.AttemptRecord, now time.Time, policy Policy) bucket {
	// A completed submission is terminal regardless of elapsed time.
	if rec.Attempted() {
		return bucketAttempted
	}

	// Not yet open: visible as available, cannot be started yet.
	if now.Before(paper.ScheduledStart) {
		return bucketAvailable
	}

	// A zero-length window past its scheduled start either expires on the
	// spot or, when the policy allows, stays open without a deadline.
	if paper.DurationMinutes == 0 {
		if policy.ZeroDurationAvailable {
			return bucketAvailable
		}
		return bucketExpired
	}

	// A started attempt that has overrun its window is dead.
	if rec.Started() && now.Sub(*rec.StartedAt) > paper.Duration() {
		return bucketExpired
	}

	// Never started: the candidate may still begin within the grace window
	// of one duration after the scheduled start.
	if !rec.Started() && now.Sub(paper.ScheduledStart) < paper.Duration() {
		return bucketAvailable
	}

	// A started attempt still inside its window stays available so the
	// candidate can resume it.
	if rec.Started() && now.Sub(*rec.StartedAt) <= paper.Duration() {
		return bucketAvailable
	}

	return bucketExpired
}
