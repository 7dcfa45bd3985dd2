package classifier

import (
	"testing"
	"time"

	"github.com/paperdesk/paperdesk-backend/internal/model"
)

var (
	t0      = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	profile = model.CandidateProfile{ID: 7, FacultyTrack: "BCA", Semester: "SEM5"}
)

func paper(code string, start time.Time, durationMin int) model.Paper {
	return model.Paper{
		Code:            code,
		Title:           code,
		FacultyTrack:    "BCA",
		Semester:        "SEM5",
		ScheduledStart:  start,
		DurationMinutes: durationMin,
		Status:          model.PaperStatusPublished,
	}
}

func startedRec(code string, at time.Time) *model.AttemptRecord {
	return &model.AttemptRecord{PaperCode: code, CandidateID: 7, StartedAt: &at}
}

func attemptedRec(code string, started, attempted time.Time) *model.AttemptRecord {
	return &model.AttemptRecord{PaperCode: code, CandidateID: 7, StartedAt: &started, AttemptedAt: &attempted}
}

func TestClassifyOne(t *testing.T) {
	tests := []struct {
		name   string
		paper  model.Paper
		rec    *model.AttemptRecord
		now    time.Time
		policy Policy
		want   bucket
	}{
		{
			name:  "submitted is attempted even long after expiry",
			paper: paper("P1", t0, 60),
			rec:   attemptedRec("P1", t0, t0.Add(30*time.Minute)),
			now:   t0.Add(48 * time.Hour),
			want:  bucketAttempted,
		},
		{
			name:  "before scheduled start is available",
			paper: paper("P1", t0, 60),
			now:   t0.Add(-time.Hour),
			want:  bucketAvailable,
		},
		{
			name:  "unstarted inside grace window is available",
			paper: paper("P1", t0, 60),
			now:   t0.Add(59 * time.Minute),
			want:  bucketAvailable,
		},
		{
			name:  "unstarted exactly at window edge is expired",
			paper: paper("P1", t0, 60),
			now:   t0.Add(60 * time.Minute),
			want:  bucketExpired,
		},
		{
			name:  "unstarted past grace window is expired",
			paper: paper("P1", t0, 60),
			now:   t0.Add(90 * time.Minute),
			want:  bucketExpired,
		},
		{
			name:  "started late attempt still inside its own window is available",
			paper: paper("P1", t0, 60),
			rec:   startedRec("P1", t0.Add(50*time.Minute)),
			now:   t0.Add(100 * time.Minute),
			want:  bucketAvailable,
		},
		{
			name:  "started attempt exactly at deadline is available",
			paper: paper("P1", t0, 60),
			rec:   startedRec("P1", t0),
			now:   t0.Add(60 * time.Minute),
			want:  bucketAvailable,
		},
		{
			name:  "started attempt past deadline without submission is expired",
			paper: paper("P1", t0, 60),
			rec:   startedRec("P1", t0),
			now:   t0.Add(61 * time.Minute),
			want:  bucketExpired,
		},
		{
			name:  "zero duration expires immediately by default",
			paper: paper("P1", t0, 0),
			now:   t0,
			want:  bucketExpired,
		},
		{
			name:   "zero duration stays available when policy allows",
			paper:  paper("P1", t0, 0),
			now:    t0.Add(time.Hour),
			policy: Policy{ZeroDurationAvailable: true},
			want:   bucketAvailable,
		},
		{
			name:  "zero duration before start is available regardless of policy",
			paper: paper("P1", t0, 0),
			now:   t0.Add(-time.Minute),
			want:  bucketAvailable,
		},
		{
			name:   "zero duration started attempt stays available when policy allows",
			paper:  paper("P1", t0, 0),
			rec:    startedRec("P1", t0),
			now:    t0.Add(time.Hour),
			policy: Policy{ZeroDurationAvailable: true},
			want:   bucketAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyOne(&tt.paper, tt.rec, tt.now, tt.policy)
			if got != tt.want {
				t.Errorf("classifyOne() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifySkipsIneligiblePapers(t *testing.T) {
	otherTrack := paper("OT", t0, 60)
	otherTrack.FacultyTrack = "MCA"
	otherSem := paper("OS", t0, 60)
	otherSem.Semester = "SEM1"

	b := Classify(profile, []model.Paper{otherTrack, otherSem, paper("OK", t0, 60)}, nil, t0, Policy{})

	if len(b.Available) != 1 || b.Available[0].Code != "OK" {
		t.Errorf("Available = %+v, want only OK", b.Available)
	}
	if len(b.Attempted) != 0 || len(b.Expired) != 0 {
		t.Errorf("unexpected non-empty buckets: %+v", b)
	}
}

func TestClassifyPartitions(t *testing.T) {
	papers := []model.Paper{
		paper("FUTURE", t0.Add(time.Hour), 30),
		paper("OPEN", t0.Add(-10*time.Minute), 30),
		paper("DONE", t0.Add(-2*time.Hour), 30),
		paper("MISSED", t0.Add(-2*time.Hour), 30),
	}
	records := map[string]*model.AttemptRecord{
		"DONE": attemptedRec("DONE", t0.Add(-2*time.Hour), t0.Add(-90*time.Minute)),
	}

	b := Classify(profile, papers, records, t0, Policy{})

	wantCodes := func(got []model.Paper, want ...string) {
		t.Helper()
		if len(got) != len(want) {
			t.Fatalf("got %d papers, want %d (%v)", len(got), len(want), want)
		}
		for i, w := range want {
			if got[i].Code != w {
				t.Errorf("papers[%d] = %s, want %s", i, got[i].Code, w)
			}
		}
	}

	wantCodes(b.Available, "FUTURE", "OPEN")
	wantCodes(b.Attempted, "DONE")
	wantCodes(b.Expired, "MISSED")
}

func TestClassifyDoesNotMutateInputs(t *testing.T) {
	papers := []model.Paper{paper("P1", t0, 60)}
	b := Classify(profile, papers, nil, t0, Policy{})

	b.Available[0].Title = "mutated"
	if papers[0].Title != "P1" {
		t.Error("Classify returned a view over the input slice")
	}
}
