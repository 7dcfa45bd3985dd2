package service

import (
	"context"
	"fmt"
	"time"

	"github.com/paperdesk/paperdesk-backend/internal/classifier"
	"github.com/paperdesk/paperdesk-backend/internal/clock"
	"github.com/paperdesk/paperdesk-backend/internal/config"
	"github.com/paperdesk/paperdesk-backend/internal/model"
	"github.com/paperdesk/paperdesk-backend/internal/repository"
)

// CatalogService builds the candidate-facing lobby: eligible papers bucketed
// into available, attempted, and expired at the instant of the request.
type CatalogService struct {
	paperRepo   *repository.PaperRepository
	attemptRepo *repository.AttemptRepository
	clk         clock.Clock
	policy      classifier.Policy
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(paperRepo *repository.PaperRepository, attemptRepo *repository.AttemptRepository, clk clock.Clock, cfg *config.Config) *CatalogService {
	return &CatalogService{
		paperRepo:   paperRepo,
		attemptRepo: attemptRepo,
		clk:         clk,
		policy:      classifier.Policy{ZeroDurationAvailable: cfg.ZeroDurationAvailable},
	}
}

// AttemptedEntry is an attempted paper in the lobby, decorated with the
// submission timestamp and, once declared, the published result.
type AttemptedEntry struct {
	model.Paper
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	Result      *model.Result `json:"result,omitempty"`
}

// Lobby is the bucketed catalog returned to a candidate.
type Lobby struct {
	Available []model.Paper    `json:"available"`
	Attempted []AttemptedEntry `json:"attempted"`
	Expired   []model.Paper    `json:"expired"`
}

// GetLobby classifies every published paper the candidate is eligible for.
// Classification is recomputed on each call; a paper may move between
// buckets from one refresh to the next as the clock advances.
func (s *CatalogService) GetLobby(ctx context.Context, profile model.CandidateProfile) (Lobby, error) {
	papers, err := s.paperRepo.ListPublished(ctx, profile.FacultyTrack, profile.Semester)
	if err != nil {
		return Lobby{}, fmt.Errorf("list papers: %w", err)
	}

	records, err := s.attemptRepo.ListByCandidate(ctx, profile.ID)
	if err != nil {
		return Lobby{}, fmt.Errorf("list attempts: %w", err)
	}

	buckets := classifier.Classify(profile, papers, records, s.clk.Now(), s.policy)

	lobby := Lobby{
		Available: buckets.Available,
		Attempted: make([]AttemptedEntry, 0, len(buckets.Attempted)),
		Expired:   buckets.Expired,
	}
	for _, paper := range buckets.Attempted {
		entry := AttemptedEntry{Paper: paper}
		if rec := records[paper.Code]; rec != nil {
			entry.SubmittedAt = rec.SubmittedAt
			if rec.Published() {
				entry.Result = rec.Result
			}
		}
		lobby.Attempted = append(lobby.Attempted, entry)
	}
	return lobby, nil
}

// CandidateResult is one published result in the candidate's results view.
type CandidateResult struct {
	PaperCode  string       `json:"paper_code"`
	PaperTitle string       `json:"paper_title"`
	Result     model.Result `json:"result"`
}

// GetResults returns the candidate's published results. Unpublished attempts
// are omitted entirely; the candidate never sees a partial result.
func (s *CatalogService) GetResults(ctx context.Context, profile model.CandidateProfile) ([]CandidateResult, error) {
	records, err := s.attemptRepo.ListByCandidate(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	var out []CandidateResult
	for _, rec := range records {
		if !rec.Published() {
			continue
		}
		title := rec.PaperCode
		if paper, err := s.paperRepo.GetByCode(ctx, rec.PaperCode); err == nil {
			title = paper.Title
		}
		out = append(out, CandidateResult{
			PaperCode:  rec.PaperCode,
			PaperTitle: title,
			Result:     *rec.Result,
		})
	}
	return out, nil
}
