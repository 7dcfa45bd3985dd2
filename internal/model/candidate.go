package model

import "time"

// Candidate is an examinee account.
type Candidate struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FacultyTrack string    `json:"faculty_track"`
	Semester     string    `json:"semester"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile extracts the eligibility profile handed to core operations.
func (c *Candidate) Profile() CandidateProfile {
	return CandidateProfile{
		ID:           c.ID,
		Name:         c.Name,
		FacultyTrack: c.FacultyTrack,
		Semester:     c.Semester,
	}
}

// CandidateProfile is the resolved identity passed explicitly into
// classification and attempt operations. Core code never reads ambient
// session state; callers resolve the profile and hand it down.
type CandidateProfile struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	FacultyTrack string `json:"faculty_track"`
	Semester     string `json:"semester"`
}

// CandidateLoginRequest is the payload for candidate login.
type CandidateLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// CreateCandidateRequest is the payload for registering a candidate.
type CreateCandidateRequest struct {
	Name         string `json:"name" binding:"required,min=2,max=255"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6,max=72"`
	FacultyTrack string `json:"faculty_track" binding:"required,max=64"`
	Semester     string `json:"semester" binding:"required,max=16"`
}
