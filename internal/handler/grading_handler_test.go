package handler

import (
	"testing"

	"github.com/paperdesk/paperdesk-backend/internal/service"
)

func TestReviewerID(t *testing.T) {
	tests := []struct {
		name   string
		claims *service.Claims
		want   int
	}{
		{
			name:   "instructor reviews under their own id",
			claims: &service.Claims{UserID: 42},
			want:   42,
		},
		{
			name:   "admin reviews without an ownership filter",
			claims: &service.Claims{UserID: 1, IsAdmin: true},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reviewerID(tt.claims); got != tt.want {
				t.Errorf("reviewerID() = %d, want %d", got, tt.want)
			}
		})
	}
}
