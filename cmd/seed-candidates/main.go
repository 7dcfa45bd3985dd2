package main

import (
	"context"
	"fmt"
	"time"

	"github.com/paperdesk/paperdesk-backend/internal/config"
	"github.com/paperdesk/paperdesk-backend/internal/database"
	"github.com/paperdesk/paperdesk-backend/internal/logger"
	"github.com/paperdesk/paperdesk-backend/internal/model"
	"github.com/paperdesk/paperdesk-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	candidateRepo := repository.NewCandidateRepository(pool)

	fmt.Println("=== Seeding 50 Candidates ===")

	facultyTrack := "BCA"
	semester := "SEM5"

	names := []string{
		"Aarav Sharma", "Bhavna Patel", "Chirag Mehta", "Divya Nair", "Esha Reddy",
		"Farhan Khan", "Gauri Desai", "Harsh Vora", "Ishita Joshi", "Jatin Kumar",
		"Kavya Iyer", "Laksh Gupta", "Meera Pillai", "Nikhil Rao", "Ojas Trivedi",
		"Pooja Shah", "Qasim Ali", "Riya Kapoor", "Sahil Verma", "Tanvi Bhatt",
		"Uday Singh", "Vidhi Jain", "Wasim Shaikh", "Yash Agarwal", "Zara Sheikh",
		"Aditi Kulkarni", "Bhavesh Thakur", "Chetna Soni", "Dev Malhotra", "Ekta Chauhan",
		"Gopal Mishra", "Hina Qureshi", "Ishan Dubey", "Juhi Saxena", "Karan Bedi",
		"Lavanya Menon", "Mohit Bansal", "Neha Sinha", "Om Prakash", "Priya Das",
		"Rahul Chopra", "Sneha Kaur", "Tarun Bhatia", "Urvashi Goel", "Vikram Sethi",
		"Waqar Ahmed", "Yamini Rawat", "Zoya Ansari", "Akash Tiwari", "Bhumi Pandey",
	}

	// One shared seed password keeps the fixture simple.
	hash, err := bcrypt.GenerateFromPassword([]byte("paperdesk123"), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash seed password")
	}

	successCount := 0
	for i, name := range names {
		candidate := &model.Candidate{
			Name:         name,
			Email:        fmt.Sprintf("candidate%d@paperdesk.test", i+1),
			PasswordHash: string(hash),
			FacultyTrack: facultyTrack,
			Semester:     semester,
		}

		if err := candidateRepo.Create(ctx, candidate); err != nil {
			fmt.Printf("Error creating candidate %s (%s): %v\n", candidate.Name, candidate.Email, err)
		} else {
			successCount++
			if (i+1)%10 == 0 {
				fmt.Printf("Created %d candidates...\n", i+1)
			}
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d candidates.\n", successCount, len(names))
}
