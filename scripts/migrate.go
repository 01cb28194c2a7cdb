package main

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"counselmeet/internal/config"
	"counselmeet/internal/models"
	"counselmeet/internal/repository"
	"counselmeet/internal/utils"
	"counselmeet/pkg/database"
	"counselmeet/pkg/logger"

	"github.com/joho/godotenv"
)

// Environment knobs specific to this script:
//
//	SEED_COUNSELORS=true      insert the demo counselors when missing
//	DEV_TOKEN=user:role[,...] print signed tokens for local testing
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using environment variables")
	}

	cfg := config.Load()
	cfg.ApplyEnvironmentOverrides()
	logger.Init(logger.Config{Level: logger.InfoLevel, Format: logger.TextFormat})

	if cfg.Database.Driver != config.StoreMongo {
		log.Fatalf("migration needs STORE_DRIVER=mongo, got %q", cfg.Database.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.InitMongoDB(cfg.Database.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer database.Disconnect(context.Background())

	log.Println("Creating indexes...")
	if err := database.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if os.Getenv("SEED_COUNSELORS") == "true" {
		log.Println("Seeding counselors...")
		stores := repository.NewMongo(db, cfg.Database.MongoDB.OperationTimeout)
		if err := seedCounselors(ctx, stores.Counselors); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	if spec := os.Getenv("DEV_TOKEN"); spec != "" {
		if cfg.App.Environment == "production" {
			log.Fatal("DEV_TOKEN is refused in production")
		}
		printTokens(cfg.Security.JWT, spec)
	}

	log.Println("Migration completed successfully")
}

func demoCounselors(now time.Time) []*models.Counselor {
	return []*models.Counselor{
		{
			ID:               "counselor-amani",
			DisplayName:      "Amani",
			IsActive:         true,
			WorkingHours:     models.WorkingHours{Start: "09:00", End: "17:00", Timezone: "Africa/Nairobi"},
			MaxDailyMeetings: 6,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		{
			ID:               "counselor-rizki",
			DisplayName:      "Rizki",
			IsActive:         true,
			WorkingHours:     models.WorkingHours{Start: "08:00", End: "15:00", Timezone: "Asia/Jakarta"},
			MaxDailyMeetings: 5,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
	}
}

// seedCounselors only inserts missing profiles so that counters of existing
// counselors survive a re-run
func seedCounselors(ctx context.Context, counselors repository.CounselorRepository) error {
	for _, c := range demoCounselors(time.Now().UTC()) {
		_, err := counselors.GetByID(ctx, c.ID)
		switch {
		case err == nil:
			log.Printf("  counselor %s exists, skipped", c.ID)
			continue
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
		if err := counselors.Save(ctx, c); err != nil {
			return err
		}
		log.Printf("  counselor %s created (%s %s-%s)", c.ID, c.WorkingHours.Timezone, c.WorkingHours.Start, c.WorkingHours.End)
	}
	return nil
}

func printTokens(jwtCfg config.JWTConfig, spec string) {
	issuer := utils.NewTokenIssuer(jwtCfg.Secret, jwtCfg.Issuer, time.Duration(jwtCfg.ExpiryHour)*time.Hour)
	for _, entry := range strings.Split(spec, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 2)
		if len(parts) != 2 || !models.ValidRole(parts[1]) {
			log.Printf("  skipping malformed DEV_TOKEN entry %q", entry)
			continue
		}
		token, err := issuer.Generate(models.Principal{UserID: parts[0], Role: parts[1]})
		if err != nil {
			log.Fatalf("sign token: %v", err)
		}
		log.Printf("  %s (%s): %s", parts[0], parts[1], token)
	}
}
