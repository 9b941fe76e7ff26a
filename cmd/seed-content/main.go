package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/eptportal/ept-backend/internal/config"
	"github.com/eptportal/ept-backend/internal/database"
	"github.com/eptportal/ept-backend/internal/logger"
	"github.com/eptportal/ept-backend/internal/repository"
	"github.com/eptportal/ept-backend/internal/validator"
	"github.com/eptportal/ept-backend/internal/worker"
)

func main() {
	var bankPath string
	var dryRun bool
	flag.StringVar(&bankPath, "file", "configs/content.example.yaml", "Path to the YAML content bank")
	flag.BoolVar(&dryRun, "dry-run", false, "Validate the bank without writing to the database")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	raw, err := os.ReadFile(bankPath)
	if err != nil {
		log.Fatal().Err(err).Str("file", bankPath).Msg("Failed to read content bank")
	}
	bank, err := parseBank(raw)
	if err != nil {
		log.Fatal().Err(err).Str("file", bankPath).Msg("Invalid content bank")
	}

	for _, s := range bank.Students {
		if id := s.toModel().EptID; !validator.ValidEptID(id) {
			log.Fatal().Str("ept_id", id).Msg("Invalid EPT id in content bank")
		}
	}

	fmt.Printf("=== Content bank: %d test(s), %d student(s) ===\n", len(bank.Tests), len(bank.Students))
	if dryRun {
		for _, t := range bank.Tests {
			form := t.toModel()
			fmt.Printf("  %-24s %-9s %-22s %3d pt\n", form.ID, form.Type, form.Date, form.TotalPoints)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Running servers cache delivered content; without redis they keep
	// serving the old copy until the cache TTL runs out.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, servers will not be told about new content")
		rdb = nil
	} else {
		defer rdb.Close()
	}

	testRepo := repository.NewTestRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)

	for _, t := range bank.Tests {
		form := t.toModel()
		if err := testRepo.Upsert(ctx, &form); err != nil {
			log.Fatal().Err(err).Str("test_id", form.ID).Msg("Failed to upsert test")
		}
		questions, prompts := t.content()
		if err := questionRepo.ReplaceContent(ctx, form.ID, questions, prompts); err != nil {
			log.Fatal().Err(err).Str("test_id", form.ID).Msg("Failed to replace test content")
		}
		fmt.Printf("  ✓ %s (%s, %s): %d question(s), %d prompt(s)\n",
			form.ID, form.Type, form.Date, len(questions), len(prompts))

		if rdb != nil {
			update := worker.ContentUpdate{Date: form.Date, Section: form.Type}
			if err := worker.PublishContentUpdate(ctx, rdb, update); err != nil {
				log.Warn().Err(err).Str("test_id", form.ID).Msg("Failed to publish content update")
			}
		}
	}

	for _, s := range bank.Students {
		st := s.toModel()
		if err := studentRepo.Upsert(ctx, &st); err != nil {
			log.Fatal().Err(err).Str("ept_id", st.EptID).Msg("Failed to upsert student")
		}
	}
	if len(bank.Students) > 0 {
		fmt.Printf("  ✓ %d student(s) registered\n", len(bank.Students))
	}

	dates, err := testRepo.ListDates(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list test dates")
	}
	fmt.Printf("=== Dates with content: %v ===\n", dates)
}
