package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/database"
	"github.com/quizdesk/quizdesk-backend/internal/logger"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/quizdesk/quizdesk-backend/internal/service"
)

func main() {
	var (
		filePath  = flag.String("file", "", "Path to a name,email roster file")
		batchName = flag.String("batch", "", "Batch name (created if missing)")
	)
	flag.Parse()

	if *filePath == "" || *batchName == "" {
		fmt.Println("Usage: import-students -file students.csv -batch \"Batch 2026\"")
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	batchRepo := repository.NewBatchRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)

	batchService := service.NewBatchService(batchRepo)
	authService := service.NewAuthService(cfg, nil)
	importService := service.NewImportService(studentRepo, authService, cfg.ImportPasswordLength, log)

	// Find or create the batch.
	var batchID int
	var existing model.Batch
	err = pool.QueryRow(ctx, "SELECT id, name FROM batches WHERE name = $1", *batchName).Scan(&existing.ID, &existing.Name)
	if err != nil {
		if err == pgx.ErrNoRows {
			fmt.Printf("Batch %q not found. Creating it...\n", *batchName)
			newBatch := &model.Batch{Name: *batchName}
			if err := batchService.Create(ctx, newBatch); err != nil {
				log.Fatal().Err(err).Msg("Failed to create batch")
			}
			batchID = newBatch.ID
			fmt.Printf("Created batch with ID: %d\n", batchID)
		} else {
			log.Fatal().Err(err).Msg("Failed to check existing batch")
		}
	} else {
		batchID = existing.ID
		fmt.Printf("Found existing batch with ID: %d\n", batchID)
	}

	file, err := os.Open(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open roster file")
	}
	defer file.Close()

	summary, err := importService.ImportStudents(ctx, file, batchID)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Printf("\nImported %d students, %d rows failed\n\n", summary.Created, summary.Failed)
	for _, row := range summary.Rows {
		if row.Error != "" {
			fmt.Printf("line %d  %-30s  ERROR: %s\n", row.Line, row.Email, row.Error)
			continue
		}
		fmt.Printf("line %d  %-30s  password: %s\n", row.Line, row.Email, row.Password)
	}
}
