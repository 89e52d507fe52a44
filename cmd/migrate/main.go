package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"peoplecounter/internal/dto"
	"peoplecounter/internal/model"
	"peoplecounter/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/jobs.db", "Database path")
	outputsDir := flag.String("outputs", "outputs", "Directory containing processed videos")
	prune := flag.Bool("prune", false, "Delete finished jobs whose output video no longer exists")
	flag.Parse()

	fmt.Printf("Migrating job database %s\n", *dbPath)

	// Opening the database creates or upgrades the schema
	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewJobRepository(db)

	n, err := repo.MarkInterrupted(time.Now())
	if err != nil {
		log.Fatalf("Failed to close stale jobs: %v", err)
	}
	if n > 0 {
		fmt.Printf("⚠️  Marked %d stale jobs as interrupted\n", n)
	}

	if *prune {
		jobs, err := repo.GetAll(nil)
		if err != nil {
			log.Fatalf("Failed to read jobs: %v", err)
		}

		removed := 0
		for _, j := range jobs {
			if j.Status == model.StatusProcessing {
				continue
			}
			if _, err := os.Stat(filepath.Join(*outputsDir, j.OutputName)); !os.IsNotExist(err) {
				continue
			}
			if err := repo.Delete(j.ID); err != nil {
				log.Printf("⚠️  Failed to delete %s: %v", j.ID, err)
				continue
			}
			removed++
		}
		fmt.Printf("✅ Pruned %d jobs without output\n", removed)
	}

	// Show stats
	fmt.Printf("\n📊 Database Statistics:\n")
	for _, status := range []string{
		model.StatusProcessing,
		model.StatusCompleted,
		model.StatusCancelled,
		model.StatusFailed,
		model.StatusInterrupted,
	} {
		count, err := repo.GetTotalCount(&dto.JobFilter{Status: status})
		if err != nil {
			log.Fatalf("Failed to count jobs: %v", err)
		}
		fmt.Printf("   %-12s %d\n", status+":", count)
	}
}
