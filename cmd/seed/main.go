// Package main provides a tool to seed the catalog with test data.
//
// This writes a handful of series with chapters, tags them, and records
// random view counts so stats and search features have something to show.
//
// Usage:
//
//	DATA_PATH=~/YomiHub/data go run ./cmd/seed
//	DATA_PATH=~/YomiHub/data go run ./cmd/seed --views=500
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/store"
	"github.com/yomihub/yomihub-server/internal/store/statsdb"
	"github.com/yomihub/yomihub-server/internal/tags"
)

var views = flag.Int("views", 200, "Total view events to record across seeded series")

type seedSeries struct {
	series   domain.Series
	chapters int
	tags     []string
}

// seedData is deliberately varied: multiple sources, statuses, an adult
// entry, and fractional chapter numbers show up in real catalogs.
var seedData = []seedSeries{
	{
		series: domain.Series{
			ID:       "mangadex:seed-tower",
			SourceID: "mangadex",
			Slug:     "seed-tower",
			Title:    "Tower of Glass",
			Author:   "R. Himura",
			Status:   domain.StatusOngoing,
			Language: "en",
			Rating:   4.4,
		},
		chapters: 12,
		tags:     []string{"Action", "Fantasy"},
	},
	{
		series: domain.Series{
			ID:       "mangadex:seed-bakery",
			SourceID: "mangadex",
			Slug:     "seed-bakery",
			Title:    "Midnight Bakery",
			Author:   "S. Ono",
			Status:   domain.StatusCompleted,
			Language: "en",
			Rating:   4.8,
		},
		chapters: 30,
		tags:     []string{"Slice of Life", "Comedy"},
	},
	{
		series: domain.Series{
			ID:       "hitomi:seed-902211",
			SourceID: "hitomi",
			Slug:     "902211",
			Title:    "Garden of Echoes",
			Status:   domain.StatusUnknown,
			Language: "ja",
			Adult:    true,
		},
		chapters: 1,
		tags:     []string{"Doujinshi"},
	},
	{
		series: domain.Series{
			ID:       "mangadex:seed-orbit",
			SourceID: "mangadex",
			Slug:     "seed-orbit",
			Title:    "Low Orbit Letters",
			Author:   "K. Abe",
			Status:   domain.StatusHiatus,
			Language: "en",
			Rating:   3.9,
		},
		chapters: 7,
		tags:     []string{"Sci-Fi", "Drama"},
	},
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/YomiHub/data")
	}

	fmt.Printf("Seeding data under: %s\n", dataPath)

	s, err := store.New(filepath.Join(dataPath, "catalog"), nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	tagIndex, err := tags.New(filepath.Join(dataPath, "tags"), nil)
	if err != nil {
		log.Fatalf("Failed to open tag index: %v", err)
	}
	defer tagIndex.Close()

	stats, err := statsdb.Open(filepath.Join(dataPath, "stats.db"), nil)
	if err != nil {
		log.Fatalf("Failed to open stats database: %v", err)
	}
	defer stats.Close()

	ctx := context.Background()
	now := time.Now()
	rng := rand.New(rand.NewSource(now.UnixNano()))

	for _, entry := range seedData {
		series := entry.series
		series.ChapterCount = entry.chapters
		series.SavedAt = now
		series.UpdatedAt = now

		if err := s.SaveSeries(ctx, &series); err != nil {
			log.Printf("Failed to save %s: %v", series.Title, err)
			continue
		}

		chapters := make([]domain.Chapter, 0, entry.chapters)
		for n := 1; n <= entry.chapters; n++ {
			chapters = append(chapters, domain.Chapter{
				ID:        fmt.Sprintf("ch-%d", n),
				SeriesID:  series.ID,
				Number:    float64(n),
				Title:     fmt.Sprintf("Chapter %d", n),
				Language:  series.Language,
				CreatedAt: now.AddDate(0, 0, -(entry.chapters - n)),
			})
		}
		// One fractional extra per ongoing series
		if series.Status == domain.StatusOngoing {
			chapters = append(chapters, domain.Chapter{
				ID:       "ch-extra",
				SeriesID: series.ID,
				Number:   float64(entry.chapters) + 0.5,
				Title:    "Extra",
				Language: series.Language,
			})
		}
		if err := s.SaveChapters(ctx, series.ID, chapters); err != nil {
			log.Printf("Failed to save chapters for %s: %v", series.Title, err)
		}

		for _, name := range entry.tags {
			tag, _, err := tagIndex.Create(ctx, name, domain.GroupGenre, "")
			if err != nil {
				log.Printf("Failed to create tag %q: %v", name, err)
				continue
			}
			if err := tagIndex.TagSeries(ctx, series.ID, tag.ID); err != nil {
				log.Printf("Failed to tag %s with %q: %v", series.Title, name, err)
			}
		}

		fmt.Printf("  Seeded: %s (%d chapters, %d tags)\n",
			series.Title, len(chapters), len(entry.tags))
	}

	// Spread view events unevenly so the leaderboard has a shape.
	for range *views {
		entry := seedData[rng.Intn(rng.Intn(len(seedData))+1)]
		if err := stats.IncrementSeriesViews(ctx, entry.series.ID); err != nil {
			log.Printf("Failed to record view: %v", err)
			break
		}
	}
	fmt.Printf("  Recorded %d view events\n", *views)

	fmt.Println("\nSeeding complete!")
}
