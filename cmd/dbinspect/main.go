package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/yomihub/yomihub-server/internal/domain"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/YomiHub/data/catalog")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Catalog Inspection ===")
	fmt.Println()

	seriesCount := 0
	seriesWithChapters := 0
	seriesWithoutChapters := 0
	bySource := map[string]int{}

	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("series:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte("series:")); it.ValidForPrefix([]byte("series:")); it.Next() {
			item := it.Item()
			key := string(item.Key())

			err := item.Value(func(val []byte) error {
				var series domain.Series
				if err := json.Unmarshal(val, &series); err != nil {
					return err
				}

				seriesCount++
				bySource[series.SourceID]++

				if series.ChapterCount > 0 {
					seriesWithChapters++
					// Show first few series with chapters
					if seriesWithChapters <= 3 {
						fmt.Printf("Series: %s\n", series.Title)
						fmt.Printf("  ID: %s\n", series.ID)
						fmt.Printf("  Source: %s\n", series.SourceID)
						fmt.Printf("  Status: %s\n", series.Status)
						fmt.Printf("  Chapters: %d\n", series.ChapterCount)
						if len(series.Tags) > 0 {
							fmt.Printf("  Tags: %d\n", len(series.Tags))
						}
						fmt.Println()
					}
				} else {
					seriesWithoutChapters++
					if seriesWithoutChapters <= 3 {
						fmt.Printf("Series (NO CHAPTERS): %s\n", series.Title)
						fmt.Printf("  ID: %s\n", series.ID)
						fmt.Printf("  Source: %s\n", series.SourceID)
						fmt.Println()
					}
				}

				return nil
			})
			if err != nil {
				log.Printf("Error reading series %s: %v", key, err)
			}
		}
		return nil
	})

	if err != nil {
		log.Fatalf("Error iterating database: %v", err)
	}

	chapterRows := 0
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("chapter:")
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte("chapter:")); it.ValidForPrefix([]byte("chapter:")); it.Next() {
			chapterRows++
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error counting chapters: %v", err)
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Total series: %d\n", seriesCount)
	fmt.Printf("Series with chapters: %d\n", seriesWithChapters)
	fmt.Printf("Series without chapters: %d\n", seriesWithoutChapters)
	fmt.Printf("Stored chapter rows: %d\n", chapterRows)
	for source, count := range bySource {
		fmt.Printf("  %s: %d series\n", source, count)
	}
}
