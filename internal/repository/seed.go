package repository

import (
	"database/sql"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed stations.yaml
var stationSeed []byte

type seedStation struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Genre    string `yaml:"genre"`
	Quality  string `yaml:"quality"`
	Artwork  string `yaml:"artwork"`
	Favorite bool   `yaml:"favorite"`
}

// seedStations loads the embedded station list into an empty stations table.
// A populated table is left alone so dashboard edits survive restarts.
func seedStations(db *sql.DB) error {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM stations`).Scan(&n); err != nil {
		return fmt.Errorf("count stations: %w", err)
	}
	if n > 0 {
		return nil
	}

	var seeds []seedStation
	if err := yaml.Unmarshal(stationSeed, &seeds); err != nil {
		return fmt.Errorf("parse station seed: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range seeds {
		if s.Quality == "" {
			s.Quality = "128kbps"
		}
		if _, err := tx.Exec(
			`INSERT INTO stations(name, url, genre, quality, artwork, is_favorite, is_active) VALUES (?,?,?,?,?,?,1)`,
			s.Name, s.URL, s.Genre, s.Quality, s.Artwork, boolToInt(s.Favorite),
		); err != nil {
			return fmt.Errorf("seed station %q: %w", s.Name, err)
		}
	}
	return tx.Commit()
}
