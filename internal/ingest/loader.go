package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"bizarea/internal/repo"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// idNamespace keeps generated IDs stable across reloads of the same data.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("bizarea"))

// Dataset is the seed file format. Stores are nested under their area so a
// file does not need to know generated area IDs.
type Dataset struct {
	Cities        []repo.City `json:"cities"`
	BusinessAreas []SeedArea  `json:"businessAreas"`
}

type SeedArea struct {
	repo.BusinessArea
	Stores []repo.Store `json:"stores"`
}

// Stats counts what a load wrote.
type Stats struct {
	Cities        int
	BusinessAreas int
	Stores        int
	Failed        int
}

func (s *Stats) add(o Stats) {
	s.Cities += o.Cities
	s.BusinessAreas += o.BusinessAreas
	s.Stores += o.Stores
	s.Failed += o.Failed
}

// Loader handles data ingestion from JSON files
type Loader struct {
	repo repo.Repository
}

// NewLoader creates a new Loader instance
func NewLoader(r repo.Repository) *Loader {
	return &Loader{repo: r}
}

// LoadFromDirectory loads all JSON files from a directory
func (l *Loader) LoadFromDirectory(ctx context.Context, dirPath string) (Stats, error) {
	var total Stats
	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".json") {
			return nil
		}

		log.Info().Str("file", path).Msg("Loading seed file")
		stats, err := l.LoadFromFile(ctx, path)
		if err != nil {
			return err
		}
		total.add(stats)
		return nil
	})
	return total, err
}

// LoadFromFile loads a single seed file
func (l *Loader) LoadFromFile(ctx context.Context, filePath string) (Stats, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	ds, err := Decode(file)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to decode JSON from %s: %w", filePath, err)
	}
	return l.Load(ctx, ds), nil
}

func Decode(r io.Reader) (Dataset, error) {
	var ds Dataset
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ds); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

// Load upserts a dataset. Cities go first so areas can reference them; a
// failed record is logged and skipped. An area that fails takes its stores
// with it.
func (l *Loader) Load(ctx context.Context, ds Dataset) Stats {
	var stats Stats

	for _, c := range ds.Cities {
		if c.ID == "" {
			c.ID = c.Code
		}
		if err := l.repo.UpsertCity(ctx, c); err != nil {
			log.Warn().Err(err).Str("city", c.Name).Msg("Failed to load city")
			stats.Failed++
			continue
		}
		stats.Cities++
	}

	for _, sa := range ds.BusinessAreas {
		area := sa.BusinessArea
		if area.ID == "" {
			area.ID = stableID("area", area.CityID, area.Name)
		}
		if area.StoreCount == 0 {
			area.StoreCount = len(sa.Stores)
		}
		if err := l.repo.UpsertBusinessArea(ctx, area); err != nil {
			log.Warn().Err(err).Str("business_area", area.Name).Msg("Failed to load business area")
			stats.Failed += 1 + len(sa.Stores)
			continue
		}
		stats.BusinessAreas++

		for _, st := range sa.Stores {
			st.BusinessAreaID = area.ID
			if st.ID == "" {
				st.ID = stableID("store", area.ID, st.Name)
			}
			if err := l.repo.UpsertStore(ctx, st); err != nil {
				log.Warn().Err(err).Str("store", st.Name).Msg("Failed to load store")
				stats.Failed++
				continue
			}
			stats.Stores++
		}
	}

	log.Info().
		Int("cities", stats.Cities).
		Int("business_areas", stats.BusinessAreas).
		Int("stores", stats.Stores).
		Int("failed", stats.Failed).
		Msg("Seed data loaded")
	return stats
}

// LoadSampleData loads a small built-in dataset of well-known business areas.
func (l *Loader) LoadSampleData(ctx context.Context) Stats {
	return l.Load(ctx, SampleData())
}

func stableID(kind string, parts ...string) string {
	name := kind + ":" + strings.Join(parts, ":")
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}
