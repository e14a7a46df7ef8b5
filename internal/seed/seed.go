// Package seed loads an optional YAML file of initial services and inserts
// them when the catalog is empty. Used to bootstrap fresh deployments.
package seed

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/portalstack/portal-server/internal/domain"
	"github.com/portalstack/portal-server/internal/logger"
	"github.com/portalstack/portal-server/internal/manager"
)

// Entry is one service definition in the seed file.
type Entry struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	BaseURL         string `yaml:"baseUrl"`
	IsVisible       *bool  `yaml:"isVisible"`
	IsVisibleByRole *bool  `yaml:"isVisibleByRole"`
	DisplayName     string `yaml:"displayName"`
	IconURL         string `yaml:"iconUrl"`
}

// File is the top-level seed document.
type File struct {
	Services []Entry `yaml:"services"`
}

// Loader reads and parses a seed file.
type Loader struct {
	filePath string
}

func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Load reads and parses the seed YAML file.
func (l *Loader) Load() (*File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed yaml: %w", err)
	}

	return &f, nil
}

// Apply inserts the seed entries when the catalog holds no services.
// A non-empty catalog is left untouched so a restart never duplicates
// or resurrects entries.
func Apply(ctx context.Context, filePath string, mgr *manager.Manager, log logger.Logger) error {
	stats, err := mgr.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to check catalog before seeding: %w", err)
	}
	if stats.TotalServices > 0 {
		log.Debug("catalog not empty, skipping seed",
			logger.Int("services", stats.TotalServices))
		return nil
	}

	file, err := NewLoader(filePath).Load()
	if err != nil {
		return err
	}

	seeded := 0
	for _, entry := range file.Services {
		input := domain.CreateService{
			Name:            entry.Name,
			Description:     entry.Description,
			BaseURL:         entry.BaseURL,
			IsVisible:       entry.IsVisible,
			IsVisibleByRole: entry.IsVisibleByRole,
			DisplayName:     entry.DisplayName,
			IconURL:         entry.IconURL,
		}
		if err := mgr.Create(ctx, input); err != nil {
			log.Warn("failed to seed service",
				logger.String("name", entry.Name),
				logger.Error(err))
			continue
		}
		seeded++
	}

	log.Info("seeded catalog from file",
		logger.String("file", filePath),
		logger.Int("seeded", seeded))
	return nil
}
