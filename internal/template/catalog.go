package template

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"planextract/internal/domain"
)

// Catalog names the template key of every stage.
type Catalog struct {
	Classification     string            `yaml:"classification"`
	PlanIdentification string            `yaml:"plan_identification"`
	KeyParams          map[string]string `yaml:"key_params"`
	PerPlan            map[string]string `yaml:"per_plan"`
}

// DefaultCatalog returns the deployed template keys.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Classification:     "classify-document-and-identify-carrier-loc-and-plan-names-v-1-0-variant-1",
		PlanIdentification: "plan-name-identification-prompt-v-18-0-variant-1",
		KeyParams: map[string]string{
			domain.LOCMedical: "key-parameter-extraction-prompt-medical-v-12-0-variant-1",
			domain.LOCDental:  "key-parameter-extraction-prompt-dental-v-9-0",
			domain.LOCVision:  "key-parameter-extraction-prompt-vision-v-5-0-variant-1",
			domain.LOCLifeADD: "key-parameter-extraction-prompt-life-and-or-add-v-6-0-variant-1",
			domain.LOCSTD:     "key-parameter-extraction-prompt-std-v-5-0-variant-1",
			domain.LOCLTD:     "key-parameter-extraction-prompt-ltd-v-5-0-variant-1",
			domain.LOCVL:      "key-parameter-extraction-prompt-vol-life-add-or-life-add-v-2-0-variant-1",
			domain.LOCVSTD:    "key-parameter-extraction-prompt-vol-std-v-2-0-variant-1",
			domain.LOCVLTD:    "key-parameter-extraction-prompt-vol-ltd-v-2-0-variant-1",
			domain.LOCVA:      "key-parameter-extraction-prompt-vol-accident-v-2-0-variant-1",
			domain.LOCVHI:     "key-parameter-extraction-prompt-vol-hospital-indemnity-v-2-0-variant-1",
			domain.LOCVCI:     "key-parameter-extraction-prompt-vol-critical-illness-v-2-0-variant-1",
		},
		PerPlan: map[string]string{
			domain.LOCMedical: "medical-unified-refiner-v-5-0-variant-1",
			domain.LOCDental:  "dental-unified-refiner-v-3-0-variant-1",
			domain.LOCVision:  "vision-unified-refiner-v-3-0-variant-1",
			domain.LOCLifeADD: "life-add-life-add-unified-refiner-v-2-0-variant-1",
			domain.LOCSTD:     "std-unified-refiner-v-3-0-variant-1",
			domain.LOCLTD:     "ltd-unified-refiner-v-3-0-variant-1",
			domain.LOCVL:      "vol-life-and-add-generic-unified-refiner-reducto-v-7-0-variant-1",
			domain.LOCVSTD:    "vol-std-generic-unified-refiner-reducto-v-8-0-variant-1",
			domain.LOCVLTD:    "vol-ltd-generic-unified-refiner-reducto-v-8-0-variant-1",
			domain.LOCVA:      "vol-accident-generic-unified-refiner-reducto-v-7-0-variant-1",
			domain.LOCVHI:     "vol-hospital-indemnity-generic-unified-refiner-reducto-v-7-0-variant-1",
			domain.LOCVCI:     "vol-critical-illness-generic-unified-refiner-reducto-v-7-0-variant-1",
		},
	}
}

// KeyParamsKey returns the key-parameter template for loc.
func (c *Catalog) KeyParamsKey(loc string) (string, bool) {
	k, ok := c.KeyParams[loc]
	return k, ok && k != ""
}

// PerPlanKey returns the per-plan template for loc.
func (c *Catalog) PerPlanKey(loc string) (string, bool) {
	k, ok := c.PerPlan[loc]
	return k, ok && k != ""
}

// LoadCatalog reads a YAML override file. Keys absent from the file keep
// their default values.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template catalog: %w", err)
	}

	var override Catalog
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse template catalog: %w", err)
	}

	cat := DefaultCatalog()
	if override.Classification != "" {
		cat.Classification = override.Classification
	}
	if override.PlanIdentification != "" {
		cat.PlanIdentification = override.PlanIdentification
	}
	for loc, key := range override.KeyParams {
		cat.KeyParams[loc] = key
	}
	for loc, key := range override.PerPlan {
		cat.PerPlan[loc] = key
	}
	return cat, nil
}

// CatalogSource holds the active catalog and reloads it when its file changes.
type CatalogSource struct {
	path string

	mu  sync.RWMutex
	cur *Catalog
}

// NewCatalogSource loads path, or the defaults when path is empty.
func NewCatalogSource(path string) (*CatalogSource, error) {
	cat := DefaultCatalog()
	if path != "" {
		loaded, err := LoadCatalog(path)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}
	return &CatalogSource{path: path, cur: cat}, nil
}

// StaticCatalog wraps a fixed catalog.
func StaticCatalog(c *Catalog) *CatalogSource {
	return &CatalogSource{cur: c}
}

// Current returns the active catalog. Callers must not modify it.
func (s *CatalogSource) Current() *Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Reload re-reads the catalog file. On error the active catalog is kept.
func (s *CatalogSource) Reload() error {
	if s.path == "" {
		return nil
	}
	cat, err := LoadCatalog(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cur = cat
	s.mu.Unlock()
	return nil
}

// Watch reloads the catalog whenever its file is written or replaced, until
// ctx is done. The parent directory is watched so editors that swap files
// atomically are picked up.
func (s *CatalogSource) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(s.path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watching template catalog: %w", err)
	}

	target := filepath.Clean(s.path)
	go func() {
		defer func() { _ = fsw.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.Reload(); err != nil {
					zap.L().Warn("template.CatalogSource.Watch: reload failed, keeping previous catalog",
						zap.String("path", s.path), zap.Error(err))
					continue
				}
				zap.L().Info("template.CatalogSource.Watch: catalog reloaded", zap.String("path", s.path))
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				zap.L().Error("template.CatalogSource.Watch: watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
