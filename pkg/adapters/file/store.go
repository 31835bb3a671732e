// Package file provides a filesystem-backed ports.PlanStore.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/google/uuid"
)

// Store implements ports.PlanStore using the local filesystem.
// It stores plans as JSON files in a configured directory.
type Store struct {
	BasePath string
	now      func() time.Time
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".waypoint/plans".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".waypoint", "plans")
	}
	return &Store{BasePath: basePath, now: time.Now}
}

// path returns the file for id. Only IDs the store could have generated are
// accepted, so an ID can never escape BasePath.
func (s *Store) path(id string) (string, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return filepath.Join(s.BasePath, id+".json"), true
}

// Save persists the plan to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, plan domain.ActionPlan) (domain.StoredPlan, error) {
	stored := domain.StoredPlan{
		ID:        uuid.NewString(),
		Plan:      plan,
		CreatedAt: s.now().UTC(),
	}

	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to ensure plan directory: %w", err)
	}
	destPath, _ := s.path(stored.ID)

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to marshal plan: %w", err)
	}

	// Same directory as the destination, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+stored.ID+"-*.json")
	if err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op after a successful rename
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to rename temp file: %w", err)
	}

	return stored, nil
}

// Load retrieves a plan from its JSON file.
func (s *Store) Load(ctx context.Context, id string) (domain.StoredPlan, error) {
	filePath, ok := s.path(id)
	if !ok {
		return domain.StoredPlan{}, domain.ErrPlanNotFound
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.StoredPlan{}, domain.ErrPlanNotFound
		}
		return domain.StoredPlan{}, fmt.Errorf("failed to read plan file: %w", err)
	}

	var stored domain.StoredPlan
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to unmarshal plan %s: %w", id, err)
	}
	return stored, nil
}

// Delete removes the plan file.
func (s *Store) Delete(ctx context.Context, id string) error {
	filePath, ok := s.path(id)
	if !ok {
		return nil
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete plan file: %w", err)
	}
	return nil
}

// List returns stored plan IDs, oldest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	var plans []domain.StoredPlan
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		stored, err := s.Load(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			if errors.Is(err, domain.ErrPlanNotFound) {
				continue // removed concurrently, or not a plan file
			}
			return nil, err
		}
		plans = append(plans, stored)
	}

	sort.Slice(plans, func(i, j int) bool {
		if !plans[i].CreatedAt.Equal(plans[j].CreatedAt) {
			return plans[i].CreatedAt.Before(plans[j].CreatedAt)
		}
		return plans[i].ID < plans[j].ID
	})

	ids := make([]string, len(plans))
	for i, p := range plans {
		ids[i] = p.ID
	}
	return ids, nil
}
