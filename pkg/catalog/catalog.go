// Package catalog loads the candidate resources sent to the action plan
// backend, either from a Loam directory of markdown documents or from a single
// YAML/JSON list.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidResource  = errors.New("invalid resource")
	ErrResourceNotFound = errors.New("resource not found")
)

// Catalog reads resources from a Loam repository.
type Catalog struct {
	Repo *loam.TypedRepository[Metadata]
}

// New wraps a typed Loam repository.
func New(repo *loam.TypedRepository[Metadata]) *Catalog {
	return &Catalog{Repo: repo}
}

// Open initializes a read-only Loam repository rooted at dir.
func Open(dir string) (*Catalog, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[Metadata](repo)), nil
}

// Resources returns every resource in the catalog, ordered by ID.
func (c *Catalog) Resources(ctx context.Context) ([]domain.Resource, error) {
	docs, err := c.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	type entry struct {
		id  string
		res domain.Resource
	}
	entries := make([]entry, 0, len(docs))
	seen := make(map[string]string)

	for _, doc := range docs {
		id := docID(doc.Data.ID, doc.ID)
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existing, doc.ID)
		}
		seen[id] = doc.ID

		res := doc.Data.Resource(doc.Content)
		if err := Validate(res); err != nil {
			return nil, fmt.Errorf("%s: %w", doc.ID, err)
		}
		entries = append(entries, entry{id: id, res: res})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	out := make([]domain.Resource, len(entries))
	for i, e := range entries {
		out[i] = e.res
	}
	return out, nil
}

// Get returns a single resource by document ID (extension optional).
func (c *Catalog) Get(ctx context.Context, id string) (domain.Resource, error) {
	doc, err := c.Repo.Get(ctx, id)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("%w: %s: %v", ErrResourceNotFound, id, err)
	}
	res := doc.Data.Resource(doc.Content)
	if err := Validate(res); err != nil {
		return domain.Resource{}, fmt.Errorf("%s: %w", id, err)
	}
	return res, nil
}

// Select returns the resources with the given IDs, in the order given.
func (c *Catalog) Select(ctx context.Context, ids []string) ([]domain.Resource, error) {
	out := make([]domain.Resource, 0, len(ids))
	for _, id := range ids {
		res, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// LoadFile reads a YAML or JSON list of resources.
func LoadFile(path string) ([]domain.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resources: %w", err)
	}
	return Decode(data)
}

// Decode parses a YAML or JSON list of resources. Unknown keys are rejected.
func Decode(data []byte) ([]domain.Resource, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResource, err)
	}

	out := make([]domain.Resource, 0, len(raw))
	for i, item := range raw {
		var meta Metadata
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			ErrorUnused:      true,
			WeaklyTypedInput: true,
			Result:           &meta,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(item); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrInvalidResource, i, err)
		}

		res := meta.Resource("")
		if err := Validate(res); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, res)
	}
	return out, nil
}

// Validate checks the fields the backend needs.
func Validate(res domain.Resource) error {
	if res.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidResource)
	}
	if res.Description == "" {
		return fmt.Errorf("%w: %s: missing description", ErrInvalidResource, res.Name)
	}
	switch res.ReferralType {
	case "", domain.ReferralExternal, domain.ReferralGoodwill, domain.ReferralGovernment:
	default:
		return fmt.Errorf("%w: %s: unknown referral type %q", ErrInvalidResource, res.Name, res.ReferralType)
	}
	return nil
}

func docID(metaID, docID string) string {
	id := metaID
	if id == "" {
		id = docID
	}
	if ext := filepath.Ext(id); ext != "" {
		id = strings.TrimSuffix(id, ext)
	}
	return filepath.ToSlash(id)
}
