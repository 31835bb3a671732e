package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/waypoint/internal/testutils"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T, docs map[string]string) *Catalog {
	t.Helper()

	_, repo := testutils.SetupTestRepo(t, loam.WithVersioning(false))
	testutils.SeedDocuments(t, repo, docs)
	return New(loam.NewTypedRepository[Metadata](repo))
}

func TestCatalog_Resources(t *testing.T) {
	cat := setupRepo(t, map[string]string{
		"food-bank.md": `---
name: Central Texas Food Bank
referral_type: external
phones:
  - 512-555-0100
website: https://foodbank.example.org
---
Groceries and hot meals, Monday to Friday.`,
		"career-academy.md": `---
name: Goodwill Career Academy
description: Free job training
referral_type: goodwill
---
Ignored body because the frontmatter has a description.`,
	})

	got, err := cat.Resources(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.Resource{
		{
			Name:         "Goodwill Career Academy",
			Description:  "Free job training",
			ReferralType: domain.ReferralGoodwill,
		},
		{
			Name:         "Central Texas Food Bank",
			Description:  "Groceries and hot meals, Monday to Friday.",
			Phones:       []string{"512-555-0100"},
			Website:      "https://foodbank.example.org",
			ReferralType: domain.ReferralExternal,
		},
	}, got)
}

func TestCatalog_Select(t *testing.T) {
	cat := setupRepo(t, map[string]string{
		"a.md": "---\nname: A\n---\nfirst",
		"b.md": "---\nname: B\n---\nsecond",
	})

	got, err := cat.Select(context.Background(), []string{"b", "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Name)
	assert.Equal(t, "A", got[1].Name)

	_, err = cat.Select(context.Background(), []string{"missing"})
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestCatalog_InvalidDocument(t *testing.T) {
	cat := setupRepo(t, map[string]string{
		"broken.md": "---\nname: Broken\nreferral_type: charity\n---\nbody",
	})

	_, err := cat.Resources(context.Background())
	assert.ErrorIs(t, err, ErrInvalidResource)
}

func TestDecode(t *testing.T) {
	yamlList := `
- name: Food Bank
  description: Groceries
  phones: [5125550100]
- name: Housing Authority
  description: Vouchers
  referral_type: Government
`
	got, err := Decode([]byte(yamlList))
	require.NoError(t, err)
	assert.Equal(t, []domain.Resource{
		{Name: "Food Bank", Description: "Groceries", Phones: []string{"5125550100"}},
		{Name: "Housing Authority", Description: "Vouchers", ReferralType: domain.ReferralGovernment},
	}, got)

	jsonList := `[{"name":"Clinic","description":"Care","emails":["front@clinic.example"]}]`
	got, err = Decode([]byte(jsonList))
	require.NoError(t, err)
	assert.Equal(t, []domain.Resource{{Name: "Clinic", Description: "Care", Emails: []string{"front@clinic.example"}}}, got)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"Not A List", `name: Food Bank`},
		{"Unknown Key", `[{"name":"A","description":"B","rating":5}]`},
		{"Missing Name", `[{"description":"B"}]`},
		{"Missing Description", `[{"name":"A"}]`},
		{"Bad Referral", `[{"name":"A","description":"B","referral_type":"other"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidResource)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: A\n  description: B\n"), 0o644))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []domain.Resource{{Name: "A", Description: "B"}}, got)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
