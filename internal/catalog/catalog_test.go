package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accessgov/internal/models"
)

func TestDefault_Loads(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, c.Version)
	assert.Equal(t, "Colaborador Básico", c.FallbackProfile)

	page, ok := c.Page("login")
	require.True(t, ok)
	assert.True(t, page.Public)

	page, ok = c.Page("admin.profiles")
	require.True(t, ok)
	assert.True(t, page.InternalOnly)
	assert.Equal(t, models.LevelTotal, page.RequiredLevel())

	module, ok := c.EntityModule("Employee")
	require.True(t, ok)
	assert.Equal(t, "colaboradores", module)

	assert.Equal(t, []string{"socio", "diretor", "gerente", "financeiro"}, c.EntityJobRoles("FinancialRecord"))
	assert.Nil(t, c.EntityJobRoles("Employee"))
	assert.False(t, c.HasEntity("Spaceship"))
}

func TestProfileNameFor(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	tests := []struct {
		jobRole  string
		wantName string
		wantTier string
	}{
		{"financeiro", "Financeiro - Gestão Financeira", "finance_hr"},
		{"  Financeiro ", "Financeiro - Gestão Financeira", "finance_hr"},
		{"rh", "RH - Gestão de Pessoas", "finance_hr"},
		{"socio", "Diretoria - Gestão Executiva", "executive"},
		{"supervisor", "Gerência - Gestão Operacional", "managerial"},
		{"chefe_oficina", "Liderança Técnica - Oficina", "technical_lead"},
		{"mecanico", "Colaborador Básico", ""},
		{"", "Colaborador Básico", ""},
	}

	for _, tt := range tests {
		t.Run(tt.jobRole, func(t *testing.T) {
			name, tier := c.ProfileNameFor(tt.jobRole)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantTier, tier)
		})
	}
}

func TestDefaultsFor(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	t.Run("fallback is blocked except dashboard and training", func(t *testing.T) {
		perms := c.DefaultsFor("")
		for _, module := range c.Modules {
			switch module.Key {
			case "dashboard", "training":
				assert.Equal(t, models.LevelView, perms[module.Key], module.Key)
			default:
				assert.Equal(t, models.LevelBlocked, perms[module.Key], module.Key)
			}
		}
	})

	t.Run("finance tier", func(t *testing.T) {
		perms := c.DefaultsFor("finance_hr")
		assert.Equal(t, models.LevelTotal, perms["resultados"])
		assert.Equal(t, models.LevelBlocked, perms["cadastros"])
	})

	t.Run("tiers are richer than fallback", func(t *testing.T) {
		base := c.DefaultsFor("")
		for _, tier := range c.Tiers {
			perms := c.DefaultsFor(tier.Key)
			richer := false
			for module, level := range perms {
				assert.True(t, level.AtLeast(base[module]), "%s/%s", tier.Key, module)
				if level.Rank() > base[module].Rank() {
					richer = true
				}
			}
			assert.True(t, richer, tier.Key)
		}
	})

	assert.Equal(t, []string{"finance"}, c.RolesFor("finance_hr"))
	assert.Nil(t, c.RolesFor("unknown"))
	assert.Equal(t, []string{"diretor", "socio"}, c.JobRolesFor("Diretoria - Gestão Executiva"))
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing version",
			yaml: `
fallback_profile: x
modules: [{key: a}]`,
		},
		{
			name: "invalid level",
			yaml: `
version: "1"
fallback_profile: x
default_levels: {a: admin}
modules: [{key: a}]`,
		},
		{
			name: "page with unknown module",
			yaml: `
version: "1"
fallback_profile: x
modules: [{key: a}]
pages: [{id: p, module: b}]`,
		},
		{
			name: "page without constraint",
			yaml: `
version: "1"
fallback_profile: x
modules: [{key: a}]
pages: [{id: p}]`,
		},
		{
			name: "entity owned twice",
			yaml: `
version: "1"
fallback_profile: x
modules: [{key: a, entities: [E]}, {key: b, entities: [E]}]`,
		},
		{
			name: "job role with unknown tier",
			yaml: `
version: "1"
fallback_profile: x
modules: [{key: a}]
job_roles: [{job_role: r, profile: P, tier: nope}]`,
		},
		{
			name: "duplicate job role after normalisation",
			yaml: `
version: "1"
fallback_profile: x
modules: [{key: a}]
job_roles: [{job_role: r, profile: P}, {job_role: " R", profile: Q}]`,
		},
		{
			name: "not yaml",
			yaml: "version: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.PageIDs())

	_, err = Load("/nonexistent/catalog.yaml")
	assert.Error(t, err)
}

func TestContainsJobRole(t *testing.T) {
	assert.True(t, ContainsJobRole([]string{"Gerente"}, " gerente"))
	assert.False(t, ContainsJobRole([]string{"gerente"}, ""))
	assert.False(t, ContainsJobRole(nil, "gerente"))
}
