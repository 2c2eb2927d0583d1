package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ReturnsEmptyProfile(t *testing.T) {
	p := New(DefaultTenantID)

	assert.Equal(t, "user1", p.TenantID)
	assert.Zero(t, p.Exp)
	assert.Empty(t, p.Allergies)
	assert.NoError(t, p.Validate())
}

func TestNormalize_DedupesPreservingOrder(t *testing.T) {
	p := &Profile{
		TenantID:     "t",
		Name:         "  Sam ",
		Allergies:    []string{"Dairy", "nuts", " dairy", ""},
		Restrictions: []string{"pork", "Pork"},
	}

	p.Normalize()

	assert.Equal(t, "Sam", p.Name)
	assert.Equal(t, []string{"Dairy", "nuts"}, p.Allergies)
	assert.Equal(t, []string{"pork"}, p.Restrictions)
	assert.Equal(t, []string{}, p.Diseases)
}

func TestAddExperience(t *testing.T) {
	p := New("t")

	require.NoError(t, p.AddExperience(10))
	require.NoError(t, p.AddExperience(0))
	assert.Equal(t, 10, p.Exp)

	assert.ErrorIs(t, p.AddExperience(-1), ErrNegativePoints)
	assert.Equal(t, 10, p.Exp)
}

func TestForbiddenTermsAndClone(t *testing.T) {
	p := &Profile{TenantID: "t", Allergies: []string{"dairy"}, Restrictions: []string{"pork", "Dairy"}}

	assert.Equal(t, []string{"dairy", "pork"}, p.ForbiddenTerms())

	c := p.Clone()
	c.Allergies[0] = "gluten"
	assert.Equal(t, "dairy", p.Allergies[0])
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, (&Profile{}).Validate(), ErrMissingTenant)
	assert.ErrorIs(t, (&Profile{TenantID: "t", Exp: -3}).Validate(), ErrNegativeExp)
}
