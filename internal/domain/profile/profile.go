// Package profile contains the dietary profile of a tenant.
package profile

import (
	"strings"
)

// DefaultTenantID addresses the single profile of a default deployment
const DefaultTenantID = "user1"

// Profile is the dietary profile and accumulated score of one tenant.
type Profile struct {
	TenantID     string   `json:"tenant_id"`
	Name         string   `json:"name"`
	Exp          int      `json:"exp"`
	Allergies    []string `json:"allergies"`
	Restrictions []string `json:"restrictions"`
	Diseases     []string `json:"diseases"`
}

// New returns the empty profile of a tenant
func New(tenantID string) *Profile {
	return &Profile{
		TenantID:     tenantID,
		Allergies:    []string{},
		Restrictions: []string{},
		Diseases:     []string{},
	}
}

// Normalize trims the name and de-duplicates every term list.
func (p *Profile) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Allergies = DedupeTerms(p.Allergies)
	p.Restrictions = DedupeTerms(p.Restrictions)
	p.Diseases = DedupeTerms(p.Diseases)
}

// Validate checks the profile invariants
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.TenantID) == "" {
		return ErrMissingTenant
	}
	if p.Exp < 0 {
		return ErrNegativeExp
	}
	return nil
}

// AddExperience credits points. Negative points are refused so exp never
// decreases through scoring.
func (p *Profile) AddExperience(points int) error {
	if points < 0 {
		return ErrNegativePoints
	}
	p.Exp += points
	return nil
}

// ForbiddenTerms returns allergies followed by restrictions, de-duplicated.
func (p *Profile) ForbiddenTerms() []string {
	terms := make([]string, 0, len(p.Allergies)+len(p.Restrictions))
	terms = append(terms, p.Allergies...)
	terms = append(terms, p.Restrictions...)
	return DedupeTerms(terms)
}

// Clone returns a deep copy
func (p *Profile) Clone() *Profile {
	c := *p
	c.Allergies = append([]string{}, p.Allergies...)
	c.Restrictions = append([]string{}, p.Restrictions...)
	c.Diseases = append([]string{}, p.Diseases...)
	return &c
}

// DedupeTerms trims terms, drops empty ones and removes case-insensitive
// duplicates while keeping first-appearance order.
func DedupeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
