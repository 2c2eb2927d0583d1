// Package recipe contains the generated recipe records and the persisted
// recipe built from them.
package recipe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FullRecipe is a synthesized recipe before its points assessment.
type FullRecipe struct {
	RecipeName       string            `json:"recipe_name"`
	ShortDescription string            `json:"short_description"`
	CookingTime      float64           `json:"cooking_time"`
	Difficulty       DifficultyLevel   `json:"difficulty"`
	Ingredients      []string          `json:"ingredients"`
	Instructions     []string          `json:"instructions"`
	URL              string            `json:"url,omitempty"`
	IngredientUsage  []IngredientUsage `json:"ingredient_usage,omitempty"`
}

// Header returns the summary part of the recipe
func (f *FullRecipe) Header() RecipeHeader {
	return RecipeHeader{
		RecipeName:       f.RecipeName,
		ShortDescription: f.ShortDescription,
		CookingTime:      f.CookingTime,
	}
}

// Validate checks the record invariants
func (f *FullRecipe) Validate() error {
	if strings.TrimSpace(f.RecipeName) == "" {
		return ErrMissingName
	}
	if strings.TrimSpace(f.ShortDescription) == "" {
		return ErrMissingDescription
	}
	if f.CookingTime <= 0 {
		return ErrInvalidCookingTime
	}
	if !f.Difficulty.IsValid() {
		return ErrInvalidDifficulty
	}
	if len(nonEmpty(f.Ingredients)) == 0 {
		return ErrNoIngredients
	}
	if len(nonEmpty(f.Instructions)) == 0 {
		return ErrNoInstructions
	}
	for _, u := range f.IngredientUsage {
		if strings.TrimSpace(u.Name) == "" || u.Amount <= 0 {
			return ErrInvalidUsage
		}
	}
	return nil
}

// PointsAssessment is the scored evaluation of a FullRecipe.
type PointsAssessment struct {
	NutritionalValues     string   `json:"nutritional_values"`
	CarbonFootprint       *float64 `json:"carbon_footprint,omitempty"`
	PointsResponse        int      `json:"points_response"`
	JustificationResponse string   `json:"justification_response"`
	Warnings              string   `json:"warnings"`
}

// Validate checks the record invariants
func (a *PointsAssessment) Validate() error {
	if strings.TrimSpace(a.NutritionalValues) == "" {
		return ErrMissingNutrition
	}
	if strings.TrimSpace(a.JustificationResponse) == "" {
		return ErrMissingJustification
	}
	if a.PointsResponse < 0 {
		return ErrNegativePoints
	}
	if a.CarbonFootprint != nil && *a.CarbonFootprint < 0 {
		return ErrInvalidCarbonFootprint
	}
	return nil
}

// Recipe is the persisted, assessed recipe. It is keyed by RecipeName and
// replaced wholesale when a recipe of the same name is confirmed again.
type Recipe struct {
	RecipeName            string            `json:"recipe_name"`
	ShortDescription      string            `json:"short_description"`
	CookingTime           float64           `json:"cooking_time"`
	Difficulty            DifficultyLevel   `json:"difficulty"`
	Ingredients           []string          `json:"ingredients"`
	Instructions          []string          `json:"instructions"`
	URL                   string            `json:"url,omitempty"`
	IngredientUsage       []IngredientUsage `json:"ingredient_usage,omitempty"`
	NutritionalValues     string            `json:"nutritional_values"`
	CarbonFootprint       *float64          `json:"carbon_footprint,omitempty"`
	PointsResponse        int               `json:"points_response"`
	JustificationResponse string            `json:"justification_response"`
	Warnings              string            `json:"warnings"`
	ProposalID            string            `json:"proposal_id,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
}

// NewRecipe builds the persisted record from a recipe and its assessment.
// Every field is mapped explicitly; the two inputs share no keys.
func NewRecipe(full FullRecipe, assessment PointsAssessment) (*Recipe, error) {
	if err := full.Validate(); err != nil {
		return nil, err
	}
	if err := assessment.Validate(); err != nil {
		return nil, err
	}

	var carbon *float64
	if assessment.CarbonFootprint != nil {
		v := *assessment.CarbonFootprint
		carbon = &v
	}

	return &Recipe{
		RecipeName:            strings.TrimSpace(full.RecipeName),
		ShortDescription:      full.ShortDescription,
		CookingTime:           full.CookingTime,
		Difficulty:            full.Difficulty,
		Ingredients:           append([]string{}, full.Ingredients...),
		Instructions:          append([]string{}, full.Instructions...),
		URL:                   full.URL,
		IngredientUsage:       append([]IngredientUsage(nil), full.IngredientUsage...),
		NutritionalValues:     assessment.NutritionalValues,
		CarbonFootprint:       carbon,
		PointsResponse:        assessment.PointsResponse,
		JustificationResponse: assessment.JustificationResponse,
		Warnings:              assessment.Warnings,
		CreatedAt:             time.Now().UTC(),
	}, nil
}

// Full returns the recipe part of the record
func (r *Recipe) Full() FullRecipe {
	return FullRecipe{
		RecipeName:       r.RecipeName,
		ShortDescription: r.ShortDescription,
		CookingTime:      r.CookingTime,
		Difficulty:       r.Difficulty,
		Ingredients:      r.Ingredients,
		Instructions:     r.Instructions,
		URL:              r.URL,
		IngredientUsage:  r.IngredientUsage,
	}
}

// Assessment returns the scoring part of the record
func (r *Recipe) Assessment() PointsAssessment {
	return PointsAssessment{
		NutritionalValues:     r.NutritionalValues,
		CarbonFootprint:       r.CarbonFootprint,
		PointsResponse:        r.PointsResponse,
		JustificationResponse: r.JustificationResponse,
		Warnings:              r.Warnings,
	}
}

// Fingerprint is the hex SHA-256 of the canonical JSON of the assessed
// record. ProposalID and CreatedAt are excluded so the same content always
// yields the same value.
func (r *Recipe) Fingerprint() string {
	canonical := struct {
		Full       FullRecipe       `json:"recipe"`
		Assessment PointsAssessment `json:"assessment"`
	}{r.Full(), r.Assessment()}

	// Marshal cannot fail on these types.
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Proposal is a generated, assessed recipe that has not been confirmed yet.
type Proposal struct {
	ID          string           `json:"proposal_id"`
	TenantID    string           `json:"tenant_id"`
	Recipe      FullRecipe       `json:"recipe"`
	Assessment  PointsAssessment `json:"assessment"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// NewProposal wraps an assessed recipe with a fresh id
func NewProposal(tenantID string, full FullRecipe, assessment PointsAssessment) *Proposal {
	return &Proposal{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Recipe:      full,
		Assessment:  assessment,
		GeneratedAt: time.Now().UTC(),
	}
}

// ToRecipe builds the persisted record carrying the proposal id
func (p *Proposal) ToRecipe() (*Recipe, error) {
	r, err := NewRecipe(p.Recipe, p.Assessment)
	if err != nil {
		return nil, err
	}
	r.ProposalID = p.ID
	return r, nil
}

// Confirmation is a ledger entry proving a recipe was applied once.
type Confirmation struct {
	TenantID       string    `json:"tenant_id"`
	ConfirmationID string    `json:"confirmation_id"`
	RecipeName     string    `json:"recipe_name"`
	Points         int       `json:"points"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
