// Package gorm provides GORM model definitions and the relational gateway
package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ecofridge/server/internal/domain/recipe"
)

// IngredientModel represents one inventory row
type IngredientModel struct {
	TenantID        string  `gorm:"type:varchar(128);primaryKey"`
	Name            string  `gorm:"type:varchar(255);primaryKey"`
	Count           float64 `gorm:"not null"`
	Units           string  `gorm:"type:varchar(64)"`
	Expiry          int     `gorm:"not null;default:0"`
	CarbonFootprint int     `gorm:"not null;default:1"`
	UpdatedAt       time.Time
}

// ProfileModel represents the per-tenant profile
type ProfileModel struct {
	TenantID     string      `gorm:"type:varchar(128);primaryKey"`
	Name         string      `gorm:"type:varchar(255)"`
	Exp          int         `gorm:"not null;default:0"`
	Allergies    StringSlice `gorm:"type:json"`
	Restrictions StringSlice `gorm:"type:json"`
	Diseases     StringSlice `gorm:"type:json"`
	UpdatedAt    time.Time
}

// RecipeModel represents a confirmed recipe, unique per tenant and name
type RecipeModel struct {
	TenantID              string      `gorm:"type:varchar(128);primaryKey"`
	RecipeName            string      `gorm:"type:varchar(255);primaryKey"`
	ShortDescription      string      `gorm:"type:text"`
	CookingTime           float64     `gorm:"not null"`
	Difficulty            string      `gorm:"type:varchar(20);index"`
	Ingredients           StringSlice `gorm:"type:json"`
	Instructions          StringSlice `gorm:"type:json"`
	URL                   string      `gorm:"type:text"`
	IngredientUsage       UsageList   `gorm:"type:json"`
	NutritionalValues     string      `gorm:"type:text"`
	CarbonFootprint       *float64
	PointsResponse        int    `gorm:"not null"`
	JustificationResponse string `gorm:"type:text"`
	Warnings              string `gorm:"type:text"`
	ProposalID            string `gorm:"type:varchar(64)"`
	CreatedAt             time.Time
}

// ConfirmationModel is one ledger row
type ConfirmationModel struct {
	TenantID       string `gorm:"type:varchar(128);primaryKey"`
	ConfirmationID string `gorm:"type:varchar(128);primaryKey"`
	RecipeName     string `gorm:"type:varchar(255)"`
	Points         int
	ConfirmedAt    time.Time `gorm:"index"`
}

// Models lists every table, in AutoMigrate order
func Models() []interface{} {
	return []interface{}{
		&IngredientModel{},
		&ProfileModel{},
		&RecipeModel{},
		&ConfirmationModel{},
	}
}

// StringSlice custom type for handling string slices in JSON
type StringSlice []string

// Scan implements the sql.Scanner interface
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}
}

// Value implements the driver.Valuer interface
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// UsageList stores ingredient_usage as JSON
type UsageList []recipe.IngredientUsage

// Scan implements the sql.Scanner interface
func (u *UsageList) Scan(value interface{}) error {
	if value == nil {
		*u = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, u)
	case string:
		return json.Unmarshal([]byte(v), u)
	default:
		return fmt.Errorf("cannot scan %T into UsageList", value)
	}
}

// Value implements the driver.Valuer interface
func (u UsageList) Value() (driver.Value, error) {
	if len(u) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// TableName methods for custom table names
func (IngredientModel) TableName() string {
	return "inventory_items"
}

func (ProfileModel) TableName() string {
	return "profiles"
}

func (RecipeModel) TableName() string {
	return "recipes"
}

func (ConfirmationModel) TableName() string {
	return "confirmations"
}
