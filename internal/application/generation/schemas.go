package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const detectionSchema = `{
  "type": "object",
  "properties": {
    "ingredients": {
      "type": "array",
      "description": "Every food ingredient visible in the image.",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string", "minLength": 1, "description": "Ingredient name."},
          "count": {"type": "number", "exclusiveMinimum": 0, "description": "Number of items or measured amount."},
          "units": {"type": "string", "description": "Measurement units, or piece."},
          "expiry": {"type": "integer", "minimum": 0, "description": "Days until expiry assuming recent purchase."},
          "carbon_footprint": {"type": "integer", "enum": [1, 2, 3], "description": "1 lowest, 3 highest footprint."}
        },
        "required": ["name", "count", "units", "expiry", "carbon_footprint"]
      }
    }
  },
  "required": ["ingredients"]
}`

const recipeSchema = `{
  "type": "object",
  "properties": {
    "recipe_name": {"type": "string", "minLength": 1, "description": "The name of the recipe."},
    "short_description": {"type": "string", "minLength": 1, "description": "A short description of the recipe."},
    "cooking_time": {"type": "number", "exclusiveMinimum": 0, "description": "The time required to cook the recipe in minutes."},
    "difficulty": {"type": "string", "enum": ["Easy", "Medium", "Hard"], "description": "The difficulty level of the recipe."},
    "ingredients": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string"},
      "description": "A list of ingredients required for the recipe."
    },
    "instructions": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string"},
      "description": "Step-by-step instructions for preparing the recipe."
    },
    "url": {"type": "string", "description": "A URL to the full recipe or source."},
    "ingredient_usage": {
      "type": "array",
      "description": "Inventory items the recipe consumes and how many units.",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "amount": {"type": "number", "exclusiveMinimum": 0}
        },
        "required": ["name", "amount"]
      }
    }
  },
  "required": ["recipe_name", "short_description", "cooking_time", "difficulty", "ingredients", "instructions"]
}`

const pointsSchema = `{
  "type": "object",
  "properties": {
    "nutritional_values": {"type": "string", "description": "The nutritional information as a string."},
    "carbon_footprint": {"type": "number", "minimum": 0, "description": "The carbon footprint of the recipe, in grams."},
    "points_response": {"type": "integer", "minimum": 0, "description": "The points awarded."},
    "justification_response": {"type": "string", "description": "A textual justification or reasoning."},
    "warnings": {"type": "string", "description": "Warnings or alerts as a string."}
  },
  "required": ["nutritional_values", "points_response", "justification_response"]
}`

// outputSchema is one response contract: the document sent to the provider
// and its compiled form used to validate the parsed output.
type outputSchema struct {
	name     string
	document map[string]interface{}
	compiled *jsonschema.Schema
}

func compileSchema(name, source string) (*outputSchema, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(source), &doc); err != nil {
		return nil, fmt.Errorf("schema %s is not JSON: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://ecofridge.local/schemas/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("schema %s load failed: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s compile failed: %w", name, err)
	}
	return &outputSchema{name: name, document: doc, compiled: compiled}, nil
}

// Document returns a fresh copy of the schema for a provider request
func (s *outputSchema) Document() map[string]interface{} {
	var doc map[string]interface{}
	data, _ := json.Marshal(s.document)
	_ = json.Unmarshal(data, &doc)
	return doc
}

type schemaSet struct {
	detection *outputSchema
	recipe    *outputSchema
	points    *outputSchema
}

func loadSchemas() (*schemaSet, error) {
	detection, err := compileSchema("ingredients", detectionSchema)
	if err != nil {
		return nil, err
	}
	recipeOut, err := compileSchema("recipe", recipeSchema)
	if err != nil {
		return nil, err
	}
	points, err := compileSchema("points", pointsSchema)
	if err != nil {
		return nil, err
	}
	return &schemaSet{detection: detection, recipe: recipeOut, points: points}, nil
}
