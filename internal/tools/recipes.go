package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"chefmate/internal/recipes"
)

// Tool names exposed to the model.
const (
	FindRecipes      = "findRecipes"
	GetRecipeDetails = "getRecipeDetails"
	GetNutritionByID = "getNutritionById"
)

// NoInstructions is returned when a recipe has neither structured steps nor
// raw instructions text.
const NoInstructions = "No instructions available."

// Cuisines lists the cuisines accepted by findRecipes.
var Cuisines = []string{
	"African", "Asian", "American", "British", "Cajun", "Caribbean", "Chinese",
	"Eastern European", "European", "French", "German", "Greek", "Indian",
	"Irish", "Italian", "Japanese", "Jewish", "Korean", "Latin American",
	"Mediterranean", "Mexican", "Middle Eastern", "Nordic", "Southern",
	"Spanish", "Thai", "Vietnamese",
}

// MealTypes lists the meal types accepted by findRecipes.
var MealTypes = []string{
	"main course", "side dish", "dessert", "appetizer", "salad", "bread",
	"breakfast", "soup", "beverage", "sauce", "marinade", "fingerfood",
	"snack", "drink",
}

// Catalog is the recipe data source the tools call into.
type Catalog interface {
	Search(ctx context.Context, q recipes.SearchQuery) recipes.Result[recipes.SearchResponse]
	Information(ctx context.Context, id int64) recipes.Result[recipes.Information]
	Nutrition(ctx context.Context, id int64) recipes.Result[recipes.NutritionWidget]
}

// Options tunes the recipe tools.
type Options struct {
	// ResultLimit is sent as the search page size.
	ResultLimit int
	// EnforceProvenance rejects detail and nutrition lookups for ids that the
	// conversation ledger has not seen.
	EnforceProvenance bool
}

// RecipeSummary identifies a search hit.
type RecipeSummary struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// RecipeDetails is the getRecipeDetails payload.
type RecipeDetails struct {
	Title        string       `json:"title"`
	Ingredients  []string     `json:"ingredients"`
	Instructions Instructions `json:"instructions"`
	Servings     int          `json:"servings"`
}

// Instructions holds either ordered steps or raw text. It encodes as a JSON
// array when steps are present and as a string otherwise.
type Instructions struct {
	Steps []string
	Text  string
}

// MarshalJSON implements json.Marshaler.
func (i Instructions) MarshalJSON() ([]byte, error) {
	if len(i.Steps) > 0 {
		return json.Marshal(i.Steps)
	}
	return json.Marshal(i.Text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Instructions) UnmarshalJSON(data []byte) error {
	var steps []string
	if err := json.Unmarshal(data, &steps); err == nil {
		*i = Instructions{Steps: steps}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("instructions must be a string or a list of strings: %w", err)
	}
	*i = Instructions{Text: text}
	return nil
}

// NutritionInfo is the getNutritionById payload.
type NutritionInfo struct {
	Calories         string                   `json:"calories"`
	Protein          string                   `json:"protein"`
	Fat              string                   `json:"fat"`
	Carbs            string                   `json:"carbs"`
	CaloricBreakdown recipes.CaloricBreakdown `json:"caloricBreakdown"`
	WeightPerServing recipes.Weight           `json:"weightPerServing"`
}

type findRecipesParams struct {
	Ingredients []string `json:"ingredients,omitempty"`
	Cuisine     string   `json:"cuisine,omitempty"`
	Query       string   `json:"query,omitempty"`
	Type        string   `json:"type,omitempty"`
}

func (p *findRecipesParams) validate() error {
	p.Cuisine = strings.TrimSpace(p.Cuisine)
	if p.Cuisine != "" {
		canonical, ok := matchFold(Cuisines, p.Cuisine)
		if !ok {
			return fmt.Errorf("cuisine %q is not supported; choose one of: %s", p.Cuisine, strings.Join(Cuisines, ", "))
		}
		p.Cuisine = canonical
	}

	p.Type = strings.TrimSpace(p.Type)
	if p.Type != "" {
		canonical, ok := matchFold(MealTypes, p.Type)
		if !ok {
			return fmt.Errorf("type %q is not supported; choose one of: %s", p.Type, strings.Join(MealTypes, ", "))
		}
		p.Type = canonical
	}
	return nil
}

type recipeIDParams struct {
	RecipeID json.Number `json:"recipeId"`

	id int64
}

func (p *recipeIDParams) validate() error {
	if p.RecipeID == "" {
		return errors.New("recipeId is required")
	}
	id, err := p.RecipeID.Int64()
	if err != nil {
		f, ferr := p.RecipeID.Float64()
		if ferr != nil || f != math.Trunc(f) || f > math.MaxInt64 {
			return fmt.Errorf("recipeId must be an integer, got %s", p.RecipeID)
		}
		id = int64(f)
	}
	if id <= 0 {
		return fmt.Errorf("recipeId must be positive, got %d", id)
	}
	p.id = id
	return nil
}

// NewRecipeRegistry registers findRecipes, getRecipeDetails and
// getNutritionById against catalog.
func NewRecipeRegistry(catalog Catalog, opts Options) (*Registry, error) {
	if catalog == nil {
		return nil, errors.New("recipe catalog must not be nil")
	}
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = 5
	}

	rt := recipeTools{catalog: catalog, opts: opts}
	registry := NewRegistry()

	for _, tool := range []Tool{
		{
			Name:        FindRecipes,
			Description: "Finds recipe suggestions. Can filter by a list of ingredients the user has, a specific cuisine, a meal type and/or a free-text query.",
			Parameters:  findRecipesSchema(),
			Execute:     typed(FindRecipes, (*findRecipesParams).validate, rt.find),
		},
		{
			Name:        GetRecipeDetails,
			Description: "Gets detailed information for a specific recipe, including its full ingredient list, cooking instructions and servings. Does not include nutrition facts. The recipeId must come from a previous findRecipes result.",
			Parameters:  recipeIDSchema("The ID of the recipe, taken from a previous findRecipes result."),
			Execute:     typed(GetRecipeDetails, (*recipeIDParams).validate, rt.details),
		},
		{
			Name:        GetNutritionByID,
			Description: "Gets detailed nutrition information for a specific recipe by its ID. Use this when the user asks for nutrition facts. The recipeId must come from a previous findRecipes result.",
			Parameters:  recipeIDSchema("The ID of the recipe to get nutrition for, taken from a previous findRecipes result."),
			Execute:     typed(GetNutritionByID, (*recipeIDParams).validate, rt.nutrition),
		},
	} {
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

type recipeTools struct {
	catalog Catalog
	opts    Options
}

func (rt recipeTools) find(ctx context.Context, p findRecipesParams) any {
	res := rt.catalog.Search(ctx, recipes.SearchQuery{
		Ingredients: p.Ingredients,
		Cuisine:     p.Cuisine,
		Query:       p.Query,
		Type:        p.Type,
		Number:      rt.opts.ResultLimit,
	})
	if !res.OK() {
		return upstreamError(res.Err, "Failed to fetch recipes.")
	}

	summaries := make([]RecipeSummary, 0, len(res.Data.Results))
	ids := make([]int64, 0, len(res.Data.Results))
	for _, hit := range res.Data.Results {
		summaries = append(summaries, RecipeSummary{ID: hit.ID, Title: hit.Title})
		ids = append(ids, hit.ID)
	}
	if ledger, ok := LedgerFrom(ctx); ok {
		ledger.Record(ids...)
	}
	return summaries
}

func (rt recipeTools) details(ctx context.Context, p recipeIDParams) any {
	if failed, rejected := rt.checkProvenance(ctx, p.id); rejected {
		return failed
	}

	res := rt.catalog.Information(ctx, p.id)
	if !res.OK() {
		return upstreamError(res.Err, "Failed to fetch recipe details.")
	}
	info := res.Data

	ingredients := make([]string, 0, len(info.ExtendedIngredients))
	for _, ing := range info.ExtendedIngredients {
		ingredients = append(ingredients, ing.Original)
	}

	return RecipeDetails{
		Title:        info.Title,
		Ingredients:  ingredients,
		Instructions: instructionsFor(info),
		Servings:     info.Servings,
	}
}

func (rt recipeTools) nutrition(ctx context.Context, p recipeIDParams) any {
	if failed, rejected := rt.checkProvenance(ctx, p.id); rejected {
		return failed
	}

	res := rt.catalog.Nutrition(ctx, p.id)
	if !res.OK() {
		return upstreamError(res.Err, "Failed to fetch nutrition information.")
	}
	n := res.Data

	return NutritionInfo{
		Calories:         n.Calories,
		Protein:          n.Protein,
		Fat:              n.Fat,
		Carbs:            n.Carbs,
		CaloricBreakdown: n.CaloricBreakdown,
		WeightPerServing: n.WeightPerServing,
	}
}

func (rt recipeTools) checkProvenance(ctx context.Context, id int64) (ErrorResult, bool) {
	if !rt.opts.EnforceProvenance {
		return ErrorResult{}, false
	}
	ledger, ok := LedgerFrom(ctx)
	if ok && ledger.Seen(id) {
		return ErrorResult{}, false
	}
	return errorf("Recipe %d was not found in this conversation. Search for the recipe with findRecipes first.", id), true
}

// instructionsFor prefers structured steps, then raw text, then NoInstructions.
func instructionsFor(info *recipes.Information) Instructions {
	var steps []string
	for _, group := range info.AnalyzedInstructions {
		for _, step := range group.Steps {
			if text := strings.TrimSpace(step.Step); text != "" {
				steps = append(steps, text)
			}
		}
	}
	if len(steps) > 0 {
		return Instructions{Steps: steps}
	}
	if text := strings.TrimSpace(info.Instructions); text != "" {
		return Instructions{Text: text}
	}
	return Instructions{Text: NoInstructions}
}

// upstreamError hides upstream bodies behind a uniform message.
func upstreamError(err *recipes.Error, message string) ErrorResult {
	if err != nil && err.Kind == recipes.ErrorNetwork {
		return ErrorResult{Error: "Failed to connect to the recipe service."}
	}
	return ErrorResult{Error: message}
}

func matchFold(options []string, value string) (string, bool) {
	idx := slices.IndexFunc(options, func(option string) bool {
		return strings.EqualFold(option, value)
	})
	if idx < 0 {
		return "", false
	}
	return options[idx], true
}

func findRecipesSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ingredients": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "A list of ingredients that the user has available.",
			},
			"cuisine": map[string]any{
				"type":        "string",
				"enum":        Cuisines,
				"description": "The cuisine to filter recipes by. If the user asks for a cuisine not in this list, tell them and ask them to choose one of the available options.",
			},
			"query": map[string]any{
				"type":        "string",
				"description": "A natural language recipe search query, e.g. 'pasta carbonara'.",
			},
			"type": map[string]any{
				"type":        "string",
				"enum":        MealTypes,
				"description": "The meal type to filter recipes by.",
			},
		},
		"additionalProperties": false,
	}
}

func recipeIDSchema(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recipeId": map[string]any{
				"type":        "integer",
				"description": description,
			},
		},
		"required":             []string{"recipeId"},
		"additionalProperties": false,
	}
}
