package recipes

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SearchQuery holds complexSearch filters. Empty fields are not sent.
type SearchQuery struct {
	Ingredients []string
	Cuisine     string
	Query       string
	Type        string
	Number      int
}

// Values encodes the defined filters only.
func (q SearchQuery) Values() url.Values {
	params := url.Values{}

	ingredients := make([]string, 0, len(q.Ingredients))
	for _, ing := range q.Ingredients {
		if ing = strings.TrimSpace(ing); ing != "" {
			ingredients = append(ingredients, ing)
		}
	}
	if len(ingredients) > 0 {
		params.Set("includeIngredients", strings.Join(ingredients, ","))
	}
	if cuisine := strings.TrimSpace(q.Cuisine); cuisine != "" {
		params.Set("cuisine", cuisine)
	}
	if query := strings.TrimSpace(q.Query); query != "" {
		params.Set("query", query)
	}
	if mealType := strings.TrimSpace(q.Type); mealType != "" {
		params.Set("type", mealType)
	}
	if q.Number > 0 {
		params.Set("number", strconv.Itoa(q.Number))
	}
	return params
}

// SearchResponse is the complexSearch payload.
type SearchResponse struct {
	Results      []SearchResult `json:"results"`
	Offset       int            `json:"offset"`
	Number       int            `json:"number"`
	TotalResults int            `json:"totalResults"`
}

// SearchResult is a single complexSearch hit.
type SearchResult struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Image string `json:"image,omitempty"`
}

// Information is the subset of /recipes/{id}/information we consume.
type Information struct {
	ID                   int64                 `json:"id"`
	Title                string                `json:"title"`
	Servings             int                   `json:"servings"`
	ReadyInMinutes       int                   `json:"readyInMinutes"`
	ExtendedIngredients  []ExtendedIngredient  `json:"extendedIngredients"`
	AnalyzedInstructions []AnalyzedInstruction `json:"analyzedInstructions"`
	Instructions         string                `json:"instructions"`
}

// ExtendedIngredient is one ingredient entry; Original is the display text.
type ExtendedIngredient struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Original string  `json:"original"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
}

// AnalyzedInstruction groups structured steps.
type AnalyzedInstruction struct {
	Name  string            `json:"name"`
	Steps []InstructionStep `json:"steps"`
}

// InstructionStep is one structured cooking step.
type InstructionStep struct {
	Number int    `json:"number"`
	Step   string `json:"step"`
}

// NutritionWidget is the /recipes/{id}/nutritionWidget.json payload.
type NutritionWidget struct {
	Calories         string           `json:"calories"`
	Carbs            string           `json:"carbs"`
	Fat              string           `json:"fat"`
	Protein          string           `json:"protein"`
	CaloricBreakdown CaloricBreakdown `json:"caloricBreakdown"`
	WeightPerServing Weight           `json:"weightPerServing"`
}

// CaloricBreakdown splits calories by macronutrient, in percent.
type CaloricBreakdown struct {
	PercentProtein float64 `json:"percentProtein"`
	PercentFat     float64 `json:"percentFat"`
	PercentCarbs   float64 `json:"percentCarbs"`
}

// Weight is an amount with its unit.
type Weight struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// Search runs GET /recipes/complexSearch.
func (c *Client) Search(ctx context.Context, q SearchQuery) Result[SearchResponse] {
	return Fetch[SearchResponse](ctx, c, "/recipes/complexSearch", q.Values())
}

// Information runs GET /recipes/{id}/information.
func (c *Client) Information(ctx context.Context, id int64) Result[Information] {
	return Fetch[Information](ctx, c, fmt.Sprintf("/recipes/%d/information", id), nil)
}

// Nutrition runs GET /recipes/{id}/nutritionWidget.json.
func (c *Client) Nutrition(ctx context.Context, id int64) Result[NutritionWidget] {
	return Fetch[NutritionWidget](ctx, c, fmt.Sprintf("/recipes/%d/nutritionWidget.json", id), nil)
}
