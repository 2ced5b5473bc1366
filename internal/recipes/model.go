package recipes

import "time"

// Recipe is the structured payload produced by the extraction service.
// Field names follow the service's wire schema.
type Recipe struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Cuisine     string `json:"cuisine,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`

	Servings         int `json:"servings,omitempty"`
	PrepTimeMinutes  int `json:"prep_time_minutes,omitempty"`
	CookTimeMinutes  int `json:"cook_time_minutes,omitempty"`
	TotalTimeMinutes int `json:"total_time_minutes,omitempty"`

	Calories     int     `json:"calories,omitempty"`
	ProteinGrams float64 `json:"protein_grams,omitempty"`
	CarbsGrams   float64 `json:"carbs_grams,omitempty"`
	FatGrams     float64 `json:"fat_grams,omitempty"`

	DietaryTags []string `json:"dietary_tags,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Equipment   []string `json:"equipment,omitempty"`

	CreatorName       string `json:"creator_name,omitempty"`
	CreatorProfileURL string `json:"creator_profile_url,omitempty"`

	Ingredients  []Ingredient  `json:"ingredients"`
	Instructions []Instruction `json:"instructions"`

	MethodUsed   string `json:"method_used,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Ingredient is a single structured ingredient
type Ingredient struct {
	RawText        string  `json:"raw_text"`
	Name           string  `json:"name"`
	NormalizedName string  `json:"normalized_name,omitempty"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
	Preparation    string  `json:"preparation,omitempty"`
	Category       string  `json:"category,omitempty"`
	Optional       bool    `json:"optional,omitempty"`
	SortOrder      int     `json:"sort_order,omitempty"`
}

// Instruction is a single cooking step
type Instruction struct {
	StepNumber  int    `json:"step_number"`
	Text        string `json:"text"`
	TimeSeconds int    `json:"time_seconds,omitempty"`
	Temperature string `json:"temperature,omitempty"`
	Tip         string `json:"tip,omitempty"`
}

// Record is a persisted recipe row, keyed by the canonical source URL for
// dedup lookups
type Record struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	SourceURL    string    `db:"source_url"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	MethodUsed   string    `db:"method_used"`
	ThumbnailURL string    `db:"thumbnail_url"`
	CreatedAt    time.Time `db:"created_at"`
}
