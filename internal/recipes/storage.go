package recipes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// DefaultCollectionName is the collection every saved recipe lands in
const DefaultCollectionName = "All Recipes"

// Storage handles all database operations for recipes and collections
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// FindByURL looks up an existing record by canonical source URL.
// Returns (nil, nil) when no record exists.
func (s *Storage) FindByURL(ctx context.Context, userID, url string) (*Record, error) {
	query := `
		SELECT id, user_id, source_url, title, description, method_used, thumbnail_url, created_at
		FROM recipes
		WHERE user_id = $1 AND source_url = $2
	`

	var rec Record
	err := s.db.GetContext(ctx, &rec, query, userID, url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find recipe by url: %w", err)
	}

	return &rec, nil
}

// SaveExtracted persists a newly extracted recipe with its ingredients and
// instructions in one transaction and adds it to the user's default
// collection. Returns the new record id.
func (s *Storage) SaveExtracted(ctx context.Context, userID, url string, recipe *Recipe) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	recipeID := uuid.New().String()
	now := time.Now()

	query := `
		INSERT INTO recipes (
			id, user_id, source_url, title, description, cuisine, difficulty,
			servings, prep_time_minutes, cook_time_minutes, total_time_minutes,
			calories, protein_grams, carbs_grams, fat_grams,
			creator_name, creator_profile_url, method_used, thumbnail_url,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18, $19,
			$20, $21
		)
	`

	_, err = tx.ExecContext(
		ctx,
		query,
		recipeID,
		userID,
		url,
		recipe.Title,
		recipe.Description,
		recipe.Cuisine,
		recipe.Difficulty,
		recipe.Servings,
		recipe.PrepTimeMinutes,
		recipe.CookTimeMinutes,
		recipe.TotalTimeMinutes,
		recipe.Calories,
		recipe.ProteinGrams,
		recipe.CarbsGrams,
		recipe.FatGrams,
		recipe.CreatorName,
		recipe.CreatorProfileURL,
		recipe.MethodUsed,
		recipe.ThumbnailURL,
		now,
		now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert recipe: %w", err)
	}

	ingQuery := `
		INSERT INTO recipe_ingredients (
			recipe_id, raw_text, name, normalized_name, quantity, unit,
			preparation, category, optional, sort_order
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for i, ing := range recipe.Ingredients {
		sortOrder := ing.SortOrder
		if sortOrder == 0 {
			sortOrder = i
		}
		_, err = tx.ExecContext(ctx, ingQuery,
			recipeID, ing.RawText, ing.Name, ing.NormalizedName, ing.Quantity,
			ing.Unit, ing.Preparation, ing.Category, ing.Optional, sortOrder,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert ingredient: %w", err)
		}
	}

	insQuery := `
		INSERT INTO recipe_instructions (
			recipe_id, step_number, text, time_seconds, temperature, tip
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, step := range recipe.Instructions {
		_, err = tx.ExecContext(ctx, insQuery,
			recipeID, step.StepNumber, step.Text, step.TimeSeconds, step.Temperature, step.Tip,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert instruction: %w", err)
		}
	}

	if err := s.addToDefaultCollection(ctx, tx, userID, recipeID); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit recipe: %w", err)
	}

	s.logger.Info("Recipe saved",
		slog.String("recipe_id", recipeID),
		slog.String("user_id", userID),
		slog.String("title", recipe.Title),
	)

	return recipeID, nil
}

// SaveToCollection adds an existing record to the user's default collection.
// Used by the dedup fast path.
func (s *Storage) SaveToCollection(ctx context.Context, userID, recipeID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.addToDefaultCollection(ctx, tx, userID, recipeID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to save to collection: %w", err)
	}

	return nil
}

// AddToCollection associates a record with a named collection. The insert is
// idempotent; associating twice is not an error.
func (s *Storage) AddToCollection(ctx context.Context, collectionID, recipeID string) error {
	query := `
		INSERT INTO collection_recipes (collection_id, recipe_id, added_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (collection_id, recipe_id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query, collectionID, recipeID)
	if err != nil {
		return fmt.Errorf("failed to add recipe to collection: %w", err)
	}

	s.logger.Info("Recipe added to collection",
		slog.String("collection_id", collectionID),
		slog.String("recipe_id", recipeID),
	)

	return nil
}

// CreateCollection creates a named collection for the user and returns its id
func (s *Storage) CreateCollection(ctx context.Context, userID, name string) (string, error) {
	collectionID := uuid.New().String()

	query := `
		INSERT INTO collections (id, user_id, name, created_at)
		VALUES ($1, $2, $3, NOW())
	`

	_, err := s.db.ExecContext(ctx, query, collectionID, userID, name)
	if err != nil {
		return "", fmt.Errorf("failed to create collection: %w", err)
	}

	s.logger.Info("Collection created",
		slog.String("collection_id", collectionID),
		slog.String("user_id", userID),
		slog.String("name", name),
	)

	return collectionID, nil
}

// addToDefaultCollection ensures the user's default collection exists and
// links the recipe into it
func (s *Storage) addToDefaultCollection(ctx context.Context, tx *sqlx.Tx, userID, recipeID string) error {
	var collectionID string
	query := `SELECT id FROM collections WHERE user_id = $1 AND name = $2`

	err := tx.GetContext(ctx, &collectionID, query, userID, DefaultCollectionName)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to look up default collection: %w", err)
		}

		collectionID = uuid.New().String()
		insert := `INSERT INTO collections (id, user_id, name, created_at) VALUES ($1, $2, $3, NOW())`
		if _, err := tx.ExecContext(ctx, insert, collectionID, userID, DefaultCollectionName); err != nil {
			return fmt.Errorf("failed to create default collection: %w", err)
		}
	}

	link := `
		INSERT INTO collection_recipes (collection_id, recipe_id, added_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (collection_id, recipe_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, link, collectionID, recipeID); err != nil {
		return fmt.Errorf("failed to link recipe to default collection: %w", err)
	}

	return nil
}
