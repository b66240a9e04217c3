package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pricetrack/models"
)

// ErrProductNotFound is returned when no tracked product has the requested id
var ErrProductNotFound = errors.New("product not found")

// ProductRepository handles tracked product and price history operations
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, user_id, name, url, target_price, rolling_lowest_price, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*models.TrackedProduct, error) {
	var p models.TrackedProduct
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.URL,
		&p.TargetPrice, &p.RollingLowest, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AddProduct starts tracking a product for a user
func (r *ProductRepository) AddProduct(ctx context.Context, req models.AddProductRequest) (*models.TrackedProduct, error) {
	query := `
		INSERT INTO tracked_products (user_id, name, url, target_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING ` + productColumns

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, req.UserID, req.Name, req.URL, req.TargetPrice, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to add product: %w", err)
	}
	return product, nil
}

// GetTrackedProducts returns every tracked product in creation order
func (r *ProductRepository) GetTrackedProducts(ctx context.Context) ([]models.TrackedProduct, error) {
	query := `SELECT ` + productColumns + ` FROM tracked_products ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get tracked products: %w", err)
	}
	defer rows.Close()

	var products []models.TrackedProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, nil
}

// GetProductByID returns a tracked product by ID
func (r *ProductRepository) GetProductByID(ctx context.Context, id int) (*models.TrackedProduct, error) {
	query := `SELECT ` + productColumns + ` FROM tracked_products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// DeleteProduct removes a product; its observations go with it
func (r *ProductRepository) DeleteProduct(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tracked_products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// AddObservation appends a price observation and fills in its id and timestamp
func (r *ProductRepository) AddObservation(ctx context.Context, obs *models.PriceObservation) error {
	if obs.Price <= 0 {
		return fmt.Errorf("failed to add observation: price must be positive, got %.2f", obs.Price)
	}
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = time.Now()
	}

	query := `
		INSERT INTO price_observations (product_id, site, price, observed_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query, obs.ProductID, string(obs.Site), obs.Price, obs.ObservedAt).Scan(&obs.ID)
	if err != nil {
		return fmt.Errorf("failed to add observation: %w", err)
	}
	return nil
}

// GetObservations returns the full price history of a product, oldest first
func (r *ProductRepository) GetObservations(ctx context.Context, productID int) ([]models.PriceObservation, error) {
	query := `
		SELECT id, product_id, site, price, observed_at
		FROM price_observations
		WHERE product_id = $1
		ORDER BY observed_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get observations: %w", err)
	}
	defer rows.Close()

	var history []models.PriceObservation
	for rows.Next() {
		var obs models.PriceObservation
		var site string
		if err := rows.Scan(&obs.ID, &obs.ProductID, &site, &obs.Price, &obs.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		obs.Site = models.Site(site)
		history = append(history, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate observations: %w", err)
	}

	return history, nil
}

// UpdateRollingLowest stores the recomputed minimum of the product's history
func (r *ProductRepository) UpdateRollingLowest(ctx context.Context, productID int, lowest float64) error {
	query := `
		UPDATE tracked_products
		SET rolling_lowest_price = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, productID, lowest, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update rolling lowest: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// GetDailyLowest returns the lowest scraped price of each day over the last days days
func (r *ProductRepository) GetDailyLowest(ctx context.Context, productID, days int) ([]models.DailyLowest, error) {
	query := `
		SELECT date_trunc('day', observed_at) AS day, MIN(price) AS min_price
		FROM price_observations
		WHERE product_id = $1 AND observed_at >= $2 AND site <> 'degraded'
		GROUP BY day
		ORDER BY day ASC
	`

	since := time.Now().AddDate(0, 0, -days)
	rows, err := r.db.QueryContext(ctx, query, productID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily lowest prices: %w", err)
	}
	defer rows.Close()

	var result []models.DailyLowest
	for rows.Next() {
		var d models.DailyLowest
		if err := rows.Scan(&d.Day, &d.MinPrice); err != nil {
			return nil, fmt.Errorf("failed to scan daily lowest: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily lowest: %w", err)
	}

	return result, nil
}
