package store

import (
	"context"
	"database/sql"
	"fmt"

	"live-commerce/internal/models"

	"github.com/google/uuid"
)

// CreateProduct inserts a catalog entry. Used for seeding and tests.
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sarees (id, seller_id, saree_code, price, stock_quantity, fabric, color, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		product.ID, product.SellerID, product.SareeCode, product.Price,
		product.StockQuantity, product.Fabric, product.Color, product.Description,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("saree code %s already exists: %w", product.SareeCode, models.ErrConflict)
	}
	return err
}

// GetProductByCode retrieves a seller's product by saree code
func (s *Store) GetProductByCode(ctx context.Context, sellerID, sareeCode string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT * FROM sarees WHERE seller_id = $1 AND saree_code = $2", sellerID, sareeCode)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("saree %s: %w", sareeCode, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// DecrementStock takes one unit out of stock, refusing to go below zero
func (s *Store) DecrementStock(ctx context.Context, productID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sarees SET stock_quantity = stock_quantity - 1, updated_at = NOW() WHERE id = $1 AND stock_quantity > 0",
		productID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("saree %s: %w", productID, models.ErrOutOfStock)
	}
	return nil
}

// RestoreStock puts back a unit taken by DecrementStock
func (s *Store) RestoreStock(ctx context.Context, productID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sarees SET stock_quantity = stock_quantity + 1, updated_at = NOW() WHERE id = $1",
		productID)
	return err
}
