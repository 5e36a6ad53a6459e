package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/fjod/pawmart/internal/domain"
)

const productColumns = `p.id, p.category_id, p.name, p.description, p.price, p.image_url, p.stock,
	p.average_rating, p.rating_count, p.created_at, p.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.CategoryID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.ImageURL,
		&p.Stock,
		&p.AverageRating,
		&p.RatingCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts returns the catalog, optionally filtered by category slug.
func (r *Repository) ListProducts(ctx context.Context, categorySlug string) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + `
	          FROM products p JOIN categories c ON c.id = p.category_id
	          WHERE ($1 = '' OR c.slug = $1)
	          ORDER BY p.id`

	rows, err := r.db.QueryContext(ctx, query, categorySlug)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]*domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}
	return p, nil
}

// GetProductsByIDs returns the current rows for ids keyed by id. Unknown ids are absent from the map.
func (r *Repository) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	products := make(map[int64]*domain.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = ANY($1::bigint[])`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query products by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*domain.Category, 0)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (category_id, name, description, price, image_url, stock, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	          RETURNING id, average_rating, rating_count, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		p.CategoryID,
		p.Name,
		p.Description,
		p.Price,
		p.ImageURL,
		p.Stock,
	).Scan(&p.ID, &p.AverageRating, &p.RatingCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", translateForeignKey(err, "category_id"))
	}
	return nil
}

// UpdateProduct overwrites the admin-editable fields. Rating aggregates are left alone.
func (r *Repository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	query := `UPDATE products
	          SET category_id = $2, name = $3, description = $4, price = $5, image_url = $6, stock = $7, updated_at = NOW()
	          WHERE id = $1
	          RETURNING average_rating, rating_count, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		p.ID,
		p.CategoryID,
		p.Name,
		p.Description,
		p.Price,
		p.ImageURL,
		p.Stock,
	).Scan(&p.AverageRating, &p.RatingCount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %d: %w", p.ID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update product: %w", translateForeignKey(err, "category_id"))
	}
	return nil
}
