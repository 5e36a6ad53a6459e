package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/pawmart/internal/domain"
)

func (r *Repository) ListRatings(ctx context.Context, productID int64) ([]*domain.Rating, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, user_id, value, comment, created_at, updated_at
		 FROM ratings WHERE product_id = $1 ORDER BY updated_at DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	ratings := make([]*domain.Rating, 0)
	for rows.Next() {
		var rt domain.Rating
		if err := rows.Scan(&rt.ID, &rt.ProductID, &rt.UserID, &rt.Value, &rt.Comment, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rating row: %w", err)
		}
		ratings = append(ratings, &rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ratings, nil
}

// UpsertRating stores the user's rating for the product and refreshes the product aggregate
// in the same transaction.
func (r *Repository) UpsertRating(ctx context.Context, rating *domain.Rating) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockProduct(ctx, tx, rating.ProductID); err != nil {
			return err
		}

		err := tx.QueryRowContext(ctx,
			`INSERT INTO ratings (product_id, user_id, value, comment, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, NOW(), NOW())
			 ON CONFLICT (product_id, user_id)
			 DO UPDATE SET value = EXCLUDED.value, comment = EXCLUDED.comment, updated_at = NOW()
			 RETURNING id, created_at, updated_at`,
			rating.ProductID, rating.UserID, rating.Value, rating.Comment,
		).Scan(&rating.ID, &rating.CreatedAt, &rating.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert rating: %w", err)
		}
		return recomputeRating(ctx, tx, rating.ProductID)
	})
}

func (r *Repository) DeleteRating(ctx context.Context, productID int64, userID string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockProduct(ctx, tx, productID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM ratings WHERE product_id = $1 AND user_id = $2`, productID, userID)
		if err != nil {
			return fmt.Errorf("delete rating: %w", err)
		}
		if err := expectAffected(res, fmt.Errorf("rating for product %d: %w", productID, domain.ErrNotFound)); err != nil {
			return err
		}
		return recomputeRating(ctx, tx, productID)
	})
}

// lockProduct serializes rating writes per product so the aggregate reflects every rating.
func lockProduct(ctx context.Context, tx *sql.Tx, productID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock product: %w", err)
	}
	return nil
}

func recomputeRating(ctx context.Context, tx *sql.Tx, productID int64) error {
	rows, err := tx.QueryContext(ctx, `SELECT value FROM ratings WHERE product_id = $1`, productID)
	if err != nil {
		return fmt.Errorf("query rating values: %w", err)
	}
	var values []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan rating value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	_, err = tx.ExecContext(ctx,
		`UPDATE products SET average_rating = $2, rating_count = $3, updated_at = NOW() WHERE id = $1`,
		productID, domain.AverageRating(values), len(values))
	if err != nil {
		return fmt.Errorf("update rating aggregate: %w", err)
	}
	return nil
}
