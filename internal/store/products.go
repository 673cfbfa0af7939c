package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"storefront/internal/models"
	"storefront/internal/pricing"
)

// ProductFilter narrows a catalog listing. Empty slices match everything.
type ProductFilter struct {
	Categories []string
	Colors     []string
	Range      pricing.PriceRange
	Search     string
	Page       int
	PageSize   int
}

// productWhere builds the WHERE clause and positional args for a filter.
func productWhere(f ProductFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.Categories) > 0 {
		conds = append(conds, "category = ANY("+arg(pq.Array(f.Categories))+")")
	}
	if len(f.Colors) > 0 {
		conds = append(conds, "color = ANY("+arg(pq.Array(f.Colors))+")")
	}
	if f.Range.Min != nil {
		conds = append(conds, "price >= "+arg(*f.Range.Min))
	}
	if f.Range.Max != nil {
		conds = append(conds, "price <= "+arg(*f.Range.Max))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		conds = append(conds, "name ILIKE "+arg("%"+escapeLike(q)+"%"))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ListProducts returns one page of products, newest first, and the total
// number of matches.
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, int, error) {
	where, args := productWhere(f)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	limit, offset := page(f.Page, f.PageSize, MaxPageSize)
	query := fmt.Sprintf("SELECT * FROM products%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", where, limit, offset)

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func fillArrays(p *models.Product) {
	if p.Sizes == nil {
		p.Sizes = pq.StringArray{}
	}
	if p.Images == nil {
		p.Images = pq.StringArray{}
	}
}

// CreateProduct inserts a product and fills in its generated fields
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	fillArrays(p)
	query := `
		INSERT INTO products (name, description, category, price, discount_percentage, discount_price, color, sizes, stock, images)
		VALUES (:name, :description, :category, :price, :discount_percentage, :discount_price, :color, :sizes, :stock, :images)
		RETURNING id, created_at, updated_at`

	rows, err := s.db.NamedQueryContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return fmt.Errorf("insert product: no row returned")
	}
	return rows.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// UpdateProduct overwrites the editable fields of a product
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	fillArrays(p)
	query := `
		UPDATE products SET
			name = :name, description = :description, category = :category, price = :price,
			discount_percentage = :discount_percentage, discount_price = :discount_price,
			color = :color, sizes = :sizes, stock = :stock, images = :images, updated_at = NOW()
		WHERE id = :id
		RETURNING created_at, updated_at`

	rows, err := s.db.NamedQueryContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return fmt.Errorf("product %d: %w", p.ID, ErrNotFound)
	}
	return rows.Scan(&p.CreatedAt, &p.UpdatedAt)
}

// AppendProductImages adds image URLs to a product
func (s *Store) AppendProductImages(ctx context.Context, id int64, urls []string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"UPDATE products SET images = images || $1, updated_at = NOW() WHERE id = $2 RETURNING *",
		pq.Array(urls), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}
