package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"batard/internal/models"
)

// ErrNoRecord is returned by single-row catalog lookups that match nothing.
var ErrNoRecord = errors.New("record not found")

// CreateCategory inserts a category and fills its ID.
func (db *DB) CreateCategory(ctx context.Context, c *models.Category) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO categories (name, weekday_from, weekday_to, weekend_from, weekend_to, slot_size_minutes, lead_time_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name,
		c.WeekdayTime.From, c.WeekdayTime.To,
		c.WeekendsTime.From, c.WeekendsTime.To,
		c.SlotSizeMinutes, c.LeadTimeMinutes,
	)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

// UpdateCategory rewrites the schedule parameters of a category.
func (db *DB) UpdateCategory(ctx context.Context, c *models.Category) error {
	res, err := db.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, weekday_from = ?, weekday_to = ?, weekend_from = ?, weekend_to = ?,
		    slot_size_minutes = ?, lead_time_minutes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		c.Name,
		c.WeekdayTime.From, c.WeekdayTime.To,
		c.WeekendsTime.From, c.WeekendsTime.To,
		c.SlotSizeMinutes, c.LeadTimeMinutes,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoRecord
	}
	return nil
}

// GetCategories returns all categories ordered by name.
func (db *DB) GetCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, weekday_from, weekday_to, weekend_from, weekend_to,
		       slot_size_minutes, lead_time_minutes, created_at, updated_at
		FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategoryByID returns one category or ErrNoRecord.
func (db *DB) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, weekday_from, weekday_to, weekend_from, weekend_to,
		       slot_size_minutes, lead_time_minutes, created_at, updated_at
		FROM categories WHERE id = ?`, id)

	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCategoriesByIDs resolves a set of category IDs. Unknown IDs are simply
// absent from the result; the caller decides whether that is an error.
func (db *DB) FindCategoriesByIDs(ctx context.Context, ids []int64) (map[int64]models.Category, error) {
	if len(ids) == 0 {
		return map[int64]models.Category{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, name, weekday_from, weekday_to, weekend_from, weekend_to,
		       slot_size_minutes, lead_time_minutes, created_at, updated_at
		FROM categories WHERE id IN (%s)`, placeholders(len(ids)))

	rows, err := db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query categories by ids: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]models.Category, len(ids))
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// CreateProduct inserts a product and fills its ID.
func (db *DB) CreateProduct(ctx context.Context, p *models.Product) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO products (name, description, photo, price, category_id, stock, daily_capacity, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.Photo, p.Price, p.CategoryID,
		nullableInt64(p.Stock), nullableInt64(p.DailyCapacity), p.Active,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

// UpdateProduct rewrites a product row.
func (db *DB) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, photo = ?, price = ?, category_id = ?,
		    stock = ?, daily_capacity = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		p.Name, p.Description, p.Photo, p.Price, p.CategoryID,
		nullableInt64(p.Stock), nullableInt64(p.DailyCapacity), p.Active,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoRecord
	}
	return nil
}

// GetProducts returns products, optionally only active ones.
func (db *DB) GetProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	query := `
		SELECT id, name, description, photo, price, category_id, stock, daily_capacity, active, created_at, updated_at
		FROM products`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY category_id, name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetProductByID returns one product or ErrNoRecord.
func (db *DB) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, description, photo, price, category_id, stock, daily_capacity, active, created_at, updated_at
		FROM products WHERE id = ?`, id)

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindProductsByIDs resolves a set of product IDs to active products.
// Unknown or inactive IDs are absent from the result.
func (db *DB) FindProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	if len(ids) == 0 {
		return map[int64]models.Product{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, name, description, photo, price, category_id, stock, daily_capacity, active, created_at, updated_at
		FROM products WHERE active = 1 AND id IN (%s)`, placeholders(len(ids)))

	rows, err := db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query products by ids: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]models.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(r rowScanner) (models.Category, error) {
	var c models.Category
	err := r.Scan(
		&c.ID, &c.Name,
		&c.WeekdayTime.From, &c.WeekdayTime.To,
		&c.WeekendsTime.From, &c.WeekendsTime.To,
		&c.SlotSizeMinutes, &c.LeadTimeMinutes,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return models.Category{}, err
	}
	return c, nil
}

func scanProduct(r rowScanner) (models.Product, error) {
	var p models.Product
	var stock, daily sql.NullInt64
	err := r.Scan(
		&p.ID, &p.Name, &p.Description, &p.Photo, &p.Price, &p.CategoryID,
		&stock, &daily, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return models.Product{}, err
	}
	if stock.Valid {
		p.Stock = &stock.Int64
	}
	if daily.Valid {
		p.DailyCapacity = &daily.Int64
	}
	return p, nil
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
