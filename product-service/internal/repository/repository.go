package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/gonzalofreyna/melocoton-move/product-service/internal/domain"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var ErrProductNotFound = errors.New("product not found")

type Repository struct {
	db *sql.DB
}

type RepoInterface interface {
	GetAllProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, slug string) (*domain.Product, error)
	Close() error
	RunMigrations(string) error
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

const productColumns = `
	id, slug, name, description, category, image_url, full_price, discount_price,
	free_shipping, stock, max_qty, shipping_type, min_business_days, max_business_days, created_at`

func (r *Repository) GetAllProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, slug string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE slug = $1`

	row := r.db.QueryRowContext(ctx, query, slug)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (*domain.Product, error) {
	var (
		p                         domain.Product
		fullPrice                 string
		discountPrice             sql.NullString
		stock, maxQty, minD, maxD sql.NullInt64
	)
	err := s.Scan(
		&p.ID,
		&p.Slug,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.ImageURL,
		&fullPrice,
		&discountPrice,
		&p.FreeShipping,
		&stock,
		&maxQty,
		&p.ShippingType,
		&minD,
		&maxD,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	p.FullPrice, err = decimal.NewFromString(fullPrice)
	if err != nil {
		return nil, fmt.Errorf("product %s: bad full_price %q: %w", p.Slug, fullPrice, err)
	}
	if discountPrice.Valid {
		d, err := decimal.NewFromString(discountPrice.String)
		if err != nil {
			return nil, fmt.Errorf("product %s: bad discount_price %q: %w", p.Slug, discountPrice.String, err)
		}
		p.DiscountPrice = &d
	}
	p.Stock = nullInt(stock)
	p.MaxQty = nullInt(maxQty)
	p.MinDays = nullInt(minD)
	p.MaxDays = nullInt(maxD)
	return &p, nil
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
