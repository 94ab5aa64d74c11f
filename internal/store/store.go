// Package store persists the product inventory in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/drblury/stocksync/internal/event"
)

// ErrProductNotFound is returned when a product id has no row.
var ErrProductNotFound = errors.New("store: product not found")

const schema = `
CREATE TABLE IF NOT EXISTS produtos (
	id          INTEGER PRIMARY KEY,
	nome        TEXT    NOT NULL,
	descricao   TEXT    NOT NULL DEFAULT '',
	preco       REAL    NOT NULL DEFAULT 0,
	quantidade  INTEGER NOT NULL DEFAULT 0 CHECK (quantidade >= 0)
);
`

// Store gives the stock service access to the product inventory. It is safe
// for concurrent use; the underlying *sql.DB pools connections.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the product database at path. Use
// ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// SQLite allows one writer at a time; a single pooled connection keeps
	// the in-memory variant coherent as well.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProduct returns the product with the given id.
func (s *Store) GetProduct(ctx context.Context, id int64) (event.ProductSnapshot, error) {
	var p event.ProductSnapshot
	row := s.db.QueryRowContext(ctx,
		`SELECT id, nome, descricao, preco, quantidade FROM produtos WHERE id = ?`, id)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return event.ProductSnapshot{}, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
	}
	if err != nil {
		return event.ProductSnapshot{}, fmt.Errorf("store: get product %d: %w", id, err)
	}
	return p, nil
}

// ListProducts returns all products ordered by id.
func (s *Store) ListProducts(ctx context.Context) ([]event.ProductSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, nome, descricao, preco, quantidade FROM produtos ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list products: %w", err)
	}
	defer rows.Close()

	var products []event.ProductSnapshot
	for rows.Next() {
		var p event.ProductSnapshot
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity); err != nil {
			return nil, fmt.Errorf("store: scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpsertProduct inserts or replaces the product row. The stored quantity is
// clamped to zero so a negative count is never persisted.
func (s *Store) UpsertProduct(ctx context.Context, p event.ProductSnapshot) error {
	if p.Quantity < 0 {
		p.Quantity = 0
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO produtos (id, nome, descricao, preco, quantidade)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			nome = excluded.nome,
			descricao = excluded.descricao,
			preco = excluded.preco,
			quantidade = excluded.quantidade`,
		p.ID, p.Name, p.Description, p.Price, p.Quantity)
	if err != nil {
		return fmt.Errorf("store: upsert product %d: %w", p.ID, err)
	}
	return nil
}

// SetQuantity overwrites the stock count of a product, clamped to zero.
func (s *Store) SetQuantity(ctx context.Context, id int64, quantity int) error {
	if quantity < 0 {
		quantity = 0
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE produtos SET quantidade = ? WHERE id = ?`, quantity, id)
	if err != nil {
		return fmt.Errorf("store: set quantity of product %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: set quantity of product %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrProductNotFound, id)
	}
	return nil
}

// DeleteProduct removes the product row. Deleting an absent product is not
// an error; removal events may be redelivered.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM produtos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete product %d: %w", id, err)
	}
	return nil
}
