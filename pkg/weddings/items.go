package weddings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lovenda/veil/pkg/authz"
)

// Subcollection items are deliberately schemaless. The authorization layer
// cares which collection an item lives in, not what it contains.

// ListItems returns every item in a wedding subcollection, newest first.
func (s *PostgresService) ListItems(ctx context.Context, weddingID string, collection authz.Collection) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wedding_id, collection, data, created_by, created_at, updated_at
		FROM wedding_items
		WHERE wedding_id = $1 AND collection = $2
		ORDER BY created_at DESC`,
		weddingID, string(collection))
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateItem inserts a new item into a subcollection.
func (s *PostgresService) CreateItem(ctx context.Context, actorID, weddingID string, collection authz.Collection, data map[string]any) (*Item, error) {
	item := &Item{
		ID:         uuid.NewString(),
		WeddingID:  weddingID,
		Collection: string(collection),
		Data:       data,
		CreatedBy:  actorID,
		CreatedAt:  time.Now().UTC(),
	}
	item.UpdatedAt = item.CreatedAt

	payload, err := json.Marshal(item.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wedding_items (id, wedding_id, collection, data, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.WeddingID, item.Collection, payload, item.CreatedBy, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

// GetItem retrieves a single item, scoped to its wedding and collection.
func (s *PostgresService) GetItem(ctx context.Context, weddingID string, collection authz.Collection, itemID string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, wedding_id, collection, data, created_by, created_at, updated_at
		FROM wedding_items
		WHERE id = $1 AND wedding_id = $2 AND collection = $3`,
		itemID, weddingID, string(collection))
	return scanItem(row)
}

// UpdateItem replaces an item's payload.
func (s *PostgresService) UpdateItem(ctx context.Context, weddingID string, collection authz.Collection, itemID string, data map[string]any) (*Item, error) {
	item, err := s.GetItem(ctx, weddingID, collection, itemID)
	if err != nil {
		return nil, err
	}

	item.Data = data
	item.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(item.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE wedding_items SET data = $1, updated_at = $2 WHERE id = $3`,
		payload, item.UpdatedAt, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return item, nil
}

// DeleteItem removes an item.
func (s *PostgresService) DeleteItem(ctx context.Context, weddingID string, collection authz.Collection, itemID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM wedding_items WHERE id = $1 AND wedding_id = $2 AND collection = $3`,
		itemID, weddingID, string(collection))
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrItemNotFound
	}
	return nil
}

func scanItem(row rowScanner) (*Item, error) {
	item := &Item{}
	var payload []byte
	err := row.Scan(&item.ID, &item.WeddingID, &item.Collection, &payload,
		&item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &item.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item data: %w", err)
		}
	}
	return item, nil
}
