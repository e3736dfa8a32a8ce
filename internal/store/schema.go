package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type tableSpec struct {
	model       any
	foreignKeys []string
}

var schema = []tableSpec{
	{model: (*documentModel)(nil)},
	{model: (*Tag)(nil)},
	// Body assets are written while a new document is still being converted,
	// before its row exists, so assets.document_id carries no constraint.
	// DeleteDocument removes them explicitly.
	{model: (*assetModel)(nil)},
	{
		model: (*documentTagModel)(nil),
		foreignKeys: []string{
			`("document_id") REFERENCES "documents" ("id") ON DELETE CASCADE`,
			`("tag_id") REFERENCES "tags" ("id") ON DELETE CASCADE`,
		},
	},
}

// EnsureSchema creates the mirror tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db bun.IDB) error {
	for _, table := range schema {
		query := db.NewCreateTable().Model(table.model).IfNotExists()
		for _, fk := range table.foreignKeys {
			query = query.ForeignKey(fk)
		}
		if _, err := query.Exec(ctx); err != nil {
			return fmt.Errorf("store: create table for %T: %w", table.model, err)
		}
	}
	_, err := db.NewCreateIndex().
		Model((*assetModel)(nil)).
		Index("assets_document_id_idx").
		Column("document_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: create assets index: %w", err)
	}
	return nil
}
