package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Chart is an indexed Helm chart, immutable once inserted except for its
// availability flag. The extension documents are stored as raw JSON; parsing
// failures are recorded on the error column while the chart stays listable.
type Chart struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	HelmRegistryID uuid.UUID       `db:"helm_registry_id" json:"helm_registry_id"`
	ImageDigest    string          `db:"image_digest" json:"image_digest"`
	ImageTag       string          `db:"image_tag" json:"image_tag"`
	Available      bool            `db:"available" json:"available"`
	ValuesUI       json.RawMessage `db:"values_ui" json:"values_ui,omitempty"`
	ActionsSchema  json.RawMessage `db:"actions_schema" json:"actions_schema,omitempty"`
	Features       json.RawMessage `db:"features" json:"features,omitempty"`
	ResourceTypes  json.RawMessage `db:"resource_types" json:"resource_types,omitempty"`
	Error          *string         `db:"error" json:"error,omitempty"`
	ParsedVersion  *string         `db:"parsed_version" json:"parsed_version,omitempty"`
	ParsedBranch   *string         `db:"parsed_branch" json:"parsed_branch,omitempty"`
	ParsedCommit   *string         `db:"parsed_commit" json:"parsed_commit,omitempty"`
	ParsedRevision *int64          `db:"parsed_revision" json:"parsed_revision,omitempty"`
}

type Charts struct {
	s *Store
}

func (c *Charts) Get(ctx context.Context, id uuid.UUID) (*Chart, error) {
	return getOne[Chart](ctx, c.s.pool, "SELECT * FROM helm_charts WHERE id = $1", id)
}

func (c *Charts) List(ctx context.Context, filters Filters, p Pagination) (*Page[Chart], error) {
	return listPage[Chart](ctx, c.s.pool, "helm_charts", "created_at DESC", filters, p)
}

type NewChart struct {
	HelmRegistryID uuid.UUID
	ImageDigest    string
	ImageTag       string
	ValuesUI       json.RawMessage
	ActionsSchema  json.RawMessage
	Features       json.RawMessage
	ResourceTypes  json.RawMessage
	Error          *string
	ParsedVersion  *string
	ParsedBranch   *string
	ParsedCommit   *string
	ParsedRevision *int64
}

func (c *Charts) Create(ctx context.Context, n NewChart) (*Chart, error) {
	return getOne[Chart](ctx, c.s.pool, `
		INSERT INTO helm_charts (
			helm_registry_id, image_digest, image_tag,
			values_ui, actions_schema, features, resource_types, error,
			parsed_version, parsed_branch, parsed_commit, parsed_revision
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING *`,
		n.HelmRegistryID, n.ImageDigest, n.ImageTag,
		n.ValuesUI, n.ActionsSchema, n.Features, n.ResourceTypes, n.Error,
		n.ParsedVersion, n.ParsedBranch, n.ParsedCommit, n.ParsedRevision)
}

func (c *Charts) SetAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	tag, err := c.s.pool.Exec(ctx,
		"UPDATE helm_charts SET available = $2 WHERE id = $1", id, available)
	if err != nil {
		return wrapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
