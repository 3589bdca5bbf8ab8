package resolver

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/platzio/platz-engine/internal/chartext"
	"github.com/platzio/platz-engine/internal/store"
)

// Collection resolves a property of one item, scoped to the calling env.
// Built-in collections allow a fixed property whitelist; resource type
// collections allow any property present on the item's props.
type Collection interface {
	Name() string
	Resolve(ctx context.Context, envID, id uuid.UUID, property string) (any, error)
}

// CollectionSource maps a collection name from a UI schema to a Collection.
type CollectionSource interface {
	Lookup(ctx context.Context, envID uuid.UUID, name chartext.CollectionName) (Collection, error)
}

const (
	collectionDeployments = "deployments"
	collectionSecrets     = "secrets"
)

// StoreCollections is the database-backed CollectionSource. A bare name
// first matches a built-in table and otherwise falls back to a deployment
// resource type key within the env scope.
type StoreCollections struct {
	Store *store.Store
}

func (c *StoreCollections) Lookup(ctx context.Context, envID uuid.UUID, name chartext.CollectionName) (Collection, error) {
	if name.Name != "" {
		switch name.Name {
		case collectionDeployments:
			return &deploymentCollection{c.Store}, nil
		case collectionSecrets:
			return &secretCollection{c.Store}, nil
		}
		rt, err := c.Store.ResourceTypes().FindByKey(ctx, envID, name.Name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, &Error{Kind: UnsupportedCollection, Collection: name.Name}
			}
			return nil, err
		}
		return &resourceCollection{c.Store, rt}, nil
	}

	kind, err := c.Store.Kinds().GetByName(ctx, name.Deployment)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &Error{Kind: UnsupportedCollection, Collection: name.String()}
		}
		return nil, err
	}
	rt, err := c.Store.ResourceTypes().Find(ctx, envID, kind.ID, name.Type)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &Error{Kind: UnsupportedCollection, Collection: name.String()}
		}
		return nil, err
	}
	return &resourceCollection{c.Store, rt}, nil
}

type deploymentCollection struct {
	store *store.Store
}

func (c *deploymentCollection) Name() string { return collectionDeployments }

func (c *deploymentCollection) Resolve(ctx context.Context, envID, id uuid.UUID, property string) (any, error) {
	d, err := c.store.Deployments().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &Error{Kind: CollectionItemNotFound, Collection: c.Name(), ItemID: id.String()}
		}
		return nil, err
	}
	cluster, err := c.store.Clusters().Get(ctx, d.ClusterID)
	if err != nil {
		return nil, err
	}
	if cluster.EnvID == nil || *cluster.EnvID != envID {
		return nil, &Error{Kind: CollectionItemNotFound, Collection: c.Name(), ItemID: id.String()}
	}
	switch property {
	case "id":
		return d.ID.String(), nil
	case "name":
		return d.Name, nil
	}
	return nil, &Error{Kind: UnknownProperty, Property: property, Collection: c.Name()}
}

type secretCollection struct {
	store *store.Store
}

func (c *secretCollection) Name() string { return collectionSecrets }

func (c *secretCollection) Resolve(ctx context.Context, envID, id uuid.UUID, property string) (any, error) {
	s, err := c.store.Secrets().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &Error{Kind: CollectionItemNotFound, Collection: c.Name(), ItemID: id.String()}
		}
		return nil, err
	}
	// Cross-env isolation: a secret from another env resolves as missing,
	// never as a readable item.
	if s.EnvID != envID {
		return nil, &Error{Kind: CollectionItemNotFound, Collection: c.Name(), ItemID: id.String()}
	}
	switch property {
	case "id":
		return s.ID.String(), nil
	case "name":
		return s.Name, nil
	case "contents":
		return s.Contents, nil
	}
	return nil, &Error{Kind: UnknownProperty, Property: property, Collection: c.Name()}
}

type resourceCollection struct {
	store        *store.Store
	resourceType *store.ResourceType
}

func (c *resourceCollection) Name() string { return c.resourceType.Key }

func (c *resourceCollection) Resolve(ctx context.Context, envID, id uuid.UUID, property string) (any, error) {
	r, err := c.store.Resources().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &Error{Kind: CollectionItemNotFound, Collection: c.Name(), ItemID: id.String()}
		}
		return nil, err
	}
	if r.TypeID != c.resourceType.ID || !r.Exists {
		return nil, &Error{Kind: CollectionItemNotFound, Collection: c.Name(), ItemID: id.String()}
	}
	switch property {
	case "id":
		return r.ID.String(), nil
	case "name":
		return r.Name, nil
	}
	var props map[string]any
	if err := json.Unmarshal(r.Props, &props); err != nil {
		return nil, errors.Wrap(err, "failed to decode resource props")
	}
	value, ok := props[property]
	if !ok {
		return nil, &Error{Kind: UnknownProperty, Property: property, Collection: c.Name()}
	}
	return value, nil
}
