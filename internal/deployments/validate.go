package deployments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/platzio/platz-engine/internal/store"
)

// ValidateNoDependents refuses to disable or delete a collection item that
// other deployments still reference. The conflict error names every
// dependent so the caller can surface them.
func ValidateNoDependents(ctx context.Context, s *store.Store, collection string, id uuid.UUID) error {
	users, err := FindUsing(ctx, s, collection, id)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}
	names := make([]string, 0, len(users))
	for _, d := range users {
		names = append(names, describeDeployment(ctx, s, &d))
	}
	return errors.Wrapf(store.ErrConflict,
		"in use by %d deployment(s): %s", len(users), strings.Join(names, ", "))
}

func describeDeployment(ctx context.Context, s *store.Store, d *store.Deployment) string {
	kind, err := s.Kinds().Get(ctx, d.KindID)
	if err != nil {
		return fmt.Sprintf("%s (%s)", d.Name, d.ID)
	}
	if d.Name == "" {
		return fmt.Sprintf("%s (%s)", kind.Name, d.ID)
	}
	return fmt.Sprintf("%s (%s %s)", d.Name, kind.Name, d.ID)
}
