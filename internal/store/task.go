package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type TaskStatus string

const (
	TaskStatusPending  TaskStatus = "pending"
	TaskStatusStarted  TaskStatus = "started"
	TaskStatusFailed   TaskStatus = "failed"
	TaskStatusDone     TaskStatus = "done"
	TaskStatusCanceled TaskStatus = "canceled"
)

// Task is a durable work item mutating a deployment, the unit of
// scheduling. Status is monotone: pending may advance to started or
// canceled, started to done or failed; terminal states are sticky.
type Task struct {
	ID                     uuid.UUID     `db:"id" json:"id"`
	CreatedAt              time.Time     `db:"created_at" json:"created_at"`
	DeploymentID           uuid.UUID     `db:"deployment_id" json:"deployment_id"`
	ClusterID              uuid.UUID     `db:"cluster_id" json:"cluster_id"`
	ActingUserID           *uuid.UUID    `db:"acting_user_id" json:"acting_user_id,omitempty"`
	ActingDeploymentID     *uuid.UUID    `db:"acting_deployment_id" json:"acting_deployment_id,omitempty"`
	Operation              TaskOperation `db:"operation" json:"operation"`
	Status                 TaskStatus    `db:"status" json:"status"`
	Reason                 *string       `db:"reason" json:"reason,omitempty"`
	ExecuteAt              time.Time     `db:"execute_at" json:"execute_at"`
	FirstAttemptedAt       *time.Time    `db:"first_attempted_at" json:"first_attempted_at,omitempty"`
	StartedAt              *time.Time    `db:"started_at" json:"started_at,omitempty"`
	FinishedAt             *time.Time    `db:"finished_at" json:"finished_at,omitempty"`
	CanceledByUserID       *uuid.UUID    `db:"canceled_by_user_id" json:"canceled_by_user_id,omitempty"`
	CanceledByDeploymentID *uuid.UUID    `db:"canceled_by_deployment_id" json:"canceled_by_deployment_id,omitempty"`
}

type Tasks struct {
	s *Store
}

func (t *Tasks) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	return getOne[Task](ctx, t.s.pool, "SELECT * FROM deployment_tasks WHERE id = $1", id)
}

func (t *Tasks) List(ctx context.Context, filters Filters, p Pagination) (*Page[Task], error) {
	return listPage[Task](ctx, t.s.pool, "deployment_tasks", "created_at DESC", filters, p)
}

type NewTask struct {
	DeploymentID       uuid.UUID
	ClusterID          uuid.UUID
	ActingUserID       *uuid.UUID
	ActingDeploymentID *uuid.UUID
	Operation          TaskOperation
	ExecuteAt          *time.Time
}

func (t *Tasks) Create(ctx context.Context, n NewTask) (*Task, error) {
	if n.Operation.Kind() == "" {
		return nil, errors.New("task operation is empty")
	}
	executeAt := time.Now()
	if n.ExecuteAt != nil {
		executeAt = *n.ExecuteAt
	}
	return getOne[Task](ctx, t.s.pool, `
		INSERT INTO deployment_tasks (deployment_id, cluster_id, acting_user_id, acting_deployment_id, operation, execute_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING *`,
		n.DeploymentID, n.ClusterID, n.ActingUserID, n.ActingDeploymentID, n.Operation, executeAt)
}

// NextPending returns the oldest pending task, due for execution, on one of
// the given clusters. ErrNotFound when the queue is drained.
func (t *Tasks) NextPending(ctx context.Context, clusterIDs []uuid.UUID) (*Task, error) {
	if len(clusterIDs) == 0 {
		return nil, ErrNotFound
	}
	return getOne[Task](ctx, t.s.pool, `
		SELECT * FROM deployment_tasks
		WHERE status = 'pending' AND execute_at <= NOW() AND cluster_id = ANY($1)
		ORDER BY created_at
		LIMIT 1`,
		clusterIDs)
}

// Claim is the serialization point of the queue: a conditional update that
// moves the task from pending to started. Exactly one caller wins per row;
// losers get ErrNotFound and move on. first_attempted_at is only set on the
// first claim, started_at on every claim.
func (t *Tasks) Claim(ctx context.Context, id uuid.UUID) (*Task, error) {
	return getOne[Task](ctx, t.s.pool, `
		UPDATE deployment_tasks SET
			status = 'started',
			started_at = NOW(),
			first_attempted_at = COALESCE(first_attempted_at, NOW())
		WHERE id = $1 AND status = 'pending'
		RETURNING *`, id)
}

// Finish moves a started task to a terminal state.
func (t *Tasks) Finish(ctx context.Context, id uuid.UUID, status TaskStatus, reason *string) (*Task, error) {
	if status != TaskStatusDone && status != TaskStatusFailed {
		return nil, errors.Errorf("cannot finish task with status %q", status)
	}
	return getOne[Task](ctx, t.s.pool, `
		UPDATE deployment_tasks SET status = $2, reason = $3, finished_at = NOW()
		WHERE id = $1 AND status = 'started'
		RETURNING *`, id, status, reason)
}

// Cancel marks a pending task canceled. The database condition enforces the
// cancellation window: the task must still be more than the given margin
// away from execution.
func (t *Tasks) Cancel(ctx context.Context, id uuid.UUID, margin time.Duration, byUserID, byDeploymentID *uuid.UUID, reason string) (*Task, error) {
	return getOne[Task](ctx, t.s.pool, `
		UPDATE deployment_tasks SET
			status = 'canceled',
			reason = $3,
			canceled_by_user_id = $4,
			canceled_by_deployment_id = $5,
			finished_at = NOW()
		WHERE id = $1 AND status = 'pending' AND execute_at > NOW() + $2
		RETURNING *`, id, margin, reason, byUserID, byDeploymentID)
}

// Delete removes a task unless it is the live revision of its deployment.
func (t *Tasks) Delete(ctx context.Context, id uuid.UUID) error {
	return t.s.withTx(ctx, func(tx pgx.Tx) error {
		var isRevision bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM deployments WHERE revision_id = $1)", id,
		).Scan(&isRevision); err != nil {
			return wrapDBError(err)
		}
		if isRevision {
			return errors.Wrap(ErrConflict, "task is the live revision of a deployment")
		}
		tag, err := tx.Exec(ctx, "DELETE FROM deployment_tasks WHERE id = $1", id)
		if err != nil {
			return wrapDBError(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}
