package usecase

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"

	domainCache "github.com/arkevo/collabcore/domains/cache"
	domainOperation "github.com/arkevo/collabcore/domains/operation"
	"github.com/arkevo/collabcore/pkg/taskqueue"
)

// reassignService dispatches user-reassignment jobs: every object owned by
// the request's principal moves to the target principal. Job-id derivation
// from tenant+user keeps one active reassignment per principal.
type reassignService struct {
	queue    *taskqueue.Queue
	registry *taskqueue.Registry
	store    domainOperation.ReassignStore
	cache    domainCache.ICacheUsecase

	startMu sync.Mutex
}

func NewReassignService(
	queue *taskqueue.Queue,
	registry *taskqueue.Registry,
	store domainOperation.ReassignStore,
	cache domainCache.ICacheUsecase,
) domainOperation.IReassignUsecase {
	return &reassignService{
		queue:    queue,
		registry: registry,
		store:    store,
		cache:    cache,
	}
}

func (s *reassignService) Start(ctx context.Context, owner domainOperation.Owner, targetUserID string) (domainOperation.JobResult, error) {
	if targetUserID == "" || targetUserID == owner.UserID {
		return domainOperation.JobResult{}, fmt.Errorf("invalid reassignment target %q", targetUserID)
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	id := operationJobID(owner, domainOperation.KindUserReassign)
	if existing, ok := s.registry.GetTask(id); ok {
		if !existing.Finished() {
			return toJobResult(existing), nil
		}
		s.registry.RemoveTask(id)
	}

	job := taskqueue.NewJob(id, string(domainOperation.KindUserReassign),
		owner.TenantID, owner.UserID, "user "+owner.UserID+" -> "+targetUserID,
		s.runReassign(owner, targetUserID))
	view, err := s.queue.Enqueue(job)
	if err != nil {
		return domainOperation.JobResult{}, err
	}
	return toJobResult(view), nil
}

func (s *reassignService) GetStatus(ctx context.Context, owner domainOperation.Owner) (domainOperation.JobResult, bool) {
	v, ok := s.registry.GetTask(operationJobID(owner, domainOperation.KindUserReassign))
	if !ok {
		return domainOperation.JobResult{}, false
	}
	return toJobResult(v), true
}

func (s *reassignService) Terminate(ctx context.Context, owner domainOperation.Owner) {
	s.registry.CancelTask(operationJobID(owner, domainOperation.KindUserReassign))
}

func (s *reassignService) runReassign(owner domainOperation.Owner, targetUserID string) taskqueue.RunFunc {
	return func(ctx context.Context, h *taskqueue.Handle) (string, error) {
		objects, err := s.store.ListOwnedObjects(ctx, owner.TenantID, owner.UserID)
		if err != nil {
			return "", fmt.Errorf("list owned objects: %w", err)
		}
		if len(objects) == 0 {
			return "no objects to reassign", nil
		}

		for i, objectID := range objects {
			if h.Canceled() {
				return "", taskqueue.ErrCanceled
			}
			if err := s.store.Reassign(ctx, owner.TenantID, objectID, owner.UserID, targetUserID); err != nil {
				return "", fmt.Errorf("reassign %s: %w", objectID, err)
			}
			h.AddProcessed(1)
			h.SetProgress((i + 1) * 100 / len(objects))
		}

		s.invalidateOwnership(owner.TenantID, owner.UserID, targetUserID)
		return fmt.Sprintf("%d objects reassigned to %s", len(objects), targetUserID), nil
	}
}

// invalidateOwnership drops cached views of both principals so every
// process re-reads ownership after the transfer.
func (s *reassignService) invalidateOwnership(tenantID, fromUserID, toUserID string) {
	for _, userID := range []string{fromUserID, toUserID} {
		pattern := "^user:" + regexp.QuoteMeta(tenantID) + ":" + regexp.QuoteMeta(userID) + ":"
		if err := s.cache.RemoveByPattern(pattern); err != nil {
			logrus.WithError(err).Warnf("[REASSIGN] Ownership invalidation failed for user %s", userID)
		}
	}
}
