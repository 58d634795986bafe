package usecase

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	domainCache "github.com/arkevo/collabcore/domains/cache"
	domainOperation "github.com/arkevo/collabcore/domains/operation"
	"github.com/arkevo/collabcore/pkg/taskqueue"
	"github.com/arkevo/collabcore/pkg/utils"
)

var fileKinds = []domainOperation.Kind{
	domainOperation.KindFileMove,
	domainOperation.KindFileCopy,
	domainOperation.KindFileDelete,
	domainOperation.KindFileDownload,
}

// fileOperationsService dispatches bulk file jobs. One active job per
// tenant+user+kind is enforced through deterministic job ids; downloads are
// additionally exclusive per user because they stream into a temp archive.
type fileOperationsService struct {
	queue    *taskqueue.Queue
	registry *taskqueue.Registry
	store    domainOperation.FileStore
	cache    domainCache.ICacheUsecase
	tempDir  string

	// startMu closes the check-then-queue race between two concurrent
	// Start calls for the same owner.
	startMu sync.Mutex
}

func NewFileOperationsService(
	queue *taskqueue.Queue,
	registry *taskqueue.Registry,
	store domainOperation.FileStore,
	cache domainCache.ICacheUsecase,
	tempDir string,
) domainOperation.IFileOperationsUsecase {
	return &fileOperationsService{
		queue:    queue,
		registry: registry,
		store:    store,
		cache:    cache,
		tempDir:  tempDir,
	}
}

func (s *fileOperationsService) Start(ctx context.Context, owner domainOperation.Owner, request domainOperation.StartRequest) (domainOperation.JobResult, error) {
	kind := domainOperation.Kind(request.Kind)
	if !kind.Valid() || kind == domainOperation.KindUserReassign {
		return domainOperation.JobResult{}, domainOperation.ErrUnknownKind
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	if kind == domainOperation.KindFileDownload {
		if err := s.checkDownloadExclusive(owner); err != nil {
			return domainOperation.JobResult{}, err
		}
	}

	id := operationJobID(owner, kind)
	if existing, ok := s.registry.GetTask(id); ok {
		if !existing.Finished() {
			// Idempotent "already running" response; no new job.
			return toJobResult(existing), nil
		}
		s.registry.RemoveTask(id)
	}

	job := taskqueue.NewJob(id, string(kind), owner.TenantID, owner.UserID,
		describeSource(request), s.buildRun(owner, kind, request))
	view, err := s.queue.Enqueue(job)
	if err != nil {
		return domainOperation.JobResult{}, err
	}
	return toJobResult(view), nil
}

// checkDownloadExclusive fails fast when the user already has a live
// download anywhere in the system, instead of queuing a second archive job.
func (s *fileOperationsService) checkDownloadExclusive(owner domainOperation.Owner) error {
	for _, v := range s.registry.GetTasks() {
		if v.UserID == owner.UserID &&
			v.Kind == string(domainOperation.KindFileDownload) &&
			!v.Finished() {
			return domainOperation.ErrDownloadInProgress
		}
	}
	return nil
}

func (s *fileOperationsService) GetStatus(ctx context.Context, owner domainOperation.Owner) []domainOperation.JobResult {
	var results []domainOperation.JobResult
	for _, kind := range fileKinds {
		if v, ok := s.registry.GetTask(operationJobID(owner, kind)); ok {
			results = append(results, toJobResult(v))
		}
	}
	return results
}

func (s *fileOperationsService) Terminate(ctx context.Context, owner domainOperation.Owner) {
	for _, kind := range fileKinds {
		s.registry.CancelTask(operationJobID(owner, kind))
	}
}

func (s *fileOperationsService) buildRun(owner domainOperation.Owner, kind domainOperation.Kind, request domainOperation.StartRequest) taskqueue.RunFunc {
	if kind == domainOperation.KindFileDownload {
		return s.runDownload(owner, request.Paths)
	}
	return s.runBulk(owner, kind, request)
}

// runBulk walks the requested paths, one cancellation checkpoint per item.
// Whatever was changed stays changed on cancel; the partial progress fields
// describe how far it got.
func (s *fileOperationsService) runBulk(owner domainOperation.Owner, kind domainOperation.Kind, request domainOperation.StartRequest) taskqueue.RunFunc {
	return func(ctx context.Context, h *taskqueue.Handle) (string, error) {
		total := len(request.Paths)
		for i, path := range request.Paths {
			if h.Canceled() {
				return "", taskqueue.ErrCanceled
			}

			var err error
			switch kind {
			case domainOperation.KindFileMove:
				err = s.store.Move(ctx, owner.TenantID, path, request.Destination)
			case domainOperation.KindFileCopy:
				err = s.store.Copy(ctx, owner.TenantID, path, request.Destination)
			case domainOperation.KindFileDelete:
				err = s.store.Delete(ctx, owner.TenantID, path)
			}
			if err != nil {
				return "", fmt.Errorf("%s %s: %w", kind, path, err)
			}

			h.AddProcessed(1)
			h.SetProgress((i + 1) * 100 / total)
		}

		s.invalidateListings(owner.TenantID)
		return fmt.Sprintf("%d files processed", total), nil
	}
}

// runDownload streams every requested file into one temp zip archive. A
// cancel checkpoint sits before each file; cancelling discards the partial
// archive.
func (s *fileOperationsService) runDownload(owner domainOperation.Owner, paths []string) taskqueue.RunFunc {
	return func(ctx context.Context, h *taskqueue.Handle) (string, error) {
		archivePath := utils.TempArchivePath(s.tempDir, "download-"+uuid.NewString())

		out, err := os.Create(archivePath)
		if err != nil {
			return "", fmt.Errorf("create archive: %w", err)
		}

		zw := zip.NewWriter(out)
		cleanup := func() {
			zw.Close()
			out.Close()
			os.Remove(archivePath)
		}

		total := len(paths)
		for i, path := range paths {
			if h.Canceled() {
				cleanup()
				return "", taskqueue.ErrCanceled
			}

			if err := s.archiveOne(ctx, zw, owner.TenantID, path); err != nil {
				cleanup()
				return "", err
			}

			h.AddProcessed(1)
			h.SetProgress((i + 1) * 100 / total)
		}

		if err := zw.Close(); err != nil {
			out.Close()
			os.Remove(archivePath)
			return "", fmt.Errorf("finalize archive: %w", err)
		}
		if err := out.Close(); err != nil {
			os.Remove(archivePath)
			return "", fmt.Errorf("flush archive: %w", err)
		}

		info, err := os.Stat(archivePath)
		if err != nil {
			return archivePath, nil
		}
		return fmt.Sprintf("%s (%s)", archivePath, humanize.Bytes(uint64(info.Size()))), nil
	}
}

func (s *fileOperationsService) archiveOne(ctx context.Context, zw *zip.Writer, tenantID, path string) error {
	src, err := s.store.Open(ctx, tenantID, path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	entry, err := zw.Create(strings.TrimPrefix(path, "/"))
	if err != nil {
		return fmt.Errorf("archive entry %s: %w", path, err)
	}
	if _, err := io.Copy(entry, src); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	return nil
}

// invalidateListings drops the tenant's cached file listings so peers and
// the local process re-read after a bulk mutation.
func (s *fileOperationsService) invalidateListings(tenantID string) {
	pattern := "^files:" + regexp.QuoteMeta(tenantID) + ":"
	if err := s.cache.RemoveByPattern(pattern); err != nil {
		logrus.WithError(err).Warnf("[FILE_OPS] Listing invalidation failed for tenant %s", tenantID)
	}
}

func describeSource(request domainOperation.StartRequest) string {
	switch len(request.Paths) {
	case 0:
		return ""
	case 1:
		return request.Paths[0]
	default:
		return fmt.Sprintf("%s (+%d more)", request.Paths[0], len(request.Paths)-1)
	}
}
