package usecase

import (
	"fmt"
	"hash/fnv"

	domainOperation "github.com/arkevo/collabcore/domains/operation"
	"github.com/arkevo/collabcore/pkg/taskqueue"
)

// operationJobID derives the job id deterministically from tenant, user and
// operation kind, so a duplicate request lands on the same id and dedupes by
// registry lookup instead of extra locking.
func operationJobID(owner domainOperation.Owner, kind domainOperation.Kind) string {
	h := fnv.New64a()
	h.Write([]byte(owner.TenantID + "|" + owner.UserID + "|" + string(kind)))
	return fmt.Sprintf("op-%016x", h.Sum64())
}

// toJobResult projects a registry snapshot into the caller-facing shape.
// Internal job state never leaves the usecase layer.
func toJobResult(v taskqueue.View) domainOperation.JobResult {
	return domainOperation.JobResult{
		ID:            v.ID,
		OperationType: v.Kind,
		Source:        v.Source,
		Progress:      v.Progress,
		Processed:     v.Processed,
		Result:        v.Result,
		Error:         v.Error,
		Finished:      v.Finished(),
	}
}
