package operation

import (
	"context"
	"errors"
	"io"
)

// Kind identifies a background operation type. The job id derives from
// tenant + user + kind, which is what makes duplicate requests idempotent.
type Kind string

const (
	KindFileMove     Kind = "file_move"
	KindFileCopy     Kind = "file_copy"
	KindFileDelete   Kind = "file_delete"
	KindFileDownload Kind = "file_download"
	KindUserReassign Kind = "user_reassign"
)

func (k Kind) Valid() bool {
	switch k {
	case KindFileMove, KindFileCopy, KindFileDelete, KindFileDownload, KindUserReassign:
		return true
	}
	return false
}

// Owner scopes an operation to a tenant and a principal. Both are opaque
// identifiers supplied by the surrounding system.
type Owner struct {
	TenantID string
	UserID   string
}

var (
	ErrUnknownKind = errors.New("unknown operation kind")
	// ErrDownloadInProgress is the fail-fast conflict for a second
	// concurrent download by the same user. Downloads stream to a temp
	// archive and are exclusive per user across the whole system.
	ErrDownloadInProgress = errors.New("a download operation is already in progress for this user")
)

// JobResult is the only representation of a job exposed to callers. A
// terminal result has Finished=true and either Result or Error populated,
// never both.
type JobResult struct {
	ID            string `json:"id"`
	OperationType string `json:"operationType"`
	Source        string `json:"source"`
	Progress      int    `json:"progress"`
	Processed     int64  `json:"processed"`
	Result        string `json:"result"`
	Error         string `json:"error"`
	Finished      bool   `json:"finished"`
}

// StartRequest carries the arguments of a StartOperation call.
type StartRequest struct {
	Kind         string   `json:"kind"`
	Paths        []string `json:"paths"`
	Destination  string   `json:"destination"`
	TargetUserID string   `json:"target_user_id"`
}

// IFileOperationsUsecase runs bulk file operations (move/copy/delete/
// download) as background jobs, one active job per tenant+user+kind.
type IFileOperationsUsecase interface {
	Start(ctx context.Context, owner Owner, request StartRequest) (JobResult, error)
	GetStatus(ctx context.Context, owner Owner) []JobResult
	Terminate(ctx context.Context, owner Owner)
}

// IReassignUsecase moves every object owned by one principal to another as
// a background job.
type IReassignUsecase interface {
	Start(ctx context.Context, owner Owner, targetUserID string) (JobResult, error)
	GetStatus(ctx context.Context, owner Owner) (JobResult, bool)
	Terminate(ctx context.Context, owner Owner)
}

// FileStore is the storage collaborator bulk file jobs operate on. Concrete
// connectors live outside this core.
type FileStore interface {
	Move(ctx context.Context, tenantID, path, destination string) error
	Copy(ctx context.Context, tenantID, path, destination string) error
	Delete(ctx context.Context, tenantID, path string) error
	// Open streams one file for archiving.
	Open(ctx context.Context, tenantID, path string) (io.ReadCloser, error)
}

// ReassignStore is the directory collaborator the reassignment job uses.
type ReassignStore interface {
	ListOwnedObjects(ctx context.Context, tenantID, userID string) ([]string, error)
	Reassign(ctx context.Context, tenantID, objectID, fromUserID, toUserID string) error
}
