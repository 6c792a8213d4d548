package retrieval

import (
	"context"
	"time"

	"github.com/autonfe/desk/internal/cancel"
	"github.com/autonfe/desk/internal/task"
)

// Job names used in logs, metrics and the panel.
const (
	JobNFe  = "nfe"
	JobNFSe = "nfse"
)

// Client is the document client. Implementations must poll token at bounded
// intervals and return cancel.ErrCancelled (or ctx.Err()) once it fires.
// progress and status may be called from any goroutine.
// Version: 1.0
type Client interface {
	FetchNFe(ctx context.Context, req NFeRequest, token cancel.Token, progress task.ProgressFunc, status task.StatusFunc) error
	FetchNFSe(ctx context.Context, req NFSeRequest, token cancel.Token, progress task.ProgressFunc, status task.StatusFunc) error
}

// NewNFeJob adapts an NF-e pull to the task runner.
func NewNFeJob(client Client, req NFeRequest) task.Job {
	return task.NewJob(JobNFe, func(ctx context.Context, token cancel.Token, progress task.ProgressFunc, status task.StatusFunc) error {
		return client.FetchNFe(ctx, req, token, progress, status)
	})
}

// NewNFSeJob adapts an NFS-e pull to the task runner.
func NewNFSeJob(client Client, req NFSeRequest) task.Job {
	return task.NewJob(JobNFSe, func(ctx context.Context, token cancel.Token, progress task.ProgressFunc, status task.StatusFunc) error {
		return client.FetchNFSe(ctx, req, token, progress, status)
	})
}

// ValidateNFe runs the field checks and then opens the certificate.
func ValidateNFe(req NFeRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	_, err := CheckCertificate(req.CertPath, req.CertPassword, time.Now())
	return err
}
