package timesheet

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"autolog.dev/autolog/approval"
	"autolog.dev/autolog/core"
	"autolog.dev/autolog/pdf"
	"autolog.dev/autolog/web/common"
	"autolog.dev/autolog/web/middlewares"
)

type Approver interface {
	RequestApproval(ctx context.Context, path string) (*approval.RequestResult, error)
	Approve(ctx context.Context, path string, token string) (string, error)
}

type LinkSender interface {
	Send(ctx context.Context, approverEmail, timesheetID, senderName string) (string, error)
}

type PDFGenerator interface {
	Generate(ctx context.Context, path string) (*pdf.Result, error)
}

type Options struct {
	Store       core.Store
	Workflow    Approver
	Links       LinkSender
	PDF         PDFGenerator
	ExpireAfter time.Duration
	BearerKey   string
	Logger      zerolog.Logger

	// optional per-route rate limits
	RequestLimit gin.HandlerFunc
	ApproveLimit gin.HandlerFunc
	PDFLimit     gin.HandlerFunc
}

type Endpoint struct {
	store       core.Store
	workflow    Approver
	links       LinkSender
	pdf         PDFGenerator
	expireAfter time.Duration
	log         zerolog.Logger

	// set once the TTL index is known to exist
	indexReady atomic.Bool
}

func Register(r *gin.RouterGroup, opts Options) {
	ep := &Endpoint{
		store:       opts.Store,
		workflow:    opts.Workflow,
		links:       opts.Links,
		pdf:         opts.PDF,
		expireAfter: opts.ExpireAfter,
		log:         opts.Logger.With().Str("component", "api").Logger(),
	}

	r.GET("/request", chain(opts.RequestLimit, ep.Request)...)
	r.GET("/approve", chain(opts.ApproveLimit, ep.Approve)...)
	r.GET("/generate-pdf", chain(opts.PDFLimit, ep.GeneratePDF)...)
	r.GET("/export-xlsx", ep.ExportXLSX)
	r.POST("/timesheets", middlewares.BearerKey(opts.BearerKey), ep.Create)

	r.POST("/send-approval-email", ep.SendApprovalEmail)
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		r.Handle(method, "/send-approval-email", methodNotAllowed(http.MethodPost))
	}
}

func chain(limit gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	if limit == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{limit, h}
}

func methodNotAllowed(allow string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Allow", allow)
		c.JSON(http.StatusMethodNotAllowed, common.NewFailureResponse("Method not allowed"))
	}
}

// statusOf logs 5xx errors against the request.
func (ep *Endpoint) statusOf(c *gin.Context, err error) int {
	status := core.StatusOf(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	return status
}

func isStatusError(err error) bool {
	var se core.StatusError
	return errors.As(err, &se)
}
