package timesheet

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autolog.dev/autolog/core"
	"autolog.dev/autolog/web/common"
)

// Request emails the approver a signed approval link.
//
//	GET /api/request?timesheet_id=<path>
func (ep *Endpoint) Request(c *gin.Context) {
	id := c.Query("timesheet_id")
	if id == "" {
		c.JSON(http.StatusBadRequest, common.NewFailureResponse("Missing timesheet ID"))
		return
	}

	res, err := ep.workflow.RequestApproval(c.Request.Context(), id)
	if err != nil {
		msg := err.Error()
		if !isStatusError(err) {
			msg = core.Upstream("Error processing request", err).Error()
		}
		c.JSON(ep.statusOf(c, err), common.NewFailureResponse(msg))
		return
	}

	c.JSON(http.StatusOK, res)
}

// Approve marks the timesheet approved when signed_token matches.
//
//	GET /api/approve?timesheet_id=<path>&signed_token=<hex>
func (ep *Endpoint) Approve(c *gin.Context) {
	id, idOK := singleQuery(c, "timesheet_id")
	token, tokenOK := singleQuery(c, "signed_token")
	if !idOK || !tokenOK {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("Invalid request parameters"))
		return
	}

	msg, err := ep.workflow.Approve(c.Request.Context(), id, token)
	if err != nil {
		text := err.Error()
		if !isStatusError(err) {
			text = core.Upstream("Failed to approve timesheet", err).Error()
		}
		c.JSON(ep.statusOf(c, err), common.NewErrorResponse(text))
		return
	}

	c.JSON(http.StatusOK, common.MessageResponse{Message: msg})
}

type SendApprovalEmailDTO struct {
	ApproverEmail string `json:"approverEmail" binding:"required"`
	TimesheetID   string `json:"timesheetId" binding:"required"`
	SenderName    string `json:"senderName" binding:"required"`
}

// SendApprovalEmail mails a signed link to an approver named by the caller.
//
//	POST /api/send-approval-email
func (ep *Endpoint) SendApprovalEmail(c *gin.Context) {
	var dto SendApprovalEmailDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewFailureResponse("Missing required fields"))
		return
	}

	signedURL, err := ep.links.Send(c.Request.Context(), dto.ApproverEmail, dto.TimesheetID, dto.SenderName)
	if err != nil {
		c.JSON(ep.statusOf(c, err), common.NewFailureResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, common.MessageResponse{Message: "Email sent successfully", SignedURL: signedURL})
}

// singleQuery requires exactly one non-empty value for key.
func singleQuery(c *gin.Context, key string) (string, bool) {
	values := c.QueryArray(key)
	if len(values) != 1 || values[0] == "" {
		return "", false
	}
	return values[0], true
}
