package timesheet

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autolog.dev/autolog/core"
	"autolog.dev/autolog/web/common"
)

type TimesheetDTO struct {
	RandomPath       string                  `json:"random_path" binding:"required,max=128"`
	Client           core.Client             `json:"client"`
	User             core.User               `json:"user"`
	MonthYear        string                  `json:"month_year"`
	Timesheets       []core.ProjectTimesheet `json:"timesheets"`
	Approver         *core.Approver          `json:"approver"`
	RequiresApproval bool                    `json:"requires_approval"`
	Approved         bool                    `json:"approved"`
	CreationDate     common.FlexibleTime     `json:"creation_date"`
}

func (dto *TimesheetDTO) toRecord(now time.Time) *core.Timesheet {
	created := dto.CreationDate.Time
	if created.IsZero() {
		created = now
	}
	return &core.Timesheet{
		RandomPath:       dto.RandomPath,
		Client:           dto.Client,
		User:             dto.User,
		MonthYear:        dto.MonthYear,
		Timesheets:       dto.Timesheets,
		Approver:         dto.Approver,
		RequiresApproval: dto.RequiresApproval,
		Approved:         dto.Approved,
		CreationDate:     created.UTC(),
	}
}

// Create stores a timesheet uploaded by the CLI.
//
//	POST /api/timesheets  (Authorization: Bearer <key>)
func (ep *Endpoint) Create(c *gin.Context) {
	var dto TimesheetDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewFailureResponse(common.FormatBindingError(err)))
		return
	}

	ctx := c.Request.Context()
	exists, err := ep.store.Exists(ctx, dto.RandomPath)
	if err != nil {
		ep.internalError(c, err)
		return
	}
	if exists {
		c.JSON(http.StatusConflict, common.NewFailureResponse("Path already exists"))
		return
	}

	if err := ep.store.Insert(ctx, dto.toRecord(time.Now())); err != nil {
		if core.StatusOf(err) == http.StatusConflict {
			c.JSON(http.StatusConflict, common.NewFailureResponse("Path already exists"))
			return
		}
		ep.internalError(c, err)
		return
	}

	if !ep.indexReady.Load() {
		if err := ep.store.EnsureTTLIndex(ctx, ep.expireAfter); err != nil {
			ep.internalError(c, err)
			return
		}
		ep.indexReady.Store(true)
	}

	ep.log.Info().Str("path", dto.RandomPath).Msg("timesheet stored")
	c.JSON(http.StatusOK, common.NewSuccessResponse())
}

func (ep *Endpoint) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, common.NewFailureResponse("Internal server error: "+err.Error()))
}
