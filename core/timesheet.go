package core

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const monthYearLayout = "January 2006"

type DayLog struct {
	Hours      float64 `bson:"hours" json:"hours"`
	UserEdited bool    `bson:"user_edited" json:"user_edited"`
	Weekend    bool    `bson:"weekend" json:"weekend"`
}

// ProjectTimesheet is the day-by-day log for a single repository namespace.
type ProjectTimesheet struct {
	Namespace     string   `bson:"namespace" json:"namespace"`
	Timesheet     []DayLog `bson:"timesheet" json:"timesheet"`
	TotalHours    float64  `bson:"total_hours" json:"total_hours"`
	ProjectNumber *string  `bson:"project_number" json:"project_number"`
}

type Client struct {
	ID            string `bson:"id" json:"id"`
	Name          string `bson:"client_name" json:"client_name"`
	Address       string `bson:"client_address" json:"client_address"`
	ContactPerson string `bson:"client_contact_person" json:"client_contact_person"`
}

// AddressLines splits the stored multi-line address for display.
func (c Client) AddressLines() []string {
	if c.Address == "" {
		return nil
	}
	return strings.Split(c.Address, "\n")
}

type User struct {
	ID        string `bson:"id" json:"id"`
	Name      string `bson:"name" json:"name"`
	Email     string `bson:"email" json:"email"`
	IsAlias   bool   `bson:"is_alias" json:"is_alias"`
	Thumbnail string `bson:"thumbnail" json:"thumbnail"`
}

type Approver struct {
	Name  string `bson:"approvers_name" json:"approvers_name"`
	Email string `bson:"approvers_email" json:"approvers_email"`
}

// Timesheet is the stored record, keyed externally by RandomPath.
// ConfirmationSent is set once the user has been emailed about the approval.
type Timesheet struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	RandomPath       string             `bson:"random_path" json:"random_path"`
	Client           Client             `bson:"client" json:"client"`
	User             User               `bson:"user" json:"user"`
	MonthYear        string             `bson:"month_year" json:"month_year"`
	Timesheets       []ProjectTimesheet `bson:"timesheets" json:"timesheets"`
	Approver         *Approver          `bson:"approver" json:"approver"`
	RequiresApproval bool               `bson:"requires_approval" json:"requires_approval"`
	Approved         bool               `bson:"approved" json:"approved"`
	ConfirmationSent bool               `bson:"confirmation_sent" json:"confirmation_sent"`
	CreationDate     time.Time          `bson:"creation_date" json:"creation_date"`
}

func (t *Timesheet) ApproverName() string {
	if t.Approver == nil {
		return ""
	}
	return t.Approver.Name
}

func (t *Timesheet) ApproverEmail() string {
	if t.Approver == nil {
		return ""
	}
	return t.Approver.Email
}

// DaysInPeriod returns the number of days in the month named by month_year, e.g. "March 2024".
func DaysInPeriod(monthYear string) (int, error) {
	start, err := time.Parse(monthYearLayout, strings.TrimSpace(monthYear))
	if err != nil {
		return 0, fmt.Errorf("invalid month_year %q: %w", monthYear, err)
	}
	return start.AddDate(0, 1, -1).Day(), nil
}
