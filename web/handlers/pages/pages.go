package pages

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"autolog.dev/autolog/core"
	"autolog.dev/autolog/pdf"
)

//go:embed templates/*.html
var templateFS embed.FS

type RecordFinder interface {
	FindByPath(ctx context.Context, path string) (*core.Timesheet, error)
}

type VersionSource interface {
	Latest(ctx context.Context) string
}

type Options struct {
	Records RecordFinder
	Demo    RecordFinder
	// Versions is optional; without it the badge is hidden.
	Versions VersionSource
	Logger   zerolog.Logger
}

type Endpoint struct {
	records  RecordFinder
	demo     RecordFinder
	versions VersionSource
	log      zerolog.Logger
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"hours":   formatHours,
		"days":    dayNumbers,
		"hoursOn": hoursOn,
	}).ParseFS(templateFS, "templates/*.html")
}

// Register installs the HTML renderer and the page routes on r.
func Register(r *gin.Engine, opts Options) error {
	tmpl, err := Templates()
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(tmpl)

	ep := &Endpoint{
		records:  opts.Records,
		demo:     opts.Demo,
		versions: opts.Versions,
		log:      opts.Logger.With().Str("component", "pages").Logger(),
	}

	r.GET("/", ep.page("index.html", "Autolog"))
	r.GET("/documentation", ep.page("documentation.html", "Documentation"))
	r.GET("/favicon.ico", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/"+pdf.DemoTarget, ep.Demo)
	r.GET("/:timesheet", ep.Timesheet)
	r.NoRoute(ep.NotFound)
	return nil
}

type layout struct {
	Title   string
	Version string
}

type timesheetPage struct {
	layout
	Record      *core.Timesheet
	Days        int
	Print       bool
	SignedToken string
	ShowRequest bool
	ShowApprove bool
}

func (ep *Endpoint) layout(c *gin.Context, title string) layout {
	l := layout{Title: title}
	if ep.versions != nil {
		l.Version = ep.versions.Latest(c.Request.Context())
	}
	return l
}

func (ep *Endpoint) page(name string, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, name, ep.layout(c, title))
	}
}

// Timesheet renders the shareable timesheet page.
//
//	GET /:timesheet[?print=true][&signed_token=<hex>]
func (ep *Endpoint) Timesheet(c *gin.Context) {
	ep.render(c, ep.records, c.Param("timesheet"))
}

// Demo renders the public demo record.
//
//	GET /timesheet-demo
func (ep *Endpoint) Demo(c *gin.Context) {
	ep.render(c, ep.demo, pdf.DemoAlias)
}

func (ep *Endpoint) NotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "notfound.html", ep.layout(c, "Not found"))
}

func (ep *Endpoint) render(c *gin.Context, finder RecordFinder, path string) {
	record, err := finder.FindByPath(c.Request.Context(), path)
	if err != nil {
		var nf *core.NotFoundError
		if !errors.As(err, &nf) {
			ep.log.Error().Err(err).Str("path", path).Msg("failed to load timesheet")
		}
		ep.NotFound(c)
		return
	}

	days, err := core.DaysInPeriod(record.MonthYear)
	if err != nil {
		ep.log.Warn().Err(err).Str("path", path).Msg("unparseable period")
		days = longestLog(record)
	}

	view := timesheetPage{
		layout:      ep.layout(c, "Timesheet "+record.MonthYear),
		Record:      record,
		Days:        days,
		Print:       c.Query("print") != "",
		SignedToken: c.Query("signed_token"),
	}
	if !view.Print && record.InApprovalWorkflow() {
		view.ShowRequest = view.SignedToken == ""
		view.ShowApprove = view.SignedToken != ""
	}

	c.HTML(http.StatusOK, "timesheet.html", view)
}

func longestLog(record *core.Timesheet) int {
	n := 0
	for _, p := range record.Timesheets {
		n = max(n, len(p.Timesheet))
	}
	return n
}

func formatHours(h float64) string {
	if h == 0 {
		return ""
	}
	return strconv.FormatFloat(h, 'f', -1, 64)
}

// hoursOn is the entry for a 1-based day, blank past the end of the log.
func hoursOn(p core.ProjectTimesheet, day int) string {
	if day < 1 || day > len(p.Timesheet) {
		return ""
	}
	return formatHours(p.Timesheet[day-1].Hours)
}

func dayNumbers(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}
