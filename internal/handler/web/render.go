package web

import (
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"StockTracker/internal/domain/models"
	xhttp "StockTracker/pkg/http"
	"StockTracker/pkg/util"
)

//go:embed templates
var templateFS embed.FS

// NewRenderer parses the embedded page templates.
func NewRenderer() (*xhttp.TemplateRenderer, error) {
	return xhttp.NewTemplateRenderer(templateFS, funcs, "templates/layout/*.html", "templates/pages/*.html")
}

var funcs = template.FuncMap{
	"date":        util.FormatDate,
	"datetime":    func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 MST") },
	"pct":         pct,
	"signalClass": func(s models.SignalType) string { return "signal-" + strings.ToLower(string(s)) },
}

func pct(v interface{}) string {
	switch d := v.(type) {
	case decimal.Decimal:
		return d.StringFixed(2) + "%"
	case *decimal.Decimal:
		if d == nil {
			return ""
		}
		return d.StringFixed(2) + "%"
	default:
		return ""
	}
}

// layout is embedded by every page view.
type layout struct {
	Title string
	Flash string
}

type errorView struct {
	layout
	Status     int
	StatusText string
	Message    string
}

// ErrorPage renders HTML errors for the server error handler.
func ErrorPage(c echo.Context, status int, message string) error {
	return c.Render(status, "error.html", errorView{
		layout:     layout{Title: http.StatusText(status)},
		Status:     status,
		StatusText: http.StatusText(status),
		Message:    message,
	})
}
