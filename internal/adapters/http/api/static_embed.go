package api

import (
	"embed"
	"html/template"
	"strconv"
	"time"
)

//go:embed static/*
var apiStaticFS embed.FS

const dashboardTemplate = "dashboard.html.tmpl"

var templateFuncs = template.FuncMap{
	"when": func(t time.Time) string { return t.Format("Mon 2 Jan 2006, 15:04 MST") },
	"pct":  func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
}

// dashboardTmpl is parsed once; a broken template fails at startup.
var dashboardTmpl = template.Must(
	template.New(dashboardTemplate).Funcs(templateFuncs).ParseFS(apiStaticFS, "static/"+dashboardTemplate),
)
