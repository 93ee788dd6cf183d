package handlers

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"html/template"
	"net/http"
	"sort"
	"strings"
)

//go:embed openapi.json
var openAPISpec []byte

type apiDocument struct {
	Info struct {
		Title       string `json:"title"`
		Version     string `json:"version"`
		Description string `json:"description"`
	} `json:"info"`
	Paths map[string]map[string]json.RawMessage `json:"paths"`
}

type apiOperation struct {
	Summary   string                     `json:"summary"`
	Responses map[string]json.RawMessage `json:"responses"`
}

type apiRoute struct {
	Method  string
	Path    string
	Summary string
	Codes   string
}

var apiDocsTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>{{.Title}} {{.Version}}</title>
    <style>
      body { font-family: system-ui, sans-serif; margin: 32px; color: #1d1d1f; }
      table { border-collapse: collapse; }
      td, th { text-align: left; padding: 6px 12px; border-bottom: 1px solid #ddd; }
      code { font-size: 14px; }
    </style>
  </head>
  <body>
    <h1>{{.Title}} <small>{{.Version}}</small></h1>
    <p>{{.Description}}</p>
    <p>Machine-readable document: <a href="/v1/openapi.json">/v1/openapi.json</a>.
    Errors use <code>{"error":{"code","message"}}</code>.</p>
    <table>
      <tr><th>Method</th><th>Path</th><th>Summary</th><th>Responses</th></tr>
      {{range .Routes}}<tr><td><code>{{.Method}}</code></td><td><code>{{.Path}}</code></td><td>{{.Summary}}</td><td>{{.Codes}}</td></tr>
      {{end}}
    </table>
  </body>
</html>`))

// apiDocsHTML is rendered once from the embedded document.
var apiDocsHTML = mustRenderAPIDocs(openAPISpec)

func mustRenderAPIDocs(raw []byte) []byte {
	page, err := renderAPIDocs(raw)
	if err != nil {
		panic(err)
	}
	return page
}

func renderAPIDocs(raw []byte) ([]byte, error) {
	var doc apiDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	var routes []apiRoute
	for path, item := range doc.Paths {
		for method, rawOp := range item {
			if method == "parameters" {
				continue
			}
			var op apiOperation
			if err := json.Unmarshal(rawOp, &op); err != nil {
				return nil, err
			}
			codes := make([]string, 0, len(op.Responses))
			for code := range op.Responses {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			routes = append(routes, apiRoute{
				Method:  strings.ToUpper(method),
				Path:    path,
				Summary: op.Summary,
				Codes:   strings.Join(codes, ", "),
			})
		}
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})

	var buf bytes.Buffer
	err := apiDocsTemplate.Execute(&buf, map[string]any{
		"Title":       doc.Info.Title,
		"Version":     doc.Info.Version,
		"Description": doc.Info.Description,
		"Routes":      routes,
	})
	return buf.Bytes(), err
}

// OpenAPIJSON serves the embedded OpenAPI document.
func (a *App) OpenAPIJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

// OpenAPIDocs serves a route table rendered from the same document.
func (a *App) OpenAPIDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(apiDocsHTML)
}
