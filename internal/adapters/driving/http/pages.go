package http

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/custodia-labs/accountlink/internal/core/ports/driving"
)

const pageLayout = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    {{- if .RedirectURL}}
    <meta http-equiv="refresh" content="0;url={{.RedirectURL}}">
    {{- end}}
    <style>
        body { font-family: Arial, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background-color: #f5f5f5; }
        .container { text-align: center; padding: 2rem; background: white; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); max-width: 28rem; }
        .success { color: #28a745; margin: 20px 0; }
        .error { color: #dc3545; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="container">
        <h2>{{.Title}}</h2>
        {{- if .RedirectURL}}
        <p>If you are not redirected automatically, <a href="{{.RedirectURL}}">click here</a>.</p>
        {{- else}}
        <p class="{{.Class}}">{{.Message}}</p>
        <p>{{.Hint}}</p>
        {{- end}}
    </div>
</body>
</html>
`

var pageTemplate = template.Must(template.New("page").Parse(pageLayout))

type page struct {
	Title       string
	Message     string
	Hint        string
	Class       string
	RedirectURL string
}

const retryHint = "Please try again from your Telegram bot."

func redirectPage(url string) page {
	return page{Title: "Redirecting to Google...", RedirectURL: url}
}

func successPage(account string) page {
	return page{
		Title:   "Authentication Successful",
		Message: "Your Google account " + account + " is now linked.",
		Hint:    "You can close this window and return to Telegram.",
		Class:   "success",
	}
}

func failurePage(le *driving.LinkError) page {
	title := "Authentication Error"
	switch le.Code {
	case driving.CodeInvalidState, driving.CodeStateAlreadyUsed, driving.CodeAuthorizationDenied:
		title = "Authentication Failed"
	case driving.CodeExpiredState:
		title = "Authentication Expired"
	case driving.CodeAccountAlreadyLinked:
		title = "Account Already Linked"
	}
	return page{Title: title, Message: le.Description + ".", Hint: retryHint, Class: "error"}
}

func writeHTML(w http.ResponseWriter, status int, p page) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// prefersHTML reports whether the client asked for a page. An explicit
// format query parameter wins over the Accept header.
func prefersHTML(r *http.Request, fallback bool) bool {
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "html":
		return true
	case "json":
		return false
	}

	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "text/html"):
		return true
	case strings.Contains(accept, "application/json"):
		return false
	default:
		return fallback
	}
}
