package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"loom/internal/tree"
)

//go:embed templates/*.html
var templateFS embed.FS

var transcriptTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/transcript.html")
	if err != nil {
		// Fallback to built-in template if file not found
		transcriptTemplate = template.Must(template.New("transcript").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	transcriptTemplate = template.Must(template.New("transcript").Funcs(funcMap).Parse(string(templateContent)))
}

// TranscriptData holds data for transcript template rendering.
type TranscriptData struct {
	Title    string
	Exported time.Time
	Messages []tree.Message
}

// RenderTranscriptHTML renders the transcript template with provided data.
// Message content is escaped by the template engine, so untrusted
// conversation text cannot inject markup.
func RenderTranscriptHTML(data TranscriptData) (string, error) {
	var buf bytes.Buffer
	if err := transcriptTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .message { margin: 1rem 0; padding: 0.75rem 1rem; border-radius: 6px; white-space: pre-wrap; }
    .message.user { background: #eef3fb; }
    .message.assistant { background: #f5f5f5; }
    .message.system { background: #fdf6e3; font-style: italic; }
    .role { font-weight: bold; font-size: 0.85em; text-transform: uppercase; color: #555; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">Exported {{formatDate .Exported "Jan 2, 2006 15:04 MST"}}</div>
  {{range .Messages}}
  <div class="message {{lower (printf "%s" .Role)}}">
    <div class="role">{{.Role}}</div>
    <div>{{.Content}}</div>
  </div>
  {{end}}
</body>
</html>`
