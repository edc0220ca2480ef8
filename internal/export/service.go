package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"loom/internal/tree"
)

// Service renders conversation transcripts.
type Service struct {
	chromiumPath string
}

// NewService creates an export service. chromiumPath overrides the
// browser binary used for PDF rendering; empty means look it up on PATH.
func NewService(chromiumPath string) *Service {
	return &Service{chromiumPath: chromiumPath}
}

// Export renders the conversation's active path in the requested format.
// Empty conversations render as an empty transcript.
func (s *Service) Export(ctx context.Context, id, name string, doc *tree.Document, format Format) (*Result, error) {
	var messages []tree.Message
	if len(doc.Roots) > 0 {
		projected, err := doc.ExportMessages()
		if err != nil {
			return nil, fmt.Errorf("project transcript: %w", err)
		}
		messages = projected
	}

	title := strings.TrimSpace(name)
	if title == "" {
		title = "Conversation"
	}

	switch format {
	case FormatText:
		return renderText(title, messages)
	case FormatJSONL:
		return renderJSONL(title, messages)
	case FormatHTML:
		html, err := transcriptHTML(title, messages)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		html, err := transcriptHTML(title, messages)
		if err != nil {
			return nil, err
		}
		return exportPDF(ctx, s.chromiumPath, html, title)
	case FormatDOCX:
		html, err := transcriptHTML(title, messages)
		if err != nil {
			return nil, err
		}
		return exportDOCX(html, title)
	case FormatArchive:
		return exportArchive(id, title, doc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func transcriptHTML(title string, messages []tree.Message) (string, error) {
	return RenderTranscriptHTML(TranscriptData{
		Title:    title,
		Exported: time.Now().UTC(),
		Messages: messages,
	})
}

func renderText(title string, messages []tree.Message) (*Result, error) {
	var buf bytes.Buffer
	for i, msg := range messages {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(string(msg.Role))
		buf.WriteString(": ")
		buf.WriteString(msg.Content)
		buf.WriteString("\n")
	}
	return &Result{
		Data:     buf.Bytes(),
		Filename: sanitizeFilename(title) + ".txt",
		MimeType: "text/plain; charset=utf-8",
	}, nil
}

func renderJSONL(title string, messages []tree.Message) (*Result, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, msg := range messages {
		if err := encoder.Encode(msg); err != nil {
			return nil, fmt.Errorf("encode message: %w", err)
		}
	}
	return &Result{
		Data:     buf.Bytes(),
		Filename: sanitizeFilename(title) + ".jsonl",
		MimeType: "application/x-ndjson",
	}, nil
}
