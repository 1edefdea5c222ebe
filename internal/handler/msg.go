package handler

import (
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jharjadi/docingest/internal/model"
	"github.com/jharjadi/docingest/internal/msgfmt"
	"github.com/jharjadi/docingest/internal/pipeline/classify"
	"github.com/jharjadi/docingest/internal/process"
)

// MsgHandler parses Outlook .msg (compound-file email) input, returning one
// ExtractedFileItem per attachment plus a rendered "Email_Body_*.pdf" item
// when the message has a non-empty body (spec §4.5).
type MsgHandler struct {
	tempDir string
	timeout time.Duration
}

func NewMsgHandler(tempDir string, timeout time.Duration) *MsgHandler {
	return &MsgHandler{tempDir: tempDir, timeout: timeout}
}

func (h *MsgHandler) Supports(ext string) bool { return ext == "msg" }

func (h *MsgHandler) Handle(ctx context.Context, stream io.Reader, fm *model.FileMaster) ([]model.ExtractedFileItem, classify.Result) {
	raw, err := io.ReadAll(stream)
	if err != nil {
		return nil, classify.TransientIOErr("read msg input: " + err.Error())
	}

	msg, err := msgfmt.Parse(raw)
	if err != nil {
		return nil, classify.Malformed("not a valid msg file: " + err.Error())
	}

	var items []model.ExtractedFileItem
	for _, att := range msg.Attachments {
		if att.FileName == "" || len(att.Data) == 0 {
			continue
		}
		items = append(items, model.ExtractedFileItem{Name: att.FileName, Bytes: att.Data})
	}

	bodyHTML := renderBodyHTML(msg)
	if bodyHTML != "" {
		pdfBytes, result := h.renderHTMLToPDF(ctx, bodyHTML)
		if result.Outcome != classify.Ok {
			return nil, result
		}
		items = append(items, model.ExtractedFileItem{
			Name:  "Email_Body_" + uuid.New().String() + ".pdf",
			Bytes: pdfBytes,
		})
	}

	return items, classify.OkResult()
}

// renderBodyHTML builds the cleaned HTML body: HTML body preferred, plain
// text fallback wrapped in <pre>, with a subject/from/to header block. An
// empty message body (no HTML, no plain text) yields "".
func renderBodyHTML(msg *msgfmt.Message) string {
	var content string
	switch {
	case strings.TrimSpace(msg.HTML) != "":
		content = msg.HTML
	case strings.TrimSpace(msg.Body) != "":
		content = "<pre>" + html.EscapeString(msg.Body) + "</pre>"
	default:
		return ""
	}

	header := fmt.Sprintf(
		"<div><strong>Subject:</strong> %s</div><div><strong>From:</strong> %s</div><div><strong>To:</strong> %s</div><hr/>",
		html.EscapeString(msg.Subject), html.EscapeString(msg.From), html.EscapeString(msg.To),
	)

	return "<html><body>" + header + content + "</body></html>"
}

// renderHTMLToPDF shells out to the HTML->PDF renderer (spec §1: an
// external, opaque subprocess). A missing font file is logged by the
// renderer itself and must not fail the job (spec §4.5); that tolerance
// lives in the renderer's own fallback, not here.
func (h *MsgHandler) renderHTMLToPDF(ctx context.Context, bodyHTML string) ([]byte, classify.Result) {
	workDir := filepath.Join(h.tempDir, "msgbody-"+uuid.New().String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, classify.TransientIOErr("create msg body work dir: " + err.Error())
	}
	defer os.RemoveAll(workDir)

	htmlPath := filepath.Join(workDir, "body.html")
	if err := os.WriteFile(htmlPath, []byte(bodyHTML), 0o644); err != nil {
		return nil, classify.TransientIOErr("write msg body html: " + err.Error())
	}
	pdfPath := filepath.Join(workDir, "body.pdf")

	res, err := process.Run(ctx, "msg-body-render", "wkhtmltopdf", []string{"--quiet", htmlPath, pdfPath}, h.timeout)
	if err != nil {
		return nil, classify.TransientExternalErr("html to pdf renderer failed: " + err.Error())
	}
	if res.ExitCode != 0 {
		return nil, classify.ClassifyProcessFailure(res.ExitCode, res.Stderr)
	}

	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, classify.Malformed("html to pdf renderer produced no output: " + err.Error())
	}
	return data, classify.OkResult()
}
