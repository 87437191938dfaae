package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferRenderer(mode Mode, isTTY bool) (*Renderer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewRendererWithTTY(buf, &bytes.Buffer{}, isTTY, mode), buf
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{"auto on tty", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeMarkdown},
		{"empty defaults to auto", "", false, ModeMarkdown},
		{"explicit text piped", ModeText, false, ModeText},
		{"explicit markdown on tty", ModeMarkdown, true, ModeMarkdown},
		{"explicit json", ModeJSON, true, ModeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newBufferRenderer(tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestJSONIndented(t *testing.T) {
	r, buf := newBufferRenderer(ModeJSON, false)

	err := r.JSON(ListOutput{
		Version: "1.2.3",
		Gates: []GateInfo{
			{Subject: "Legacy", Predicate: ">= 2.0.0", Status: GateStatusPending, File: "a.go", Line: 3},
		},
		Summary: ListSummary{Total: 1, Pending: 1},
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "  \"version\": \"1.2.3\"")

	var decoded ListOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Legacy", decoded.Gates[0].Subject)
}

func TestHeaderMarkdown(t *testing.T) {
	r, buf := newBufferRenderer(ModeMarkdown, false)

	r.Header(1, "Gates")
	r.Header(2, "Details")

	assert.Equal(t, "# Gates\n## Details\n", buf.String())
}

func TestHeaderTextUnderlinesLevel1(t *testing.T) {
	r, buf := newBufferRenderer(ModeText, false)

	r.Header(1, "Gates")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Gates")
	assert.Contains(t, lines[1], "=====")
}

func TestSuccessAndWarningMarkdown(t *testing.T) {
	r, buf := newBufferRenderer(ModeMarkdown, false)

	r.Success("all gates pending")
	r.Warning("cache disabled")

	assert.Equal(t, "all gates pending\nWarning: cache disabled\n", buf.String())
}

func TestStatusLineMarkdown(t *testing.T) {
	r, buf := newBufferRenderer(ModeMarkdown, false)

	r.StatusLine("allowuntil.yaml", "success", "")
	r.StatusLine("VERSION", "success", "1.0.0")

	assert.Equal(t, "- allowuntil.yaml\n- VERSION (1.0.0)\n", buf.String())
}

func TestStatusLineText(t *testing.T) {
	r, buf := newBufferRenderer(ModeText, false)

	r.StatusLine("pkg/legacy.go", "triggered", "remove shim")

	out := buf.String()
	assert.Contains(t, out, "pkg/legacy.go")
	assert.Contains(t, out, "remove shim")
}

func TestFormatHeader(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(1, "Title"))
	assert.Equal(t, "### Title", FormatHeader(3, "Title"))
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "###### Title", FormatHeader(9, "Title"))
}

func TestFormatKeyValue(t *testing.T) {
	assert.Equal(t, "- **Version**: 1.2.3", FormatKeyValue("Version", "1.2.3"))
}

func TestFormatCodeBlock(t *testing.T) {
	got := FormatCodeBlock("go", "package main\n")
	assert.Equal(t, "```go\npackage main\n```", got)
}

func TestWriterAccessors(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	r := NewRendererWithTTY(out, errOut, false, ModeText)

	assert.Same(t, out, r.Writer().(*bytes.Buffer))
	assert.Same(t, errOut, r.ErrWriter().(*bytes.Buffer))
	assert.False(t, r.IsTTY())
	assert.NotNil(t, r.Styles())
}
