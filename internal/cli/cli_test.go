package cli

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pboffice01/PDFGeneral/parser"
	"github.com/pboffice01/PDFGeneral/pdferr"
)

// execute runs the root command with an empty config and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var logs, out bytes.Buffer
	c := New(&logs, LogInfo)
	root := c.RootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", ""}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFixture(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.NRGBA{R: 30, G: 90, B: 200, A: 200})
		}
	}
	path := filepath.Join(dir, "logo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

const gridYAML = `
rows: 3
columns: 2
row_spans: [{cell: 0, count: 1}]
text:
  - {cell: 0, text: Region}
  - {cell: 1, text: North}
  - {cell: 3, text: South}
`

func TestRenderThenStamp(t *testing.T) {
	dir := t.TempDir()
	grid := writeFixture(t, dir, "report.yaml", gridYAML)

	_, err := execute(t, "render", grid)
	require.NoError(t, err)
	rendered := filepath.Join(dir, "report.pdf")
	data, err := os.ReadFile(rendered)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	stamped := filepath.Join(dir, "out.pdf")
	_, err = execute(t, "stamp", rendered, "--image", writePNG(t, dir), "--rotation", "30", "--scale", "50", "-o", stamped)
	require.NoError(t, err)
	out, err := os.ReadFile(stamped)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, data), "stamping appends an update")

	doc, err := parser.NewDocumentParser(parser.Config{}).Parse(context.Background(), bytes.NewReader(out))
	require.NoError(t, err)
	pages, err := parser.PageTree(doc)
	require.NoError(t, err)
	assert.Len(t, pages, 1)

	report, err := execute(t, "inspect", stamped)
	require.NoError(t, err)
	assert.Contains(t, report, "pages:     1")
	assert.Contains(t, report, "revisions: 2")
	assert.Contains(t, report, "595.28 x 841.89")
}

func TestRenderFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFixture(t, dir, "pdfgrid.toml", "[render]\npage_size = \"A5\"\ncompression = 0\n")
	grid := writeFixture(t, dir, "grid.txt", gridYAML)
	out := filepath.Join(dir, "grid.pdf")

	var logs bytes.Buffer
	root := New(&logs, LogInfo).RootCommand()
	root.SetArgs([]string{"--config", cfg, "render", grid, "--format", "yaml", "--page-size", "letter", "--title", "Sales", "-o", out})
	require.NoError(t, root.ExecuteContext(context.Background()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "(Sales)")
	assert.Contains(t, string(data), "(North) Tj", "compression 0 from the config file")
	assert.Contains(t, string(data), "612 792")
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	grid := writeFixture(t, dir, "bad.yaml", "rows: 0\ncolumns: 2\n")
	notPDF := writeFixture(t, dir, "notes.pdf", "hello")

	_, err := execute(t, "render", grid)
	assert.True(t, pdferr.Is(err, pdferr.InvalidDimension), "got %v", err)

	_, err = execute(t, "render", writeFixture(t, dir, "g.yaml", gridYAML), "--page-size", "B9")
	assert.True(t, pdferr.Is(err, pdferr.InvalidInput), "got %v", err)

	_, err = execute(t, "stamp", notPDF, "--image", writePNG(t, dir))
	assert.True(t, pdferr.Is(err, pdferr.SourceDocumentUnreadable), "got %v", err)

	_, err = execute(t, "stamp", filepath.Join(dir, "g.pdf"), "--image", filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	_, err = execute(t, "stamp", notPDF, "--image", writePNG(t, dir), "--fill-opacity", "3")
	assert.True(t, pdferr.Is(err, pdferr.InvalidInput), "got %v", err)

	_, err = execute(t, "render")
	assert.Error(t, err, "render needs one argument")

	_, err = execute(t, "--config", filepath.Join(dir, "absent.toml"), "inspect", notPDF)
	assert.True(t, pdferr.Is(err, pdferr.InvalidInput), "an explicit config must exist: %v", err)
}

func TestCancelledContext(t *testing.T) {
	dir := t.TempDir()
	grid := writeFixture(t, dir, "grid.yaml", gridYAML)
	root := New(&bytes.Buffer{}, LogInfo).RootCommand()
	root.SetArgs([]string{"--config", "", "render", grid})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := root.ExecuteContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
