package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pboffice01/PDFGeneral/ir/raw"
	"github.com/pboffice01/PDFGeneral/parser"
	"github.com/pboffice01/PDFGeneral/pdferr"
	"github.com/pboffice01/PDFGeneral/recovery"
)

func (c *CLI) inspectCommand() *cobra.Command {
	var reconstruct bool
	cmd := &cobra.Command{
		Use:   "inspect <file.pdf>",
		Short: "Print the pages, resources and cross-reference layout of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd.Context(), cmd.OutOrStdout(), args[0], reconstruct)
		},
	}
	cmd.Flags().BoolVar(&reconstruct, "reconstruct", false, "rebuild the object table when the xref is damaged")
	return cmd
}

func (c *CLI) runInspect(ctx context.Context, w io.Writer, path string, reconstruct bool) error {
	data, err := readInput(path)
	if err != nil {
		return err
	}
	doc, err := parser.NewDocumentParser(parser.Config{
		Reconstruct: reconstruct,
		Recovery:    recovery.NewLoggingStrategy(c.logger()),
		Logger:      c.logger(),
	}).Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return pdferr.Wrap(pdferr.SourceDocumentUnreadable, err, "parse %s", path)
	}

	xrefKind := "table"
	switch {
	case doc.StartXRef < 0:
		xrefKind = "reconstructed"
	case doc.XRefStream:
		xrefKind = "stream"
	}
	printField(w, "file", path, styleValue)
	printField(w, "version", doc.Version, styleValue)
	printField(w, "xref", xrefKind, styleValue)
	printField(w, "revisions", bytes.Count(data, []byte("startxref")), styleValue)
	printField(w, "objects", len(doc.Objects), styleValue)
	encrypted := styleValue
	if doc.Encrypted {
		encrypted = styleWarning
	}
	printField(w, "encrypted", doc.Encrypted, encrypted)
	if doc.Encrypted {
		return nil
	}

	pages, err := parser.PageTree(doc)
	if err != nil {
		return pdferr.Wrap(pdferr.SourceDocumentUnreadable, err, "read page tree")
	}
	printField(w, "pages", len(pages), styleValue)
	for i, p := range pages {
		fmt.Fprintf(w, "  %d: %.2f x %.2f rotate %d, %d content stream(s), fonts [%s]\n",
			i+1, p.Width(), p.Height(), p.Rotate, contentCount(doc, p), strings.Join(resourceNames(doc, p, "Font"), " "))
	}
	return nil
}

func contentCount(doc *raw.Document, p parser.Page) int {
	switch v := doc.Get(p.Dict, "Contents").(type) {
	case *raw.ArrayObj:
		return v.Len()
	case *raw.StreamObj:
		return 1
	}
	return 0
}

func resourceNames(doc *raw.Document, p parser.Page, category string) []string {
	sub, ok := doc.DictOf(doc.Get(p.Resources, category))
	if !ok {
		return nil
	}
	var names []string
	for _, k := range sub.Keys() {
		names = append(names, k.Value())
	}
	return names
}
