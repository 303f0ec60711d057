package report

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
)

const (
	unicodeFamily  = "DejaVuSans"
	fallbackFamily = "Helvetica"

	bodySize    = 11.0
	bodyLeading = 15.0
	marginPt    = 40.0
	indentPt    = 14.0
)

// fontVariants are looked up next to the regular font file.
var fontVariants = []struct{ style, suffix string }{
	{"B", "-Bold"},
	{"I", "-Oblique"},
	{"BI", "-BoldOblique"},
}

// writePDF lays the document out on A4 pages as <dir>/<name>_teacher_conclusion.pdf.
func writePDF(doc Document, job Job, opts Options) ([]string, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	margin := pdf.PointConvert(marginPt)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(opts.Created)
	pdf.SetModificationDate(opts.Created)

	w := newPDFWriter(pdf, opts)
	title, _ := doc.Outline()
	if title == "" {
		title = job.Name
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor(job.Name, true)

	pdf.AddPage()
	for _, b := range doc.Blocks {
		w.block(b)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	path := filepath.Join(job.Dir, baseName(job.Name)+".pdf")
	if err := replaceFile(path, buf.Bytes()); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

type pdfWriter struct {
	pdf    *fpdf.Fpdf
	family string
	styles map[string]bool
	tr     func(string) string
}

// newPDFWriter registers the Unicode font, or falls back to Helvetica with
// a cp1252 translation when the font file cannot be read.
func newPDFWriter(pdf *fpdf.Fpdf, opts Options) *pdfWriter {
	w := &pdfWriter{pdf: pdf}

	data, err := readFont(opts.FontPath)
	if err != nil {
		opts.Logger.Warn("unicode font unavailable, using Helvetica",
			slog.String("font", opts.FontPath),
			slog.String("error", err.Error()),
		)
		w.family = fallbackFamily
		w.styles = map[string]bool{"": true, "B": true, "I": true, "BI": true}
		w.tr = pdf.UnicodeTranslatorFromDescriptor("")
		return w
	}

	pdf.AddUTF8FontFromBytes(unicodeFamily, "", data)
	w.family = unicodeFamily
	w.styles = map[string]bool{"": true}
	w.tr = func(s string) string { return s }

	stem := strings.TrimSuffix(opts.FontPath, filepath.Ext(opts.FontPath))
	for _, v := range fontVariants {
		if b, err := os.ReadFile(stem + v.suffix + filepath.Ext(opts.FontPath)); err == nil {
			pdf.AddUTF8FontFromBytes(unicodeFamily, v.style, b)
			w.styles[v.style] = true
		}
	}
	return w
}

func readFont(path string) ([]byte, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(path)
}

// style picks the closest registered font style.
func (w *pdfWriter) style(strong, emphasis bool) string {
	s := ""
	if strong {
		s += "B"
	}
	if emphasis {
		s += "I"
	}
	switch {
	case w.styles[s]:
		return s
	case strong && w.styles["B"]:
		return "B"
	case emphasis && w.styles["I"]:
		return "I"
	}
	return ""
}

func (w *pdfWriter) block(b Block) {
	lh := w.pdf.PointConvert(bodyLeading)

	switch b.Kind {
	case Heading:
		size, leading := 16.0, 20.0
		if b.Level >= 4 {
			size, leading = 14.0, 18.0
		}
		w.pdf.SetFont(w.family, w.style(true, false), size)
		w.pdf.MultiCell(0, w.pdf.PointConvert(leading), w.tr(b.Inline.String()), "", "L", false)
		w.pdf.Ln(w.pdf.PointConvert(leading / 2))
		return

	case Bullets:
		left, _, _, _ := w.pdf.GetMargins()
		indent := w.pdf.PointConvert(indentPt) * float64(b.Level)
		bullet := w.pdf.PointConvert(indentPt)
		for _, item := range b.Items {
			w.pdf.SetFont(w.family, "", bodySize)
			w.pdf.SetX(left + indent - bullet)
			w.pdf.CellFormat(bullet, lh, w.tr("•"), "", 0, "L", false, 0, "")
			w.pdf.SetLeftMargin(left + indent)
			w.spans(item, lh)
			w.pdf.SetLeftMargin(left)
			w.pdf.Ln(lh)
		}

	default:
		w.spans(b.Inline, lh)
		w.pdf.Ln(lh)
	}
	w.pdf.Ln(w.pdf.PointConvert(5))
}

func (w *pdfWriter) spans(in Inline, lh float64) {
	for _, s := range in {
		w.pdf.SetFont(w.family, w.style(s.Strong, s.Emphasis), bodySize)
		w.pdf.Write(lh, w.tr(s.Text))
	}
}
