package calls

import (
    "bytes"
    "strconv"

    "github.com/jung-kurt/gofpdf"

    "github.com/hyperifyio/smsbackup/internal/media"
)

// PDFName is the optional rendering of the call log.
const PDFName = "call_log.pdf"

var pdfColumns = []struct {
    title string
    width float64
    align string
}{
    {"Number", 40, "L"},
    {"Name", 45, "L"},
    {"Type", 30, "L"},
    {"Timestamp", 50, "L"},
    {"Duration (s)", 25, "R"},
}

// fit shortens s with a trailing ".." until it fits in width. s is already
// in the font's single-byte encoding, so cutting bytes is safe.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
    const pad = 2
    if pdf.GetStringWidth(s) <= width-pad {
        return s
    }
    for len(s) > 0 && pdf.GetStringWidth(s+"..") > width-pad {
        s = s[:len(s)-1]
    }
    return s + ".."
}

// writePDF renders calls as a plain table, repeating the header on each page.
// Core fonts only cover Latin-1, so free text is passed through the font's
// translator and long names are cut to their column.
func writePDF(calls []Call, outDir string, w *media.Writer) (string, error) {
    pdf := gofpdf.New("P", "mm", "A4", "")
    tr := pdf.UnicodeTranslatorFromDescriptor("")
    header := func() {
        pdf.SetFont("Helvetica", "B", 10)
        for _, col := range pdfColumns {
            pdf.CellFormat(col.width, 7, col.title, "1", 0, col.align, false, 0, "")
        }
        pdf.Ln(-1)
        pdf.SetFont("Helvetica", "", 9)
    }
    pdf.SetHeaderFunc(header)
    pdf.AddPage()
    pdf.SetFont("Helvetica", "", 9)

    for _, c := range calls {
        row := []string{
            tr(c.Number),
            fit(pdf, tr(c.ContactName), pdfColumns[1].width),
            c.Type,
            c.Timestamp(),
            strconv.Itoa(c.Duration),
        }
        for i, col := range pdfColumns {
            pdf.CellFormat(col.width, 6, row[i], "1", 0, col.align, false, 0, "")
        }
        pdf.Ln(-1)
    }
    if len(calls) == 0 {
        pdf.CellFormat(0, 6, "No calls found.", "", 1, "L", false, 0, "")
    }

    var buf bytes.Buffer
    if err := pdf.Output(&buf); err != nil {
        return "", err
    }
    return w.ReplaceFile(outDir, PDFName, buf.Bytes())
}
