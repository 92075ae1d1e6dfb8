package render

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

const (
	pageWidth = 210.0
	margin    = 15.0
	qrSize    = 32.0
)

type pdfSerializer struct{}

func (pdfSerializer) ContentType() string { return "application/pdf" }
func (pdfSerializer) Extension() string   { return "pdf" }

func (pdfSerializer) Serialize(m Model) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// all three are needed for byte-identical output
	pdf.SetCreationDate(m.Generated)
	pdf.SetModificationDate(m.Generated)
	pdf.SetCatalogSort(true)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(m.Title, true)
	pdf.SetAuthor(m.Brand, true)
	pdf.SetCreator("tourplanner", true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, 22)

	pr, pg, pb := hexToRGB(m.Palette.Primary)
	sr, sg, sb := hexToRGB(m.Palette.Secondary)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-18)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(110, 110, 110)
		if m.Footer != "" {
			pdf.CellFormat(0, 4, tr(m.Footer), "", 1, "C", false, 0, "")
		}
		pdf.CellFormat(0, 4, tr(fmt.Sprintf("%s   |   page %d", m.PoweredBy, pdf.PageNo())), "", 1, "C", false, 0, "")
	})

	pdf.AddPage()

	// header band
	pdf.SetFillColor(pr, pg, pb)
	pdf.Rect(0, 0, pageWidth, 28, "F")
	if m.Layout == "modern" {
		pdf.SetFillColor(sr, sg, sb)
		pdf.Rect(0, 28, pageWidth, 2, "F")
	}
	pdf.SetTextColor(255, 255, 255)
	pdf.SetXY(margin, 8)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 8, tr(m.Brand), "", 1, "L", false, 0, "")

	pdf.SetY(36)
	pdf.SetTextColor(30, 30, 30)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, tr(m.Title), "", "L", false)
	if m.Subtitle != "" {
		pdf.SetFont("Helvetica", "", 11)
		pdf.SetTextColor(90, 90, 90)
		pdf.CellFormat(0, 6, tr(m.Subtitle), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	if len(m.Summary) > 0 {
		pdf.SetFillColor(sr, sg, sb)
		pdf.SetTextColor(30, 30, 30)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, tr("At a glance"), "", 1, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, line := range m.Summary {
			pdf.CellFormat(0, 5, tr("- "+line), "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	for _, s := range m.Sections {
		writeSection(pdf, tr, m.Layout, s, [3]int{pr, pg, pb}, [3]int{sr, sg, sb})
	}

	if len(m.Notes) > 0 {
		pdf.SetTextColor(pr, pg, pb)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, tr("Good to know"), "", 1, "L", false, 0, "")
		for _, s := range m.Notes {
			writeSection(pdf, tr, m.Layout, s, [3]int{pr, pg, pb}, [3]int{sr, sg, sb})
		}
	}

	if len(m.Extensions) > 0 {
		writeSection(pdf, tr, m.Layout, Section{Heading: "Optional extensions", Blocks: m.Extensions}, [3]int{pr, pg, pb}, [3]int{sr, sg, sb})
	}

	pdf.Ln(2)
	pdf.SetDrawColor(sr, sg, sb)
	for _, row := range m.Pricing {
		style := ""
		if row.Strong {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 11)
		pdf.SetTextColor(30, 30, 30)
		pdf.CellFormat(60, 8, tr(row.Label), "B", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, tr(row.Value), "B", 1, "R", false, 0, "")
	}

	if m.PortalURL != "" {
		png, err := qrcode.Encode(m.PortalURL, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("failed to encode portal qr: %w", err)
		}
		if pdf.GetY()+qrSize+10 > 270 {
			pdf.AddPage()
		}
		pdf.Ln(6)
		y := pdf.GetY()
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("portal-qr", opts, bytes.NewReader(png))
		pdf.ImageOptions("portal-qr", margin, y, qrSize, qrSize, false, opts, 0, "")
		pdf.SetXY(margin+qrSize+4, y+10)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(pr, pg, pb)
		pdf.WriteLinkString(5, tr("View and approve online"), m.PortalURL)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSection(pdf *gofpdf.Fpdf, tr func(string) string, layout string, s Section, primary, secondary [3]int) {
	if layout == "gallery" {
		pdf.SetFillColor(secondary[0], secondary[1], secondary[2])
		pdf.SetTextColor(30, 30, 30)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 9, tr(s.Heading), "", 1, "L", true, 0, "")
	} else {
		pdf.SetTextColor(primary[0], primary[1], primary[2])
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, tr(s.Heading), "", 1, "L", false, 0, "")
	}
	if s.Caption != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(0, 5, tr(s.Caption), "", 1, "L", false, 0, "")
	}
	if s.ImageURL != "" {
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(primary[0], primary[1], primary[2])
		pdf.WriteLinkString(4, tr("Photo"), s.ImageURL)
		pdf.Ln(5)
	}

	pdf.SetTextColor(30, 30, 30)
	for _, b := range s.Blocks {
		if b.Label != "" || b.Title != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.CellFormat(28, 6, tr(b.Label), "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "B", 10)
			pdf.MultiCell(0, 6, tr(b.Title), "", "L", false)
		}
		if b.Detail != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.SetX(margin + 28)
			pdf.MultiCell(0, 5, tr(b.Detail), "", "L", false)
		}
	}
	pdf.Ln(3)
}
