package render

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/Conceptual-Machines/travel-guide-api/internal/logger"
	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
	"github.com/phpdave11/gofpdf"
)

// Section titles, also used as bookmarks and in RenderedDocument.Outline
const (
	TitleCover       = "Cover"
	TitleOverview    = "Trip Overview"
	TitleRestaurants = "Recommended Restaurants & Cafes"
	TitleBudget      = "Estimated Budget Breakdown"
	TitlePacking     = "Packing Suggestions"
	TitleTips        = "Essential Travel Tips"
	TitleRaw         = "Itinerary"
	TitleGallery     = "Photo Gallery"
)

const (
	fontFamily     = "Helvetica"
	margin         = 20.0
	lineHeight     = 6.0
	indentStep     = 6.0
	coverImageW    = 150.0
	galleryImageW  = 120.0
	captionHeight  = 8.0
	imageGap       = 2.0
	creatorName    = "travel-guide-api"
	imageNameStart = "img"
)

// documentEpoch is stamped as creation and modification date so equal input gives equal bytes
var documentEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Renderer lays an Itinerary and its images out as an A4 PDF
type Renderer struct{}

// NewRenderer creates a renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

type document struct {
	pdf     *gofpdf.Fpdf
	outline []string
	images  int
}

// Render produces the PDF. Output is byte-identical for equal input.
// An unstructured itinerary is written as one raw block; the document then has
// Fallback set. Only a PDF library failure returns an error (*models.RenderError).
func (r *Renderer) Render(it *models.Itinerary, images models.ImageSet) (*models.RenderedDocument, error) {
	if it == nil {
		return nil, &models.RenderError{Err: fmt.Errorf("no itinerary to render")}
	}

	d := &document{pdf: newPDF(it)}
	prepared := prepareImages(images)

	d.cover(it, prepared.city)

	fallback := !it.Structured()
	if fallback {
		d.rawBlock(it.Raw)
	} else {
		d.structured(it)
	}
	d.gallery(prepared.interests)

	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, &models.RenderError{Err: err}
	}

	doc := &models.RenderedDocument{
		Filename:   models.DocumentFilename(it.Destination, it.Days),
		Data:       buf.Bytes(),
		Outline:    d.outline,
		ImageCount: d.images,
		Fallback:   fallback,
	}
	logger.Info("PDF rendered", logger.Fields{
		"filename": doc.Filename,
		"bytes":    len(doc.Data),
		"images":   doc.ImageCount,
		"fallback": doc.Fallback,
	})
	return doc, nil
}

func newPDF(it *models.Itinerary) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(documentEpoch)
	pdf.SetModificationDate(documentEpoch)
	pdf.SetCatalogSort(true)
	pdf.SetCompression(true)

	pdf.SetTitle(fmt.Sprintf("%s travel guide", it.Destination), true)
	pdf.SetSubject(daysLabel(it), true)
	pdf.SetCreator(creatorName, true)

	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		if pdf.PageNo() == 1 {
			return
		}
		pdf.SetY(-15)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, "Page "+strconv.Itoa(pdf.PageNo())+" of {nb}", "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})
	return pdf
}

func daysLabel(it *models.Itinerary) string {
	days := it.Days
	if days <= 0 {
		days = len(it.DaySections)
	}
	if days == 1 {
		return "1 Day Itinerary"
	}
	return fmt.Sprintf("%d Day Itinerary", days)
}

func (d *document) bookmark(title string, level int) {
	d.pdf.Bookmark(title, level, -1)
	d.outline = append(d.outline, title)
}

func (d *document) cover(it *models.Itinerary, city *preparedImage) {
	pdf := d.pdf
	pdf.AddPage()
	d.bookmark(TitleCover, 0)

	pdf.SetY(45)
	pdf.SetFont(fontFamily, "B", 28)
	pdf.MultiCell(0, 12, toCodePage(it.Destination), "", "C", false)
	pdf.Ln(2)
	pdf.SetFont(fontFamily, "", 16)
	pdf.CellFormat(0, 10, daysLabel(it), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	if city != nil {
		d.placeImage(city.img, coverImageW, d.spaceLeft()-imageGap)
	}
}

func (d *document) structured(it *models.Itinerary) {
	pdf := d.pdf
	pdf.AddPage()

	if len(it.Overview) > 0 {
		d.section(TitleOverview)
		d.lines(it.Overview)
	}

	for _, day := range it.DaySections {
		title := fmt.Sprintf("Day %d", day.Number)
		if day.Title != "" {
			title += ": " + day.Title
		}
		d.ensureSpace(30)
		pdf.Ln(2)
		pdf.SetFont(fontFamily, "B", 14)
		pdf.SetTextColor(30, 70, 140)
		pdf.MultiCell(0, 8, toCodePage(title), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
		d.bookmark(title, 0)
		d.lines(day.Lines)
	}

	d.section(TitleRestaurants)
	d.lines(it.Restaurants)
	d.section(TitleBudget)
	d.lines(it.Budget)
	d.section(TitlePacking)
	d.lines(it.Packing)

	if len(it.Tips) > 0 {
		d.section(TitleTips)
		d.lines(it.Tips)
	}
}

// rawBlock writes the generated text as a single unformatted block
func (d *document) rawBlock(raw string) {
	pdf := d.pdf
	pdf.AddPage()
	d.section(TitleRaw)
	pdf.SetFont(fontFamily, "", 10)
	if raw == "" {
		raw = "No itinerary text was generated."
	}
	pdf.MultiCell(0, 5, toCodePage(raw), "", "L", false)
}

func (d *document) section(title string) {
	pdf := d.pdf
	d.ensureSpace(25)
	pdf.Ln(4)
	pdf.SetFont(fontFamily, "B", 18)
	pdf.CellFormat(0, 10, toCodePage(title), "", 1, "L", false, 0, "")
	left, _, right, _ := pdf.GetMargins()
	pageW, _ := pdf.GetPageSize()
	y := pdf.GetY()
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(left, y, pageW-right, y)
	pdf.Ln(3)
	d.bookmark(title, 0)
}

func (d *document) lines(lines []string) {
	pdf := d.pdf
	left, _, _, _ := pdf.GetMargins()
	for _, raw := range lines {
		line := parseBodyLine(raw)
		if line.text == "" {
			continue
		}
		indent := float64(line.level) * indentStep
		pdf.SetX(left + indent)

		switch line.kind {
		case lineLabel:
			pdf.Ln(1)
			pdf.SetFont(fontFamily, "B", 11)
			pdf.MultiCell(0, lineHeight, toCodePage(line.text), "", "L", false)
		case lineBullet, lineNumbered:
			pdf.SetFont(fontFamily, "", 11)
			markerW := 6.0
			if line.kind == lineNumbered {
				markerW = 8.0
			}
			pdf.CellFormat(markerW, lineHeight, toCodePage(line.marker), "", 0, "L", false, 0, "")
			pdf.MultiCell(0, lineHeight, toCodePage(line.text), "", "L", false)
		default:
			pdf.SetFont(fontFamily, "", 11)
			pdf.MultiCell(0, lineHeight, toCodePage(line.text), "", "L", false)
		}
	}
}

func (d *document) gallery(images []preparedImage) {
	if len(images) == 0 {
		return
	}
	pdf := d.pdf
	pdf.AddPage()
	d.section(TitleGallery)

	_, top, _, bottom := pdf.GetMargins()
	_, pageH := pdf.GetPageSize()
	reserved := captionHeight + 4 + imageGap
	fullPage := pageH - top - bottom - reserved
	for _, img := range images {
		_, h := fitImage(img.img, galleryImageW, fullPage)
		d.ensureSpace(h + reserved)
		d.placeImage(img.img, galleryImageW, d.spaceLeft()-reserved)
		pdf.SetFont(fontFamily, "I", 10)
		pdf.CellFormat(0, captionHeight, toCodePage(img.caption), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}
}

// placeImage centres img at most maxW wide and maxH tall
func (d *document) placeImage(img *pdfImage, maxW, maxH float64) {
	pdf := d.pdf
	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader(img.name, opts, bytes.NewReader(img.data))
	pageW, _ := pdf.GetPageSize()
	w, h := fitImage(img, maxW, maxH)
	pdf.ImageOptions(img.name, (pageW-w)/2, pdf.GetY(), w, h, false, opts, 0, "")
	pdf.SetY(pdf.GetY() + h + imageGap)
	d.images++
}

// fitImage scales img to maxW, shrinking both sides when it is taller than maxH
func fitImage(img *pdfImage, maxW, maxH float64) (w, h float64) {
	w = maxW
	h = w * float64(img.height) / float64(img.width)
	if maxH > 0 && h > maxH {
		h = maxH
		w = h * float64(img.width) / float64(img.height)
	}
	return w, h
}

// spaceLeft is the height between the cursor and the bottom margin
func (d *document) spaceLeft() float64 {
	_, pageH := d.pdf.GetPageSize()
	_, _, _, bottom := d.pdf.GetMargins()
	return pageH - bottom - d.pdf.GetY()
}

// ensureSpace starts a new page when fewer than h mm remain
func (d *document) ensureSpace(h float64) {
	if h > d.spaceLeft() {
		d.pdf.AddPage()
	}
}

type preparedImage struct {
	img     *pdfImage
	caption string
}

type preparedImages struct {
	city      *preparedImage
	interests []preparedImage
}

// prepareImages decodes every image up front; undecodable images are skipped
// so they cannot put gofpdf into its error state.
func prepareImages(images models.ImageSet) preparedImages {
	var out preparedImages
	for i, item := range images {
		name := fmt.Sprintf("%s%02d", imageNameStart, i)
		img, err := normalizeImage(name, item.Data)
		if err != nil {
			logger.Warn("Skipping image that cannot be embedded", logger.Fields{
				"theme": item.Theme,
				"error": err.Error(),
			})
			continue
		}
		p := preparedImage{img: img, caption: item.Theme}
		if item.Kind == models.ImageKindCity && out.city == nil {
			out.city = &p
			continue
		}
		out.interests = append(out.interests, p)
	}
	return out
}
