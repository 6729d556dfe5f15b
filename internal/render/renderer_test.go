package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, c color.Color) []byte {
	return sizedPNG(t, c, 16, 12)
}

func sizedPNG(t *testing.T, c color.Color, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func parisItinerary() *models.Itinerary {
	return &models.Itinerary{
		Destination: "Paris",
		Days:        3,
		Model:       "gpt-4o",
		Overview:    []string{"Three days of food and museums."},
		DaySections: []models.DaySection{
			{Number: 1, Title: "Left Bank", Lines: []string{"- **Morning:** Café de Flore", "  - Try the chocolat chaud"}},
			{Number: 2, Title: "Louvre", Lines: []string{"**Morning**", "1. Louvre highlights"}},
			{Number: 3, Lines: []string{"Montmartre walk → Sacré-Cœur"}},
		},
		Restaurants: []string{"- Le Comptoir du Relais"},
		Tips:        []string{"- Buy a Navigo Easy card"},
		Budget:      []string{"- Accommodation: €450", "- Food: €240"},
		Packing:     []string{"- Walking shoes"},
		Raw:         "## Trip Overview\n...",
	}
}

func parisImages(t *testing.T) models.ImageSet {
	return models.ImageSet{
		{Theme: "Paris", Kind: models.ImageKindCity, MIMEType: "image/png", Data: testPNG(t, color.RGBA{R: 200, A: 255})},
		{Theme: "food", Kind: models.ImageKindInterest, MIMEType: "image/png", Data: testPNG(t, color.RGBA{G: 200, A: 255})},
		{Theme: "museums", Kind: models.ImageKindInterest, MIMEType: "image/png", Data: testPNG(t, color.RGBA{B: 200, A: 128})},
	}
}

func countDays(outline []string) int {
	n := 0
	for _, title := range outline {
		if strings.HasPrefix(title, "Day ") {
			n++
		}
	}
	return n
}

func TestRenderStructured(t *testing.T) {
	doc, err := NewRenderer().Render(parisItinerary(), parisImages(t))
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
	assert.Equal(t, "travel_guide_paris_3days.pdf", doc.Filename)
	assert.False(t, doc.Fallback)
	assert.Equal(t, 3, doc.ImageCount)
	assert.Equal(t, 3, countDays(doc.Outline))
	assert.Equal(t, []string{
		TitleCover,
		TitleOverview,
		"Day 1: Left Bank",
		"Day 2: Louvre",
		"Day 3",
		TitleRestaurants,
		TitleBudget,
		TitlePacking,
		TitleTips,
		TitleGallery,
	}, doc.Outline)
	assert.True(t, bytes.Contains(doc.Data, []byte("/Subtype /Image")))
}

func TestRenderIsDeterministic(t *testing.T) {
	images := parisImages(t)

	first, err := NewRenderer().Render(parisItinerary(), images)
	require.NoError(t, err)
	second, err := NewRenderer().Render(parisItinerary(), images)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first.Data, second.Data), "PDF bytes differ between identical renders")
}

func TestRenderDegradesWithoutSections(t *testing.T) {
	it := &models.Itinerary{
		Destination: "Rome",
		Days:        2,
		Overview:    []string{"Just some text"},
		Raw:         "Rome is lovely. Visit the Colosseum early.\nNo headings here.",
	}

	doc, err := NewRenderer().Render(it, nil)

	require.NoError(t, err)
	assert.True(t, doc.Fallback)
	assert.NotEmpty(t, doc.Data)
	assert.Equal(t, []string{TitleCover, TitleRaw}, doc.Outline)
	assert.Zero(t, doc.ImageCount)
}

func TestRenderSkipsUndecodableImages(t *testing.T) {
	images := models.ImageSet{
		{Theme: "Paris", Kind: models.ImageKindCity, Data: []byte("not an image")},
		{Theme: "food", Kind: models.ImageKindInterest, Data: testPNG(t, color.White)},
	}

	doc, err := NewRenderer().Render(parisItinerary(), images)

	require.NoError(t, err)
	assert.Equal(t, 1, doc.ImageCount)
}

func TestRenderWithoutImagesHasNoGallery(t *testing.T) {
	doc, err := NewRenderer().Render(parisItinerary(), nil)

	require.NoError(t, err)
	assert.NotContains(t, doc.Outline, TitleGallery)
	assert.Zero(t, doc.ImageCount)
}

func TestRenderNilItinerary(t *testing.T) {
	_, err := NewRenderer().Render(nil, nil)

	var renderErr *models.RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.False(t, renderErr.Degraded())
}

func TestToCodePage(t *testing.T) {
	assert.Equal(t, "Krak\xf3w -> T?ky? ??", toCodePage("Kraków → Tōkyō 東京"))
	assert.Equal(t, "\x80450", toCodePage("€450"))
	assert.Equal(t, "plain", toCodePage("plain"))
}

func TestParseBodyLine(t *testing.T) {
	tests := []struct {
		in   string
		want bodyLine
	}{
		{"- **Morning:** Louvre", bodyLine{kind: lineBullet, marker: "•", text: "Morning: Louvre"}},
		{"  * nested", bodyLine{kind: lineBullet, level: 1, marker: "•", text: "nested"}},
		{"12. Last stop", bodyLine{kind: lineNumbered, marker: "12.", text: "Last stop"}},
		{"**Evening**", bodyLine{kind: lineLabel, text: "Evening"}},
		{"Just `text`", bodyLine{kind: linePlain, text: "Just text"}},
		{"2024 was great", bodyLine{kind: linePlain, text: "2024 was great"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseBodyLine(tt.in), tt.in)
	}
}

func TestFitImage(t *testing.T) {
	portrait := &pdfImage{width: 1024, height: 1792}

	w, h := fitImage(portrait, 150, 400)
	assert.InDelta(t, 150, w, 0.001)
	assert.InDelta(t, 262.5, h, 0.001)

	w, h = fitImage(portrait, 150, 200)
	assert.InDelta(t, 200, h, 0.001)
	assert.InDelta(t, 200*1024.0/1792.0, w, 0.001)
}

func TestPortraitImagesStayOnPage(t *testing.T) {
	img, err := normalizeImage("img0", sizedPNG(t, color.RGBA{R: 200, A: 255}, 16, 28))
	require.NoError(t, err)

	it := parisItinerary()
	d := &document{pdf: newPDF(it)}
	d.cover(it, &preparedImage{img: img, caption: "Paris"})

	_, pageH := d.pdf.GetPageSize()
	assert.Equal(t, 1, d.pdf.PageNo())
	assert.LessOrEqual(t, d.pdf.GetY(), pageH-margin+0.01)

	d.gallery([]preparedImage{{img: img, caption: "food"}, {img: img, caption: "museums"}})
	assert.LessOrEqual(t, d.pdf.GetY(), pageH-margin+0.01)
	require.NoError(t, d.pdf.Error())
}
