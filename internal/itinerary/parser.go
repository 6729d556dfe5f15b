package itinerary

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/travel-guide-api/internal/logger"
	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	dayHeading   = regexp.MustCompile(`(?i)^day\s+(\d+)\b[\s:.\-–—]*(.*)$`)
	emphasisMark = strings.NewReplacer("**", "", "__", "", "`", "")
)

// keyword → section, checked in order. Keywords match whole words with an
// optional plural "s".
var sectionKeywords = []struct {
	section string
	pattern *regexp.Regexp
}{
	{models.SectionBudget, keywordPattern("budget", "cost")},
	{models.SectionPacking, keywordPattern("packing", "pack", "what to bring")},
	{models.SectionRestaurants, keywordPattern("restaurant", "cafe", "café", "dining", "where to eat")},
	{models.SectionTips, keywordPattern("tip", "advice")},
	{models.SectionOverview, keywordPattern("overview", "introduction", "summary")},
	{models.SectionDays, keywordPattern("day-by-day", "itinerary", "daily schedule", "schedule")},
}

func keywordPattern(keywords ...string) *regexp.Regexp {
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)s?(?:$|[^\p{L}\p{N}])`)
}

var md = goldmark.New()

// Parse maps generated Markdown onto an Itinerary. Headings are matched by
// keyword; "Day N" headings at any level start a day. When required sections
// are missing the returned error is a *models.RenderError and the Itinerary is
// still usable through Raw.
func Parse(markdown string, req models.TripRequest, model string) (*models.Itinerary, error) {
	req = req.Normalized()
	it := &models.Itinerary{
		Destination: req.Destination,
		Days:        req.Days,
		Model:       model,
		Raw:         strings.TrimSpace(markdown),
	}

	src := []byte(it.Raw)
	doc := md.Parser().Parse(text.NewReader(src))

	p := &parser{it: it, section: models.SectionOverview, src: src, day: -1}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		p.visit(n)
	}

	if len(it.DaySections) > 0 && req.Days > 0 && len(it.DaySections) != req.Days {
		logger.Warn("Itinerary day count differs from request", logger.Fields{
			"requested": req.Days,
			"generated": len(it.DaySections),
			"model":     model,
		})
	}

	if missing := it.MissingSections(); len(missing) > 0 {
		return it, &models.RenderError{Missing: missing}
	}
	return it, nil
}

type parser struct {
	it       *models.Itinerary
	src      []byte
	section  string
	day      int // index into DaySections, -1 outside a day
	dayLevel int
}

func (p *parser) visit(n ast.Node) {
	heading, ok := n.(*ast.Heading)
	if !ok {
		var lines []string
		collectLines(n, p.src, "", &lines)
		p.appendLines(lines)
		return
	}

	title := headingText(heading, p.src)
	if m := dayHeading.FindStringSubmatch(title); m != nil {
		number, _ := strconv.Atoi(m[1])
		p.it.DaySections = append(p.it.DaySections, models.DaySection{
			Number: number,
			Title:  strings.TrimSpace(m[2]),
		})
		p.day = len(p.it.DaySections) - 1
		p.dayLevel = heading.Level
		p.section = models.SectionDays
		return
	}

	section := classify(title)

	// sub-headings inside a day (Morning, Afternoon...) stay in that day unless
	// they name another section at the day heading's level or above
	if heading.Level > 2 && p.section == models.SectionDays && p.day >= 0 &&
		(heading.Level > p.dayLevel || section == "" || section == models.SectionDays) {
		p.appendLines([]string{"**" + title + "**"})
		return
	}

	if section == "" {
		// unknown headings are kept as labelled tips
		p.section = models.SectionTips
		p.day = -1
		p.appendLines([]string{"**" + title + "**"})
		return
	}
	p.section = section
	p.day = -1
}

func (p *parser) appendLines(lines []string) {
	if len(lines) == 0 {
		return
	}
	switch p.section {
	case models.SectionDays:
		if p.day < 0 {
			p.it.Overview = append(p.it.Overview, lines...)
			return
		}
		day := &p.it.DaySections[p.day]
		day.Lines = append(day.Lines, lines...)
	case models.SectionRestaurants:
		p.it.Restaurants = append(p.it.Restaurants, lines...)
	case models.SectionTips:
		p.it.Tips = append(p.it.Tips, lines...)
	case models.SectionBudget:
		p.it.Budget = append(p.it.Budget, lines...)
	case models.SectionPacking:
		p.it.Packing = append(p.it.Packing, lines...)
	default:
		p.it.Overview = append(p.it.Overview, lines...)
	}
}

func classify(title string) string {
	lower := strings.ToLower(title)
	for _, entry := range sectionKeywords {
		if entry.pattern.MatchString(lower) {
			return entry.section
		}
	}
	return ""
}

func headingText(h *ast.Heading, src []byte) string {
	return cleanInline(strings.Join(rawLines(h, src), " "))
}

func cleanInline(s string) string {
	return strings.TrimSpace(emphasisMark.Replace(s))
}

// rawLines returns the trimmed, non-empty source lines of a leaf block
func rawLines(n ast.Node, src []byte) []string {
	var out []string
	segments := n.Lines()
	for i := 0; i < segments.Len(); i++ {
		seg := segments.At(i)
		line := strings.TrimSpace(string(seg.Value(src)))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// collectLines flattens a block into Markdown body lines. List items keep a
// "- " or "N. " marker and nested lists are indented by two spaces.
func collectLines(n ast.Node, src []byte, indent string, out *[]string) {
	switch node := n.(type) {
	case *ast.List:
		number := node.Start
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "- "
			if node.IsOrdered() {
				marker = fmt.Sprintf("%d. ", number)
				number++
			}
			first := true
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				if _, nested := c.(*ast.List); nested {
					collectLines(c, src, indent+"  ", out)
					continue
				}
				for _, line := range rawLines(c, src) {
					if first {
						*out = append(*out, indent+marker+line)
						first = false
						continue
					}
					*out = append(*out, indent+"  "+line)
				}
			}
		}
	case *ast.Blockquote:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			collectLines(c, src, indent, out)
		}
	case *ast.ThematicBreak, *ast.HTMLBlock:
		return
	default:
		for _, line := range rawLines(n, src) {
			*out = append(*out, indent+line)
		}
	}
}
