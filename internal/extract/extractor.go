// Package extract pulls structured material fields out of rendered swatch
// pages and item links out of rendered list pages.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

// ErrNoContent is returned when a page yields no name, manufacturer or color.
var ErrNoContent = errors.New("page has no recognizable material fields")

const (
	hexSelector   = "[data-hex], .hex-value, .color-hex"
	imageSelector = `img.swatch, img[alt*="swatch"], main img, .swatch-image img`
	tagSelector   = ".tag, .badge, .chip, .label"
	notesSelector = ".notes, .description, .comment, p.info"
	maxTypeLen    = 50
)

var (
	styleHexPattern = regexp.MustCompile(`#([0-9a-fA-F]{6})`)
	textHexPattern  = regexp.MustCompile(`#([0-9a-fA-F]{6})\b`)
	exactHexPattern = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)
	tdHexPattern    = regexp.MustCompile(`#?([0-9a-fA-F]{6})`)
)

// Extractor parses item pages. The zero value is not usable; call New.
type Extractor struct {
	base     *url.URL
	itemPath string
}

// New builds an Extractor that resolves relative links against baseURL and
// recognizes item links by the itemPath fragment (for example "/swatch/").
func New(baseURL, itemPath string) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if itemPath == "" {
		return nil, errors.New("item path is required")
	}
	return &Extractor{base: base, itemPath: itemPath}, nil
}

// ItemLinks returns the absolute item-detail links found in html, in
// document order, without fragments.
func (e *Extractor) ItemLinks(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse list html: %w", err)
	}
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, e.itemPath) {
			return
		}
		abs, ok := e.resolve(e.base, href)
		if !ok || !strings.Contains(abs, e.itemPath) {
			return
		}
		links = append(links, abs)
	})
	return links, nil
}

// Extract parses one item page fetched from key.
func (e *Extractor) Extract(key, html string) (catalog.MaterialRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return catalog.MaterialRecord{}, fmt.Errorf("parse item html: %w", err)
	}
	rec := catalog.MaterialRecord{Key: key}

	rec.Name = pageName(doc)
	applyDefinitionList(doc, &rec)
	applyTableRows(doc, &rec)
	applyClassHints(doc, &rec)
	rec.Color = primaryColor(doc)
	rec.Transmittance = transmittance(doc)

	text := strings.ToLower(doc.Text())
	rec.Transparent = strings.Contains(text, "transparent") || strings.Contains(text, "translucent")
	rec.Glitter = strings.Contains(text, "glitter") || strings.Contains(text, "sparkle")
	rec.Glow = strings.Contains(text, "glow") || strings.Contains(text, "phosphorescent")

	if src, ok := doc.Find(imageSelector).First().Attr("src"); ok && src != "" {
		pageURL, err := url.Parse(key)
		if err != nil || !pageURL.IsAbs() {
			pageURL = e.base
		}
		if abs, ok := e.resolve(pageURL, src); ok {
			rec.ImageURL = abs
		}
	}

	var tags []string
	doc.Find(tagSelector).Each(func(_ int, s *goquery.Selection) {
		tags = append(tags, textOf(s))
	})
	rec.Tags = catalog.NormalizeTags(tags)

	rec.Notes = textOf(doc.Find(notesSelector).First())

	if rec.Name == "" {
		var parts []string
		for _, p := range []string{rec.Manufacturer, rec.ColorName} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		rec.Name = strings.Join(parts, " - ")
	}

	if rec.Name == "" && rec.Manufacturer == "" && rec.Color == nil {
		return catalog.MaterialRecord{}, fmt.Errorf("%s: %w", key, ErrNoContent)
	}
	return rec, nil
}

func pageName(doc *goquery.Document) string {
	if name := textOf(doc.Find("h1").First()); name != "" {
		return name
	}
	title := textOf(doc.Find("title").First())
	for _, sep := range []string{" - ", " | "} {
		if before, _, found := strings.Cut(title, sep); found {
			return strings.TrimSpace(before)
		}
	}
	return title
}

// applyDefinitionList reads <dt>/<dd> pairs; later pairs win.
func applyDefinitionList(doc *goquery.Document, rec *catalog.MaterialRecord) {
	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextAllFiltered("dd").First()
		if dd.Length() == 0 {
			return
		}
		label := strings.ToLower(textOf(dt))
		value := textOf(dd)
		switch {
		case containsAny(label, "manufacturer", "fabricant", "brand"):
			rec.Manufacturer = value
		case containsAny(label, "filament type", "material type") || label == "type":
			rec.MaterialType = value
		case containsAny(label, "color", "colour") && !containsAny(label, "hex", "complement"):
			rec.ColorName = value
		case strings.Contains(label, "bed") && strings.Contains(label, "temp"):
			rec.BedTemp = value
		case containsAny(label, "hot end", "hotend", "nozzle", "extruder"):
			rec.HotendTemp = value
		}
	})
}

// applyTableRows reads label/value table rows; they only fill gaps.
func applyTableRows(doc *goquery.Document, rec *catalog.MaterialRecord) {
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		label := strings.ToLower(textOf(cells.Eq(0)))
		value := textOf(cells.Eq(1))
		switch {
		case containsAny(label, "manufacturer", "brand"):
			setIfEmpty(&rec.Manufacturer, value)
		case containsAny(label, "type", "material"):
			setIfEmpty(&rec.MaterialType, value)
		case strings.Contains(label, "color") && !strings.Contains(label, "hex"):
			setIfEmpty(&rec.ColorName, value)
		case strings.Contains(label, "bed"):
			setIfEmpty(&rec.BedTemp, value)
		case containsAny(label, "hotend", "nozzle", "hot end"):
			setIfEmpty(&rec.HotendTemp, value)
		}
	})
}

func applyClassHints(doc *goquery.Document, rec *catalog.MaterialRecord) {
	if rec.Manufacturer == "" {
		rec.Manufacturer = textOf(doc.Find(`[class*="manufacturer"], [class*="brand"]`).First())
	}
	if rec.MaterialType == "" {
		doc.Find(`[class*="material"], [class*="type"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if text := textOf(s); text != "" && len(text) < maxTypeLen {
				rec.MaterialType = text
				return false
			}
			return true
		})
	}
	if rec.ColorName == "" {
		rec.ColorName = textOf(doc.Find(`[class*="color-name"], [class*="colour"]`).First())
	}
}

// primaryColor prefers an explicit hex element, then a background style, then
// the first hex literal in the page text.
func primaryColor(doc *goquery.Document) *catalog.RGB {
	if el := doc.Find(hexSelector).First(); el.Length() > 0 {
		raw, ok := el.Attr("data-hex")
		if !ok || raw == "" {
			raw = textOf(el)
		}
		if exactHexPattern.MatchString(raw) {
			if c, err := catalog.ParseHex(raw); err == nil {
				return &c
			}
		}
	}
	var found string
	doc.Find(`[style*="background"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		style, _ := s.Attr("style")
		if m := styleHexPattern.FindStringSubmatch(style); m != nil {
			found = m[1]
			return false
		}
		return true
	})
	if found == "" {
		if m := textHexPattern.FindStringSubmatch(doc.Text()); m != nil {
			found = m[1]
		}
	}
	if found == "" {
		return nil
	}
	c, err := catalog.ParseHex(found)
	if err != nil {
		return nil
	}
	return &c
}

func transmittance(doc *goquery.Document) *catalog.RGB {
	var raw string
	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		if !isTDLabel(textOf(dt)) {
			return
		}
		if dd := dt.NextAllFiltered("dd").First(); dd.Length() > 0 {
			if m := tdHexPattern.FindStringSubmatch(textOf(dd)); m != nil {
				raw = m[1]
			}
		}
	})
	if raw == "" {
		doc.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
			cells := tr.Find("th, td")
			if cells.Length() < 2 || !isTDLabel(textOf(cells.Eq(0))) {
				return true
			}
			if m := tdHexPattern.FindStringSubmatch(textOf(cells.Eq(1))); m != nil {
				raw = m[1]
				return false
			}
			return true
		})
	}
	if raw == "" {
		doc.Find(`[class*="transmittance"], [class*="td"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m := tdHexPattern.FindStringSubmatch(textOf(s)); m != nil {
				raw = m[1]
				return false
			}
			return true
		})
	}
	if raw == "" {
		return nil
	}
	c, err := catalog.ParseHex(raw)
	if err != nil {
		return nil
	}
	return &c
}

func isTDLabel(label string) bool {
	label = strings.ToLower(label)
	return strings.Contains(label, "td") || strings.Contains(label, "transmittance")
}

func (e *Extractor) resolve(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	return abs.String(), true
}

func textOf(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

func setIfEmpty(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
