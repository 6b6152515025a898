package web_scrape

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Substrings that mark ad, tracking and chrome imagery rather than article
// photos.
var junkImageSubstrings = []string{
	"doubleclick",
	"googlesyndication",
	"adservice",
	"/ads",
	"ads.",
	"ad-",
	"analytics",
	"pixel",
	"tracking",
	"beacon",
	"sprite",
	"icon",
	"logo",
	"favicon",
	"avatar",
	"gravatar",
	"promo",
	"newsletter",
}

var lazyImageAttrs = []string{
	"data-src",
	"data-original",
	"data-lazy-src",
	"data-url",
	"data-img",
	"data-image",
}

// ExtractImageURLs pulls likely article images out of page markup: og/twitter
// meta images first, then images inside <article>/<main>, honouring lazy-load
// attributes and srcset. Results are absolute, deduplicated, junk-filtered
// and ordered by likely relevance, capped at max.
func ExtractImageURLs(doc *goquery.Document, pageURL string, max int) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = &url.URL{}
	}

	seen := make(map[string]struct{})
	var out []string

	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || len(out) >= max {
			return
		}
		absolute := absolutize(base, raw)
		if absolute == "" || isJunkImage(absolute) {
			return
		}
		if _, ok := seen[absolute]; ok {
			return
		}
		seen[absolute] = struct{}{}
		out = append(out, absolute)
	}

	// Meta images are usually the lead article image.
	for _, sel := range []string{
		`meta[property="og:image"]`,
		`meta[property="og:image:url"]`,
		`meta[name="twitter:image"]`,
		`meta[name="twitter:image:src"]`,
	} {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if content, ok := s.Attr("content"); ok {
				add(content)
			}
		})
	}

	root := doc.Selection
	if container := doc.Find("article").First(); container.Length() > 0 {
		root = container
	} else if container := doc.Find("main").First(); container.Length() > 0 {
		root = container
	}

	root.Find("picture").Each(func(_ int, pic *goquery.Selection) {
		if srcset, ok := pic.Find("source").First().Attr("srcset"); ok {
			add(pickBestFromSrcset(srcset))
		}
		img := pic.Find("img").First()
		if img.Length() == 0 || tooSmall(img) {
			return
		}
		add(img.AttrOr("src", ""))
		for _, attr := range lazyImageAttrs {
			add(img.AttrOr(attr, ""))
		}
		if srcset, ok := img.Attr("srcset"); ok {
			add(pickBestFromSrcset(srcset))
		}
	})

	root.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if tooSmall(img) {
			return true
		}
		if srcset, ok := img.Attr("srcset"); ok {
			add(pickBestFromSrcset(srcset))
		}
		add(img.AttrOr("src", ""))
		for _, attr := range lazyImageAttrs {
			add(img.AttrOr(attr, ""))
		}
		return len(out) < max
	})

	return out
}

// pickBestFromSrcset chooses the largest candidate by width/density
// descriptor (1200w beats 640w, 2x beats 1x).
func pickBestFromSrcset(srcset string) string {
	var bestURL string
	bestScore := -1

	for _, part := range strings.Split(srcset, ",") {
		tokens := strings.Fields(strings.TrimSpace(part))
		if len(tokens) == 0 {
			continue
		}
		candidate := tokens[0]
		score := 0
		if len(tokens) >= 2 {
			d := strings.ToLower(tokens[1])
			switch {
			case strings.HasSuffix(d, "w"):
				if n, err := strconv.Atoi(strings.TrimSuffix(d, "w")); err == nil {
					score = n
				}
			case strings.HasSuffix(d, "x"):
				if f, err := strconv.ParseFloat(strings.TrimSuffix(d, "x"), 64); err == nil {
					score = int(f * 1000)
				}
			}
		}
		if score > bestScore {
			bestScore = score
			bestURL = candidate
		}
	}
	return bestURL
}

func isJunkImage(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" || strings.HasPrefix(lower, "data:") || strings.HasSuffix(lower, ".svg") {
		return true
	}
	for _, bad := range junkImageSubstrings {
		if strings.Contains(lower, bad) {
			return true
		}
	}
	return false
}

// tooSmall skips images with explicit tiny dimensions (icons and the like).
func tooSmall(img *goquery.Selection) bool {
	w := attrInt(img, "width")
	h := attrInt(img, "height")
	return w > 0 && h > 0 && w*h < 180*120
}

func attrInt(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

func absolutize(base *url.URL, raw string) string {
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String()
}
