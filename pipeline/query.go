package pipeline

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// eventTypeLabels maps disaster feed event-type codes to search terms.
// Unknown codes pass through unchanged.
var eventTypeLabels = map[string]string{
	"EQ": "earthquake",
	"TC": "tropical cyclone",
	"FL": "flood",
	"WF": "wildfire",
	"VO": "volcano",
	"DR": "drought",
	"TS": "tsunami",
}

var keywordStopwords = map[string]struct{}{
	"the":    {},
	"and":    {},
	"region": {},
}

// Query is a search-engine query plus the derived relevance keywords used to
// filter scraped articles later in the run.
type Query struct {
	Text     string
	Subject  string
	Keywords []string
}

// ErrMissingSubject is returned when neither an event name nor a country is
// supplied; there is nothing to disambiguate the event with.
var ErrMissingSubject = errors.New("event name or country is required")

// ErrInvalidDate is returned when the supplied event date cannot be parsed.
var ErrInvalidDate = errors.New("unparseable event date")

// BuildQuery turns a structured event into a search query. A parseable
// RFC-2822 date narrows the query with an after/before window bracketing the
// event; an unparseable date is reported rather than silently ignored, since
// callers rely on the narrowed window for precision.
func BuildQuery(eventType, eventName, country, date string) (Query, error) {
	label := eventType
	if mapped, ok := eventTypeLabels[strings.ToUpper(strings.TrimSpace(eventType))]; ok {
		label = mapped
	}

	subject := strings.TrimSpace(eventName)
	if subject == "" {
		subject = strings.TrimSpace(country)
	}
	if subject == "" {
		return Query{}, ErrMissingSubject
	}

	tokens := []string{label, subject}
	keywords := relevanceKeywords(label, subject)

	if date = strings.TrimSpace(date); date != "" {
		dt, err := mail.ParseDate(date)
		if err != nil {
			return Query{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, date, err)
		}
		after := dt.AddDate(0, 0, -2).Format("2006-01-02")
		before := dt.AddDate(0, 0, 5).Format("2006-01-02")
		tokens = append(tokens, "after:"+after, "before:"+before)
	}

	return Query{
		Text:     strings.Join(tokens, " "),
		Subject:  subject,
		Keywords: keywords,
	}, nil
}

// relevanceKeywords lowercases the non-date query tokens and keeps the
// meaningful words: three characters or longer, minus a few connective
// words that match everything.
func relevanceKeywords(parts ...string) []string {
	var keywords []string
	seen := make(map[string]struct{})
	for _, part := range parts {
		for _, word := range strings.Fields(strings.ToLower(part)) {
			if len(word) < 3 {
				continue
			}
			if _, stop := keywordStopwords[word]; stop {
				continue
			}
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			keywords = append(keywords, word)
		}
	}
	return keywords
}
