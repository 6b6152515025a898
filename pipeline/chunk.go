package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/relieflaunch/campaignkit/models"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// SplitChunks splits article text on blank-line paragraph boundaries into
// ordered, addressable chunks carrying source metadata. Pure function of its
// inputs. Ids continue from start so chunks from several articles of one run
// stay unique under the shared campaign id.
func SplitChunks(text, sourceURL, title, publishDate, campaignID string, start int) []models.Chunk {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	if text == "" {
		return nil
	}

	var chunks []models.Chunk
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			ID:          fmt.Sprintf("%s_chunk_%d", campaignID, start+len(chunks)),
			Text:        para,
			SourceURL:   sourceURL,
			Title:       title,
			PublishDate: publishDate,
			CampaignID:  campaignID,
		})
	}
	return chunks
}
