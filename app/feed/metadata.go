package feed

import (
	"bytes"
	"log/slog"

	"github.com/mmcdole/gofeed"
)

// DetectMetadata returns channel metadata when the upload is an RSS or Atom
// document, as Google Merchant style product feeds are. Other documents
// return nil.
func DetectMetadata(data []byte) *Metadata {
	feedType := gofeed.DetectFeedType(bytes.NewReader(data))
	if feedType == gofeed.FeedTypeUnknown || feedType == gofeed.FeedTypeJSON {
		return nil
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		slog.Debug("Feed metadata not readable", "type", feedType, "error", err)
		return nil
	}

	return &Metadata{
		FeedType:    parsed.FeedType,
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    parsed.Language,
	}
}
