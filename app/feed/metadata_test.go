package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectMetadataRSS(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:g="http://base.google.com/ns/1.0">
  <channel>
    <title>AIKOS Tires</title>
    <link>https://aikos.example.com</link>
    <description>Winter tire catalog</description>
    <item>
      <g:id>T-1</g:id>
      <title>Michelin X-Ice North 4</title>
      <g:price>52000 KZT</g:price>
    </item>
  </channel>
</rss>`)

	metadata := DetectMetadata(data)
	require.NotNil(t, metadata)
	assert.Equal(t, "rss", metadata.FeedType)
	assert.Equal(t, "AIKOS Tires", metadata.Title)
	assert.Equal(t, "https://aikos.example.com", metadata.Link)
	assert.Equal(t, "Winter tire catalog", metadata.Description)
}

func TestDetectMetadataAtom(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Vendor Atom Feed</title>
  <id>urn:uuid:1</id>
  <updated>2024-01-01T00:00:00Z</updated>
</feed>`)

	metadata := DetectMetadata(data)
	require.NotNil(t, metadata)
	assert.Equal(t, "atom", metadata.FeedType)
	assert.Equal(t, "Vendor Atom Feed", metadata.Title)
}

func TestDetectMetadataPlainXML(t *testing.T) {
	assert.Nil(t, DetectMetadata([]byte(`<products><item><sku>A1</sku></item></products>`)))
	assert.Nil(t, DetectMetadata([]byte(`not xml`)))
}
