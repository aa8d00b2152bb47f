package feed

import (
	"errors"
	"testing"
	"time"
)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <image>
      <url>https://example.com/icon.png</url>
      <title>Test Feed</title>
      <link>https://example.com</link>
    </image>
    <item>
      <title>Test Item 1</title>
      <link>https://example.com/item1</link>
      <description>Test Item 1 Description</description>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <author>test@example.com (Test Author)</author>
      <category>Technology</category>
      <category>Programming</category>
    </item>
    <item>
      <title>Test Item 2</title>
      <link>https://example.com/item2</link>
      <description>Test Item 2 Description</description>
      <guid>item-2</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	canonical, err := parser.Run([]byte(rssData), "https://example.com/feed.xml")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if canonical.Title != "Test Feed" {
		t.Errorf("Expected title 'Test Feed', got: %s", canonical.Title)
	}
	if canonical.Link != "https://example.com" {
		t.Errorf("Expected link 'https://example.com', got: %s", canonical.Link)
	}
	if canonical.Description != "Test Description" {
		t.Errorf("Expected description 'Test Description', got: %s", canonical.Description)
	}
	if canonical.FeedURL != "https://example.com/feed.xml" {
		t.Errorf("Expected feed URL 'https://example.com/feed.xml', got: %s", canonical.FeedURL)
	}
	if canonical.Image == nil || canonical.Image.URL != "https://example.com/icon.png" {
		t.Errorf("Expected image URL 'https://example.com/icon.png', got: %+v", canonical.Image)
	}

	if len(canonical.Items) != 2 {
		t.Fatalf("Expected 2 items, got: %d", len(canonical.Items))
	}

	item1 := canonical.Items[0]
	if item1.Title != "Test Item 1" {
		t.Errorf("Expected title 'Test Item 1', got: %s", item1.Title)
	}
	if item1.Link != "https://example.com/item1" {
		t.Errorf("Expected link 'https://example.com/item1', got: %s", item1.Link)
	}
	if item1.ID != "item-1" {
		t.Errorf("Expected ID 'item-1', got: %s", item1.ID)
	}
	if len(item1.Tags) != 2 || item1.Tags[0] != "programming" || item1.Tags[1] != "technology" {
		t.Errorf("Expected tags [programming technology], got: %v", item1.Tags)
	}

	want := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	if !item1.PublishedAt.Equal(want) {
		t.Errorf("Expected published at %v, got: %v", want, item1.PublishedAt)
	}
}

func TestParseAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <link href="https://example.com"/>
  <updated>2023-07-03T12:00:00Z</updated>
  <author>
    <name>Test Author</name>
  </author>
  <id>urn:uuid:1234567890</id>
  <entry>
    <title>Test Entry</title>
    <link href="https://example.com/entry1"/>
    <id>urn:uuid:entry-1</id>
    <updated>2023-07-03T10:00:00Z</updated>
    <content type="html">Test content</content>
  </entry>
</feed>`

	parser := NewParser()
	canonical, err := parser.Run([]byte(atomData), "https://example.com/atom.xml")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if canonical.Title != "Test Atom Feed" {
		t.Errorf("Expected title 'Test Atom Feed', got: %s", canonical.Title)
	}

	if len(canonical.Items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(canonical.Items))
	}

	entry := canonical.Items[0]
	if entry.ID != "urn:uuid:entry-1" {
		t.Errorf("Expected ID 'urn:uuid:entry-1', got: %s", entry.ID)
	}
	if entry.Content != "Test content" {
		t.Errorf("Expected content 'Test content', got: %s", entry.Content)
	}
}

func TestParseInvalidData(t *testing.T) {
	parser := NewParser()
	_, err := parser.Run([]byte("not a feed"), "https://example.com/feed.xml")

	if err == nil {
		t.Fatal("Expected error for invalid data")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("Expected ParseError, got: %T", err)
	}
}

func TestParseIDFallsBackToLink(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <item>
      <title>No GUID</title>
      <link>https://example.com/no-guid</link>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	canonical, err := parser.Run([]byte(rssData), "https://example.com/feed.xml")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(canonical.Items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(canonical.Items))
	}
	if canonical.Items[0].ID != "https://example.com/no-guid" {
		t.Errorf("Expected ID to fall back to link, got: %s", canonical.Items[0].ID)
	}
}

func TestParseTitleFallback(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <item>
      <link>https://example.com/untitled</link>
      <guid>untitled-1</guid>
      <dc:creator>Jane Roe</dc:creator>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	canonical, err := parser.Run([]byte(rssData), "https://example.com/feed.xml")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(canonical.Items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(canonical.Items))
	}

	got := canonical.Items[0].Title
	want := "Jane Roe - 2023-07-03T10:00:00Z"
	if got != want {
		t.Errorf("Expected fallback title %q, got: %q", want, got)
	}
}

func TestParseUnknownEntityInTitle(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <item>
      <title><![CDATA[Broken &bogusentity; title]]></title>
      <link>https://example.com/item1</link>
      <guid>item-1</guid>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	_, err := parser.Run([]byte(rssData), "https://example.com/feed.xml")

	if err == nil {
		t.Fatal("Expected error for unknown entity in title")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("Expected ParseError, got: %T", err)
	}
}

func TestParseEntityDecodingInTitle(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <item>
      <title><![CDATA[AT&amp;T earnings &#8212; Q2]]></title>
      <link>https://example.com/item1</link>
      <guid>item-1</guid>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	canonical, err := parser.Run([]byte(rssData), "https://example.com/feed.xml")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got := canonical.Items[0].Title
	want := "AT&T earnings — Q2"
	if got != want {
		t.Errorf("Expected decoded title %q, got: %q", want, got)
	}
}

func TestParseImageFallbackToThumbnail(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <item>
      <title>With Thumbnail</title>
      <link>https://example.com/item1</link>
      <guid>item-1</guid>
      <media:thumbnail url="https://example.com/thumb.jpg" width="640" height="480"/>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	canonical, err := parser.Run([]byte(rssData), "https://example.com/feed.xml")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	img := canonical.Items[0].Image
	if img == nil {
		t.Fatal("Expected item image from media:thumbnail")
	}
	if img.URL != "https://example.com/thumb.jpg" {
		t.Errorf("Expected thumbnail URL, got: %s", img.URL)
	}
	if img.Width != 640 || img.Height != 480 {
		t.Errorf("Expected 640x480, got: %dx%d", img.Width, img.Height)
	}
}

func TestParseImageFallbackToEnclosure(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <item>
      <title>With Enclosure</title>
      <link>https://example.com/item1</link>
      <guid>item-1</guid>
      <enclosure url="https://example.com/photo.png" type="image/png" length="1234"/>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	canonical, err := parser.Run([]byte(rssData), "https://example.com/feed.xml")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	img := canonical.Items[0].Image
	if img == nil || img.URL != "https://example.com/photo.png" {
		t.Errorf("Expected enclosure image, got: %+v", img)
	}
}

func TestParseMediaContent(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <item>
      <title>With Media</title>
      <link>https://example.com/item1</link>
      <guid>item-1</guid>
      <media:content url="https://example.com/clip.mp4" type="video/mp4"/>
      <media:content url="https://example.com/track.mp3" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	canonical, err := parser.Run([]byte(rssData), "https://example.com/feed.xml")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	media := canonical.Items[0].Media
	if len(media) != 2 {
		t.Fatalf("Expected 2 media entries, got: %d", len(media))
	}
	if media[0].Kind != MediaVideo {
		t.Errorf("Expected video kind, got: %s", media[0].Kind)
	}
	if media[1].Kind != MediaAudio {
		t.Errorf("Expected audio kind, got: %s", media[1].Kind)
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "compound value split on ampersand",
			input:    []string{"Go & Rust"},
			expected: []string{"go", "rust"},
		},
		{
			name:     "compound value split on plus",
			input:    []string{"News + Analysis"},
			expected: []string{"analysis", "news"},
		},
		{
			name:     "hashtag prefix stripped",
			input:    []string{"#Technology"},
			expected: []string{"technology"},
		},
		{
			name:     "whitespace and dots collapse to underscores",
			input:    []string{"Machine  Learning", "v1.2.3"},
			expected: []string{"machine_learning", "v1_2_3"},
		},
		{
			name:     "bracket punctuation trimmed",
			input:    []string{"[politics]", `"economy"`},
			expected: []string{"economy", "politics"},
		},
		{
			name:     "duplicates removed",
			input:    []string{"Tech", "tech", "TECH"},
			expected: []string{"tech"},
		},
		{
			name:     "empty tokens dropped",
			input:    []string{"", "  ", "&", "valid"},
			expected: []string{"valid"},
		},
		{
			name:     "output sorted",
			input:    []string{"zebra", "apple", "mango"},
			expected: []string{"apple", "mango", "zebra"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeTags(tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %v, got: %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Expected %v, got: %v", tt.expected, got)
					break
				}
			}
		})
	}
}

func TestAvgPostInterval(t *testing.T) {
	base := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)

	itemsAt := func(hours ...int) []Item {
		items := make([]Item, len(hours))
		for i, h := range hours {
			items[i] = Item{PublishedAt: base.Add(time.Duration(h) * time.Hour)}
		}
		return items
	}

	tests := []struct {
		name     string
		items    []Item
		expected int
	}{
		{"no items", nil, 1},
		{"single item", itemsAt(0), 1},
		{"even spacing", itemsAt(0, 10, 20), 10},
		{"unsorted input", itemsAt(20, 0, 10), 10},
		{"rounding", itemsAt(0, 5), 5},
		{"sub-hour gap rounds down", itemsAt(0, 0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := avgPostInterval(tt.items); got != tt.expected {
				t.Errorf("Expected interval %d, got: %d", tt.expected, got)
			}
		})
	}
}

func TestDecodeEntitiesStrict(t *testing.T) {
	if _, err := decodeEntitiesStrict("plain title"); err != nil {
		t.Errorf("Expected no error for plain text, got: %v", err)
	}

	got, err := decodeEntitiesStrict("Tom &amp; Jerry &#169; &#x2603;")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != "Tom & Jerry © ☃" {
		t.Errorf("Unexpected decoded value: %q", got)
	}

	if _, err := decodeEntitiesStrict("bad &bogusentity; here"); err == nil {
		t.Error("Expected error for unknown entity")
	}
}
