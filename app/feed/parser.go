package feed

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses raw feed bytes into the canonical representation. Any parser
// failure, including an undecodable title entity, surfaces as a ParseError
// carrying the original message.
func (p *Parser) Run(data []byte, feedURL string) (*Feed, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Cause: err}
	}

	canonical := &Feed{
		Title:       parsed.Title,
		Description: parsed.Description,
		Link:        parsed.Link,
		FeedURL:     feedURL,
	}

	if parsed.Image != nil && parsed.Image.URL != "" {
		canonical.Image = &Image{URL: parsed.Image.URL}
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, raw := range parsed.Items {
		item, err := p.normalizeItem(raw)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	canonical.Items = items
	canonical.AvgPostInterval = avgPostInterval(items)

	return canonical, nil
}

func (p *Parser) normalizeItem(raw *gofeed.Item) (Item, error) {
	item := Item{
		ID:          resolveID(raw),
		Link:        raw.Link,
		Description: raw.Description,
		Content:     raw.Content,
		Author:      resolveAuthor(raw),
		PublishedAt: resolvePublished(raw),
		Tags:        normalizeTags(rawCategories(raw)),
		Image:       resolveImage(raw),
		Media:       resolveMedia(raw),
	}

	title, err := decodeEntitiesStrict(raw.Title)
	if err != nil {
		return Item{}, &ParseError{Cause: err}
	}
	item.Title = strings.TrimSpace(title)
	if item.Title == "" {
		item.Title = fmt.Sprintf("%s - %s", item.Author, item.PublishedAt.Format(time.RFC3339))
	}

	return item, nil
}

// resolveID picks the permanent dedup key: explicit id / guid (gofeed unwraps
// the {text} wrapper), else the item link. Never re-derived afterwards.
func resolveID(raw *gofeed.Item) string {
	if raw.GUID != "" {
		return raw.GUID
	}
	return raw.Link
}

func resolvePublished(raw *gofeed.Item) time.Time {
	if raw.PublishedParsed != nil {
		return raw.PublishedParsed.UTC()
	}
	if raw.Published != "" {
		if t, err := dateparse.ParseAny(raw.Published); err == nil {
			return t.UTC()
		}
	}
	if raw.UpdatedParsed != nil {
		return raw.UpdatedParsed.UTC()
	}
	return time.Now().UTC()
}

// resolveAuthor prefers an explicit dc:creator, then the authors list joined
// with ", ", then the single author element.
func resolveAuthor(raw *gofeed.Item) string {
	if raw.DublinCoreExt != nil && len(raw.DublinCoreExt.Creator) > 0 {
		return strings.TrimSpace(strings.Join(raw.DublinCoreExt.Creator, ", "))
	}

	if len(raw.Authors) > 0 {
		names := make([]string, 0, len(raw.Authors))
		for _, a := range raw.Authors {
			if a == nil {
				continue
			}
			if name := strings.TrimSpace(a.Name); name != "" {
				names = append(names, name)
			}
		}
		if len(names) > 0 {
			return strings.Join(names, ", ")
		}
	}

	if raw.Author != nil {
		return strings.TrimSpace(raw.Author.Name)
	}

	return ""
}

func rawCategories(raw *gofeed.Item) []string {
	values := append([]string{}, raw.Categories...)
	if raw.ITunesExt != nil && raw.ITunesExt.Keywords != "" {
		values = append(values, raw.ITunesExt.Keywords)
	}
	return values
}

var tagSeparators = strings.NewReplacer("+", ",", "&", ",")
var tagCollapse = regexp.MustCompile(`[\s.]+`)

// normalizeTags turns raw category values into the canonical tag set:
// compound values split on +/&, tokens trimmed, leading # and bracket/quote
// punctuation stripped, internal whitespace and dots collapsed to
// underscores, lowercased, deduplicated, sorted.
func normalizeTags(values []string) []string {
	seen := make(map[string]struct{})
	var tags []string

	for _, value := range values {
		for _, token := range strings.Split(tagSeparators.Replace(value), ",") {
			tag := cleanTag(token)
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}

	sort.Strings(tags)
	return tags
}

func cleanTag(token string) string {
	token = strings.TrimSpace(token)
	token = strings.TrimPrefix(token, "#")
	token = strings.Trim(token, `[]{}()<>"'`+"`")
	token = strings.TrimSpace(token)
	token = tagCollapse.ReplaceAllString(token, "_")
	return strings.ToLower(token)
}

// resolveImage walks the fixed fallback chain: explicit image field,
// media:group / media:thumbnail, image enclosure, image media:content.
func resolveImage(raw *gofeed.Item) *Image {
	if raw.Image != nil && raw.Image.URL != "" {
		return &Image{URL: raw.Image.URL}
	}

	if img := thumbnailImage(raw.Extensions); img != nil {
		return img
	}

	for _, enc := range raw.Enclosures {
		if enc != nil && strings.Contains(enc.Type, "image") && enc.URL != "" {
			return &Image{URL: enc.URL}
		}
	}

	for _, content := range mediaContents(raw.Extensions) {
		if strings.Contains(content.Attrs["type"], "image") && content.Attrs["url"] != "" {
			return extensionImage(content)
		}
	}

	return nil
}

func thumbnailImage(extensions ext.Extensions) *Image {
	media, ok := extensions["media"]
	if !ok {
		return nil
	}

	var thumbnails []ext.Extension
	for _, group := range media["group"] {
		thumbnails = append(thumbnails, group.Children["thumbnail"]...)
	}
	thumbnails = append(thumbnails, media["thumbnail"]...)

	for _, thumb := range thumbnails {
		if thumb.Attrs["url"] != "" {
			return extensionImage(thumb)
		}
	}
	return nil
}

func extensionImage(e ext.Extension) *Image {
	img := &Image{URL: e.Attrs["url"]}
	if w, err := strconv.Atoi(e.Attrs["width"]); err == nil {
		img.Width = w
	}
	if h, err := strconv.Atoi(e.Attrs["height"]); err == nil {
		img.Height = h
	}
	return img
}

func mediaContents(extensions ext.Extensions) []ext.Extension {
	media, ok := extensions["media"]
	if !ok {
		return nil
	}

	var contents []ext.Extension
	contents = append(contents, media["content"]...)
	for _, group := range media["group"] {
		contents = append(contents, group.Children["content"]...)
	}
	return contents
}

func resolveMedia(raw *gofeed.Item) []Media {
	var media []Media
	for _, content := range mediaContents(raw.Extensions) {
		url := content.Attrs["url"]
		if url == "" {
			continue
		}
		media = append(media, Media{
			URL:  url,
			Kind: classifyMedia(content.Attrs["type"] + " " + content.Attrs["medium"]),
		})
	}
	return media
}

func classifyMedia(declared string) MediaKind {
	declared = strings.ToLower(declared)
	switch {
	case strings.Contains(declared, "image"):
		return MediaImage
	case strings.Contains(declared, "video"), strings.Contains(declared, "shock"):
		return MediaVideo
	case strings.Contains(declared, "audio"):
		return MediaAudio
	default:
		return MediaUnknown
	}
}

// avgPostInterval computes the mean gap between posts in whole hours across
// the feed's publish timestamps. Feeds with fewer than two dated items poll
// hourly.
func avgPostInterval(items []Item) int {
	if len(items) < 2 {
		return 1
	}

	stamps := make([]time.Time, len(items))
	for i, item := range items {
		stamps[i] = item.PublishedAt
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	first := stamps[0]
	last := stamps[len(stamps)-1]
	hours := last.Sub(first).Hours() / float64(len(stamps)-1)

	return int(math.Abs(math.Round(hours)))
}

var entityPattern = regexp.MustCompile(`&(#x?[0-9a-fA-F]+|[a-zA-Z][a-zA-Z0-9]*);`)

// decodeEntitiesStrict decodes HTML entities and fails on any entity the
// decoder does not recognize instead of passing it through.
func decodeEntitiesStrict(s string) (string, error) {
	for _, match := range entityPattern.FindAllString(s, -1) {
		if html.UnescapeString(match) == match {
			return "", fmt.Errorf("unknown entity %q in %q", match, s)
		}
	}
	return html.UnescapeString(s), nil
}
