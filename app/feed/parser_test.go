package feed

import (
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
    <item>
      <title>Test Item 1</title>
      <link>https://example.com/item1</link>
      <description>Test Item 1 Description</description>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>  Test Item 2  </title>
      <link>https://example.com/item2</link>
      <description>Test Item 2 Description</description>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	items, err := parser.Parse([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.GUID != "item-1" {
		t.Errorf("Expected GUID 'item-1', got '%s'", first.GUID)
	}
	if first.Link != "https://example.com/item1" {
		t.Errorf("Expected link 'https://example.com/item1', got '%s'", first.Link)
	}
	if first.PublishedAt == nil {
		t.Fatal("Expected published date to be parsed")
	}
	expected := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(expected) {
		t.Errorf("Expected published %v, got %v", expected, *first.PublishedAt)
	}

	second := items[1]
	if second.Title != "Test Item 2" {
		t.Errorf("Expected trimmed title 'Test Item 2', got '%s'", second.Title)
	}
	if second.GUID != "" {
		t.Errorf("Expected empty GUID, got '%s'", second.GUID)
	}
	if second.PublishedAt != nil {
		t.Errorf("Expected nil published date, got %v", second.PublishedAt)
	}
}

func TestParseAtomFallsBackToUpdated(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <id>https://example.com/feed</id>
  <updated>2023-07-03T12:00:00Z</updated>
  <entry>
    <title>Atom Entry 1</title>
    <link href="https://example.com/atom1"/>
    <id>atom-1</id>
    <updated>2023-07-03T10:00:00Z</updated>
  </entry>
</feed>`

	items, err := NewParser().Parse([]byte(atomData))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].GUID != "atom-1" {
		t.Errorf("Expected GUID 'atom-1', got '%s'", items[0].GUID)
	}
	if items[0].PublishedAt == nil {
		t.Error("Expected updated date to stand in for published date")
	}
}

func TestParseInvalidFeed(t *testing.T) {
	parser := NewParser()

	if _, err := parser.Parse([]byte(`<html><body>This is not a feed</body></html>`)); err == nil {
		t.Error("Expected error for invalid feed data")
	}
	if _, err := parser.Parse([]byte("   ")); err == nil {
		t.Error("Expected error for empty feed body")
	}
}

func TestDedupKey(t *testing.T) {
	withGUID := DedupKey(ParsedItem{GUID: "abc", Link: "https://example.com/1"})
	if withGUID != "guid:abc" {
		t.Errorf("Expected GUID key, got '%s'", withGUID)
	}

	withLink := DedupKey(ParsedItem{Link: "https://example.com/1"})
	if withLink != "link:https://example.com/1" {
		t.Errorf("Expected link key, got '%s'", withLink)
	}

	// "é" precomposed vs "e" + combining acute
	a := DedupKey(ParsedItem{Title: "Caf\u00e9"})
	b := DedupKey(ParsedItem{Title: "Cafe\u0301"})
	if a != b {
		t.Errorf("Expected NFC-equivalent titles to share a key, got '%s' and '%s'", a, b)
	}

	c := DedupKey(ParsedItem{Title: "Other"})
	if a == c {
		t.Error("Expected different titles to produce different keys")
	}
}
