package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DedupKey returns the per-source identity of a parsed item: the GUID when
// the feed provides one, the link otherwise, and a hash of title and link as
// the last resort. Keys are NFC-normalized so visually identical titles
// coming from differently encoded feeds collapse to the same key.
func DedupKey(item ParsedItem) string {
	if item.GUID != "" {
		return "guid:" + norm.NFC.String(item.GUID)
	}
	if item.Link != "" {
		return "link:" + norm.NFC.String(item.Link)
	}

	content := fmt.Sprintf("%s|%s",
		strings.ToLower(norm.NFC.String(item.Title)),
		item.Link)

	hash := sha256.Sum256([]byte(content))
	return "hash:" + hex.EncodeToString(hash[:])
}
