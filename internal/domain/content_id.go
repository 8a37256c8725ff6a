package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// BlobKeyPrefix is the key namespace for stored documents.
const BlobKeyPrefix = "documents/"

// ContentID derives the content identifier for normalized document text.
// Identical normalized text always yields the identical identifier.
func ContentID(normalizedText string) string {
	sum := sha256.Sum256([]byte(normalizedText))
	return hex.EncodeToString(sum[:])
}

// StorageKey builds the blob key for a document. The key embeds a sanitized
// filename for readability, but uniqueness relies solely on the content
// identifier: all keys for a given content id share DedupPrefix(contentID).
func StorageKey(contentID, filename string) string {
	return DedupPrefix(contentID) + SanitizeFilename(filename)
}

// DedupPrefix returns the key prefix shared by every upload of the same
// content, regardless of filename.
func DedupPrefix(contentID string) string {
	return BlobKeyPrefix + contentID + "/"
}

// SanitizeFilename strips everything but alphanumerics, spaces, dashes,
// underscores and dots from a filename.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), " ")
}
