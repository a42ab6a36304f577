// Package source classifies track source URLs into playback backends.
package source

import (
	"fmt"
	"regexp"

	"github.com/osa030/musicmind/internal/domain/track"
)

// Kind is the playback path a source routes through.
type Kind int

const (
	KindNative   Kind = iota // Direct audio resource
	KindEmbedded             // Video platform player
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindEmbedded:
		return "embedded_video"
	default:
		return "unknown"
	}
}

// EmbeddedIDLength is the length of a video platform identifier.
const EmbeddedIDLength = 11

// thumbnailURLFormat yields the medium-quality still of a video.
const thumbnailURLFormat = "https://img.youtube.com/vi/%s/mqdefault.jpg"

// Recognises watch, short link, embed and &v= query shapes. The second group
// is the identifier candidate.
var embeddedPattern = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

// Source is the result of classifying a URL.
type Source struct {
	Kind       Kind
	URL        string
	EmbeddedID string // Set only for KindEmbedded
}

// IsEmbedded reports whether the source routes through the video platform player.
func (s Source) IsEmbedded() bool {
	return s.Kind == KindEmbedded
}

// Classify decides which backend plays url. Anything that is not a
// recognisable video platform URL is treated as a direct audio resource.
func Classify(url string) Source {
	if id, ok := EmbeddedID(url); ok {
		return Source{Kind: KindEmbedded, URL: url, EmbeddedID: id}
	}
	return Source{Kind: KindNative, URL: url}
}

// EmbeddedID extracts the video identifier from url.
func EmbeddedID(url string) (string, bool) {
	if url == "" {
		return "", false
	}
	m := embeddedPattern.FindStringSubmatch(url)
	if len(m) < 3 || len(m[2]) != EmbeddedIDLength {
		return "", false
	}
	return m[2], true
}

// ThumbnailURL returns the still image URL of a video.
func ThumbnailURL(id string) string {
	return fmt.Sprintf(thumbnailURLFormat, id)
}

// Artwork resolves the cover image to display for imageURL.
// Empty values fall back to the placeholder and video platform URLs are
// replaced by the video thumbnail.
func Artwork(imageURL string) string {
	if imageURL == "" {
		return track.PlaceholderImage
	}
	if id, ok := EmbeddedID(imageURL); ok {
		return ThumbnailURL(id)
	}
	return imageURL
}
