package tmdb

import (
	"fmt"
	"strconv"
	"strings"
)

// MediaType distinguishes TMDB's two top-level namespaces.
type MediaType string

const (
	MediaTV    MediaType = "tv"
	MediaMovie MediaType = "movie"
)

// Key identifies a TMDB item.
type Key struct {
	Media MediaType
	ID    int64
}

// String renders the key in its "tv:<id>" form.
func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Media, k.ID)
}

// ParseKey parses "tv:<id>" or "movie:<id>".
func ParseKey(raw string) (Key, error) {
	media, id, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return Key{}, fmt.Errorf("catalog key %q: expected <media>:<id>", raw)
	}
	mt := MediaType(strings.ToLower(media))
	if mt != MediaTV && mt != MediaMovie {
		return Key{}, fmt.Errorf("catalog key %q: unsupported media type %q", raw, media)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return Key{}, fmt.Errorf("catalog key %q: id must be a positive integer", raw)
	}
	return Key{Media: mt, ID: n}, nil
}
