package lookup

import (
	"context"
	"fmt"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Session deduplicates identical lookups within one inbound request.
// Construct one per request and drop it afterwards.
type Session struct {
	service *Service
	memo    *cache.Cache
	group   singleflight.Group
}

// NewSession returns an empty request-scoped memo over s.
func (s *Service) NewSession() *Session {
	return &Session{
		service: s,
		memo:    cache.New(cache.NoExpiration, 0),
	}
}

// Lookup returns the memoized result for req, calling the service at most
// once per distinct request even under concurrent callers. Errors are not
// memoized. The returned Link is shared between callers and must not be
// modified.
func (s *Session) Lookup(ctx context.Context, req Request) (*Link, error) {
	key := req.memoKey()
	if v, ok := s.memo.Get(key); ok {
		link, _ := v.(*Link)
		return link, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		link, err := s.service.Lookup(ctx, req)
		if err != nil {
			return nil, err
		}
		s.memo.Set(key, link, cache.NoExpiration)
		return link, nil
	})
	if err != nil {
		return nil, err
	}
	link, _ := v.(*Link)
	return link, nil
}

// Len reports how many distinct lookups are memoized.
func (s *Session) Len() int {
	return s.memo.ItemCount()
}

func (r Request) memoKey() string {
	return fmt.Sprintf("%s\x00%s\x00%d\x00%s\x00%d", r.CatalogAKey, r.Title, r.Year, r.NativeTitle, r.Season)
}
