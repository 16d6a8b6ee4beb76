package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/restaurant/pkg/logging"
)

type SearchResult struct {
	Total int64      `json:"total"`
	Items []MenuItem `json:"items"`
}

// Service serves menu data from the upstream API. Cache and Index are
// optional.
type Service struct {
	Client *Client
	Cache  *Cache
	Index  *Index
}

func (s *Service) Categories() []string {
	return Categories()
}

func (s *Service) Menu(ctx context.Context, category string) ([]MenuItem, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.menu", "category", category)

	if !KnownCategory(category) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	if s.Cache != nil {
		items, ok, err := s.Cache.Get(ctx, category)
		if err != nil {
			l.Warn("menu_cache_error", "error", err)
		} else if ok {
			return items, nil
		}
	}

	items, err := s.Client.FetchCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, category, items); err != nil {
			l.Warn("menu_cache_error", "error", err)
		}
	}
	if s.Index != nil {
		if err := s.Index.IndexItems(ctx, items); err != nil {
			l.Warn("menu_index_error", "error", err)
		}
	}
	return items, nil
}

// Item returns one dish by id. Unknown ids fail with ErrNotFound.
func (s *Service) Item(ctx context.Context, id string) (*MenuItem, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.item", "item_id", id)

	if s.Cache != nil {
		item, ok, err := s.Cache.GetItem(ctx, id)
		if err != nil {
			l.Warn("menu_cache_error", "error", err)
		} else if ok {
			return item, nil
		}
	}

	item, err := s.Client.FetchItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.SetItem(ctx, item); err != nil {
			l.Warn("menu_cache_error", "error", err)
		}
	}
	return item, nil
}

// Search uses Elasticsearch when configured and otherwise scans every
// category for a case-insensitive match on name or description.
func (s *Service) Search(ctx context.Context, query string, offset, limit int) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{Items: []MenuItem{}}, nil
	}

	if s.Index != nil {
		total, items, err := s.Index.Search(ctx, query, offset, limit)
		if err != nil {
			return SearchResult{}, err
		}
		return SearchResult{Total: total, Items: items}, nil
	}

	q := strings.ToLower(query)
	var matched []MenuItem
	for _, c := range categories {
		items, err := s.Menu(ctx, c)
		if err != nil {
			return SearchResult{}, err
		}
		for _, it := range items {
			if strings.Contains(strings.ToLower(it.Name), q) || strings.Contains(strings.ToLower(it.Description), q) {
				matched = append(matched, it)
			}
		}
	}

	res := SearchResult{Total: int64(len(matched)), Items: []MenuItem{}}
	if offset < len(matched) {
		end := min(offset+limit, len(matched))
		res.Items = matched[offset:end]
	}
	return res, nil
}
