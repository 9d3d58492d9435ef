package scrape

import "context"

// URLStore reports which urls have already been scraped
type URLStore interface {
	ExistingScrapedURLs(ctx context.Context, urls []string) ([]string, error)
}

// FilterUnseen returns the urls not yet stored, in input order with
// duplicates collapsed. It issues exactly one store query.
func FilterUnseen(ctx context.Context, store URLStore, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return []string{}, nil
	}

	existing, err := store.ExistingScrapedURLs(ctx, urls)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]struct{}, len(existing)+len(urls))
	for _, u := range existing {
		skip[u] = struct{}{}
	}

	unseen := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := skip[u]; ok {
			continue
		}
		skip[u] = struct{}{}
		unseen = append(unseen, u)
	}

	return unseen, nil
}
