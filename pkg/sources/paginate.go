package sources

import "context"

// DefaultMaxPages caps a paginated listing whose cursor never terminates.
const DefaultMaxPages = 50

type Page[T any] struct {
	Items   []T
	HasMore bool
	Next    string
}

type PageResult[T any] struct {
	Items     []T
	Pages     int
	Truncated bool
}

// Paginate fetches pages while the server reports more data behind a cursor
// it has not handed out before. Hitting maxPages stops the walk and marks the result truncated.
func Paginate[T any](ctx context.Context, maxPages int, fetch func(ctx context.Context, cursor string) (Page[T], error)) (PageResult[T], error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	var res PageResult[T]
	cursor := ""
	seen := map[string]bool{cursor: true}
	for {
		if res.Pages >= maxPages {
			res.Truncated = true
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := fetch(ctx, cursor)
		if err != nil {
			return res, err
		}
		res.Pages++
		res.Items = append(res.Items, page.Items...)
		if !page.HasMore || page.Next == "" || seen[page.Next] {
			return res, nil
		}
		seen[page.Next] = true
		cursor = page.Next
	}
}
