package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/cg-market-etl/internal/model"
)

// marketsQuery builds the query for one page of /coins/markets.
func (c *Client) marketsQuery(page int) url.Values {
	query := url.Values{}
	query.Set("vs_currency", c.vsCurrency)
	query.Set("order", MarketsOrder)
	query.Set("per_page", strconv.Itoa(c.perPage))
	query.Set("page", strconv.Itoa(page))
	query.Set("sparkline", "false")
	return query
}

// GetMarketsPage fetches one page of markets from path.
func (c *Client) GetMarketsPage(ctx context.Context, path string, page int) ([]model.Record, error) {
	body, err := c.Fetch(ctx, path, c.marketsQuery(page))
	if err != nil {
		return nil, fmt.Errorf("get markets page %d: %w", page, err)
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("get markets page %d: %w", page, err)
	}

	return records, nil
}

// CollectAll fetches every page of path, starting at page 1, until a page
// comes back empty. Records keep their per-page order. Any error aborts the
// collection and no partial result is returned.
func (c *Client) CollectAll(ctx context.Context, path string) ([]model.Record, error) {
	all := make([]model.Record, 0, c.perPage)

	for page := 1; ; page++ {
		if c.maxPages > 0 && page > c.maxPages {
			c.logger.Warn("page cap reached, stopping collection",
				"path", path,
				"max_pages", c.maxPages,
				"records", len(all),
			)
			break
		}

		records, err := c.GetMarketsPage(ctx, path, page)
		if err != nil {
			c.logger.Error("markets page failed",
				"path", path,
				"page", page,
				"error", err,
			)
			return nil, err
		}

		c.observer.ObservePage(len(records))

		if len(records) == 0 {
			c.logger.Debug("empty page, collection complete",
				"path", path,
				"page", page,
			)
			break
		}

		all = append(all, records...)

		c.logger.Debug("fetched markets page",
			"path", path,
			"page", page,
			"records", len(records),
			"total", len(all),
		)
	}

	c.logger.Info("collected markets",
		"path", path,
		"records", len(all),
	)

	return all, nil
}
