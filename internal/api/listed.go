package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rickgao/twstock-daily/internal/model"
)

// FetchListed fetches the month of daily rows containing day for a listed
// instrument.
func (c *Client) FetchListed(ctx context.Context, inst model.Instrument, day time.Time) ([][]string, error) {
	query := url.Values{}
	query.Set("date", day.Format("20060102"))
	query.Set("stockNo", inst.Code)
	query.Set("response", "json")
	fullURL := c.listedURL + "?" + query.Encode()

	build := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	}

	body, err := c.doWithRetry(ctx, model.MarketListed, build)
	if err != nil {
		return nil, fmt.Errorf("fetch listed %s: %w", inst.Code, err)
	}

	rows, err := DecodeListed(body)
	if err != nil {
		return nil, fmt.Errorf("fetch listed %s: %w", inst.Code, err)
	}
	return rows, nil
}
