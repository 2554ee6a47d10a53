package amadeus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/zsolti91h/fare-watch/pkg/model"
)

type destinationsResponse struct {
	Data []struct {
		Origin        string `json:"origin"`
		Destination   string `json:"destination"`
		DepartureDate string `json:"departureDate"`
		ReturnDate    string `json:"returnDate"`
		Price         struct {
			Total string `json:"total"`
		} `json:"price"`
	} `json:"data"`
}

// SearchCandidates asks the inspiration endpoint for cheap destinations from
// q.Origin. Records are returned as-is; incomplete ones are left for the
// decision engine to discard.
func (c *Client) SearchCandidates(ctx context.Context, q model.SearchQuery) ([]model.Candidate, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}

	var out destinationsResponse
	var apiErr apiError
	resp, err := req.
		SetQueryParams(map[string]string{
			"origin":        q.Origin,
			"oneWay":        strconv.FormatBool(!q.Trip.RoundTrip()),
			"maxPrice":      q.MaxPrice.Truncate(0).String(),
			"departureDate": q.DateRange(),
		}).
		SetResult(&out).
		SetError(&apiErr).
		Get("/v1/shopping/flight-destinations")
	if err != nil {
		return nil, fmt.Errorf("search destinations: %w", err)
	}
	if resp.IsError() {
		return nil, statusError("search destinations", resp, &apiErr)
	}

	candidates := make([]model.Candidate, 0, len(out.Data))
	for _, d := range out.Data {
		origin := d.Origin
		if origin == "" {
			origin = q.Origin
		}
		cand := model.Candidate{
			Origin:        origin,
			Destination:   d.Destination,
			DepartureDate: d.DepartureDate,
		}
		if q.Trip.RoundTrip() {
			cand.ReturnDate = d.ReturnDate
		}
		if p, err := decimal.NewFromString(d.Price.Total); err == nil {
			cand.IndicativePrice = decimal.NullDecimal{Decimal: p, Valid: true}
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}
