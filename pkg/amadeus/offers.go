package amadeus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/zsolti91h/fare-watch/pkg/model"
)

type offersResponse struct {
	Data []struct {
		Price struct {
			Currency   string `json:"currency"`
			Total      string `json:"total"`
			GrandTotal string `json:"grandTotal"`
		} `json:"price"`
	} `json:"data"`
}

// LivePrice returns the grand total of the first live offer for c.
// ErrNoOffer is returned when nothing usable comes back.
func (c *Client) LivePrice(ctx context.Context, cand model.Candidate) (decimal.Decimal, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	params := map[string]string{
		"originLocationCode":      cand.Origin,
		"destinationLocationCode": cand.Destination,
		"departureDate":           cand.DepartureDate,
		"adults":                  "1",
		"currencyCode":            c.cfg.Currency,
		"max":                     strconv.Itoa(c.cfg.MaxOffers),
	}
	if cand.ReturnDate != "" {
		params["returnDate"] = cand.ReturnDate
	}

	var out offersResponse
	var apiErr apiError
	resp, err := req.
		SetQueryParams(params).
		SetResult(&out).
		SetError(&apiErr).
		Get("/v2/shopping/flight-offers")
	if err != nil {
		return decimal.Zero, fmt.Errorf("flight offers %s: %w", cand.Route(), err)
	}
	if resp.IsError() {
		return decimal.Zero, statusError("flight offers "+cand.Route(), resp, &apiErr)
	}

	if len(out.Data) == 0 {
		return decimal.Zero, ErrNoOffer
	}
	price, err := decimal.NewFromString(out.Data[0].Price.GrandTotal)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: grandTotal %q", ErrNoOffer, out.Data[0].Price.GrandTotal)
	}
	return price, nil
}
