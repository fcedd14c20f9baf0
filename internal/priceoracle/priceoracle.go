/*

This file is the optional price-oracle collaborator: when configured,
it enriches position and pool responses with USD figures. It is never
on the critical path for weight computation — a failed or disabled
oracle simply means responses omit USD fields.

*/

package priceoracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const requestTimeout = 3 * time.Second

// Oracle fetches USD prices for token symbols. A nil *Oracle (no URL
// configured) is valid and every lookup simply misses.
type Oracle struct {
	baseURL string
	http    *http.Client
}

// New builds an Oracle against baseURL. Pass an empty baseURL to get a
// permanently-disabled oracle.
func New(baseURL string) *Oracle {
	return &Oracle{baseURL: baseURL, http: &http.Client{Timeout: requestTimeout}}
}

// Enabled reports whether a price oracle URL was configured.
func (o *Oracle) Enabled() bool {
	return o != nil && o.baseURL != ""
}

// USDPrice returns the USD price of symbol. Any failure (disabled,
// network error, malformed response) is logged and reported as a miss
// rather than propagated — enrichment never fails a request.
func (o *Oracle) USDPrice(ctx context.Context, symbol string) (float64, bool) {
	if !o.Enabled() {
		return 0, false
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/price/%s", o.baseURL, symbol), nil)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to build price oracle request.")
		return 0, false
	}

	resp, err := o.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Price oracle request failed.")
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("symbol", symbol).Msg("Price oracle returned non-200.")
		return 0, false
	}

	var body struct {
		PriceUSD float64 `json:"price_usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to decode price oracle response.")
		return 0, false
	}

	return body.PriceUSD, true
}
