// Package shopfeed pulls externally-rewarded transactions from the affiliate
// aggregator's API. Its pages are zero-based and its records carry the reward
// the aggregator already computed.
package shopfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/loyaltylabs/loyalsync/internal/config"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	log     *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: cfg.Providers.Shopfeed.BaseURL,
		apiKey:  cfg.Providers.Shopfeed.APIKey,
		log:     log.Named("shopfeed.client"),
	}
}

// TransactionRecord is the aggregator's wire shape, already normalized to the
// fields the importer consumes.
type TransactionRecord struct {
	ID           string
	ShopperID    string
	Amount       decimal.Decimal
	RewardAmount decimal.Decimal
	StoreName    string
	Status       string
	Created      time.Time
}

type apiItem struct {
	ID                int64   `json:"id"`
	ShopperID         string  `json:"shopperId"`
	StoreName         string  `json:"storeName"`
	Status            string  `json:"status"`
	SaleAmount        float64 `json:"saleAmount"`
	ShopperCommission float64 `json:"shopperCommission"`
	PurchaseDate      string  `json:"purchaseDate"`
}

type apiResponse struct {
	Content       []apiItem `json:"content"`
	TotalPages    int       `json:"totalPages"`
	TotalElements int       `json:"totalElements"`
}

func (c *Client) PullTransactions(ctx context.Context, pageSize, pageNumber int) ([]TransactionRecord, error) {
	params := url.Values{}
	params.Set("size", strconv.Itoa(pageSize))
	// The aggregator counts pages from zero.
	params.Set("page", strconv.Itoa(pageNumber-1))

	reqURL := fmt.Sprintf("%s/transactions?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shopfeed: transactions returned %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	records := make([]TransactionRecord, 0, len(body.Content))
	for _, item := range body.Content {
		created, err := time.Parse(time.RFC3339, item.PurchaseDate)
		if err != nil {
			c.log.Warn("unparseable purchase date, skipping record",
				zap.Int64("id", item.ID),
				zap.String("purchase_date", item.PurchaseDate),
			)
			continue
		}
		records = append(records, TransactionRecord{
			ID:           strconv.FormatInt(item.ID, 10),
			ShopperID:    item.ShopperID,
			Amount:       decimal.NewFromFloat(item.SaleAmount).Round(2),
			RewardAmount: decimal.NewFromFloat(item.ShopperCommission).Round(2),
			StoreName:    item.StoreName,
			Status:       item.Status,
			Created:      created,
		})
	}
	return records, nil
}
