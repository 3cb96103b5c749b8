// Package cardnet pulls members, cards and transactions from the card
// network's paginated API.
package cardnet

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
		baseURL: cfg.Providers.Cardnet.BaseURL,
		apiKey:  cfg.Providers.Cardnet.APIKey,
		log:     log.Named("cardnet.client"),
	}
}

type MemberRecord struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	ProgramID string    `json:"programId"`
	Created   time.Time `json:"created"`
}

type CardRecord struct {
	ID       string    `json:"id"`
	MemberID string    `json:"memberId"`
	Last4    string    `json:"last4"`
	Brand    string    `json:"brand"`
	Created  time.Time `json:"created"`
}

type TransactionRecord struct {
	ID                   string          `json:"id"`
	MemberID             string          `json:"memberId"`
	Amount               decimal.Decimal `json:"amount"`
	MerchantCategoryCode int64           `json:"merchantCategoryCode"`
	IsRedemption         bool            `json:"isRedemption"`
	Created              time.Time       `json:"created"`
}

type apiResponse[T any] struct {
	TotalNumberOfPages   int `json:"totalNumberOfPages"`
	TotalNumberOfRecords int `json:"totalNumberOfRecords"`
	Items                []T `json:"items"`
}

func (c *Client) PullMembers(ctx context.Context, pageSize, pageNumber int) ([]MemberRecord, error) {
	return pull[MemberRecord](ctx, c, "members", pageSize, pageNumber)
}

func (c *Client) PullCards(ctx context.Context, pageSize, pageNumber int) ([]CardRecord, error) {
	return pull[CardRecord](ctx, c, "cards", pageSize, pageNumber)
}

func (c *Client) PullTransactions(ctx context.Context, pageSize, pageNumber int) ([]TransactionRecord, error) {
	return pull[TransactionRecord](ctx, c, "transactions", pageSize, pageNumber)
}

func pull[T any](ctx context.Context, c *Client, resource string, pageSize, pageNumber int) ([]T, error) {
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("pageNumber", strconv.Itoa(pageNumber))
	params.Set("sort", "created:asc")

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, resource, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cardnet-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cardnet: %s returned %d", resource, resp.StatusCode)
	}

	var body apiResponse[T]
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Items, nil
}
