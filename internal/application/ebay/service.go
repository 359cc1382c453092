package ebay

import (
	"context"
	"errors"
	"sort"
	"strings"

	"easyflip-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
)

var (
	ErrMissingScope = errors.New("eBay grant is missing the sell.inventory scope, reconnect your account")
	ErrNoPolicies   = errors.New("Set up fulfillment, payment and return policies on eBay before publishing")
	ErrEmptyQuery   = errors.New("q is required")
)

// Service exposes the seller operations the API needs, resolving the
// user's stored grant for each call.
type Service struct {
	Client *Client
	Tokens *TokenStore
}

func (s *Service) userSource(ctx context.Context, userID uuid.UUID) (oauth2.TokenSource, error) {
	return s.Tokens.UserTokenSource(ctx, s.Client, userID)
}

func (s *Service) Policies(ctx context.Context, userID uuid.UUID) (*Policies, error) {
	ts, err := s.userSource(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Client.GetPolicies(ctx, ts)
}

// TrendingReport summarises current fixed-price asks for a query.
type TrendingReport struct {
	Query        string          `json:"query"`
	Count        int             `json:"count"`
	AveragePrice decimal.Decimal `json:"average_price"`
	MedianPrice  decimal.Decimal `json:"median_price"`
	MinPrice     decimal.Decimal `json:"min_price"`
	MaxPrice     decimal.Decimal `json:"max_price"`
	Items        []ItemSummary   `json:"items"`
}

// Trending searches active listings with the application token.
func (s *Service) Trending(ctx context.Context, query string, limit int) (*TrendingReport, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	tok, err := s.Tokens.AppToken(ctx, s.Client)
	if err != nil {
		return nil, err
	}
	items, err := s.Client.SearchItems(ctx, oauth2.StaticTokenSource(tok), query, limit)
	if err != nil {
		return nil, err
	}
	return summarise(query, items), nil
}

func summarise(query string, items []ItemSummary) *TrendingReport {
	r := &TrendingReport{Query: query, Count: len(items), Items: items}
	if len(items) == 0 {
		r.Items = []ItemSummary{}
		return r
	}
	prices := make([]decimal.Decimal, len(items))
	sum := decimal.Zero
	for i, it := range items {
		prices[i] = it.Price
		sum = sum.Add(it.Price)
	}
	sort.Slice(prices, func(a, b int) bool { return prices[a].LessThan(prices[b]) })
	n := len(prices)
	r.MinPrice = prices[0]
	r.MaxPrice = prices[n-1]
	r.AveragePrice = sum.Div(decimal.NewFromInt(int64(n))).Round(2)
	if n%2 == 1 {
		r.MedianPrice = prices[n/2]
	} else {
		r.MedianPrice = prices[n/2-1].Add(prices[n/2]).Div(decimal.NewFromInt(2)).Round(2)
	}
	return r
}

// PublishItem lists item on eBay at price using the seller's first policy of each kind.
func (s *Service) PublishItem(ctx context.Context, userID uuid.UUID, item *domain.Item, price decimal.Decimal) (*PublishResult, error) {
	scope, err := s.Tokens.Scope(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !CheckScopes(scope).HasInventoryScope {
		return nil, ErrMissingScope
	}
	ts, err := s.userSource(ctx, userID)
	if err != nil {
		return nil, err
	}
	pol, err := s.Client.GetPolicies(ctx, ts)
	if err != nil {
		return nil, err
	}
	if len(pol.Fulfillment) == 0 || len(pol.Payment) == 0 || len(pol.Return) == 0 {
		return nil, ErrNoPolicies
	}
	return s.Client.Publish(ctx, ts, PublishRequest{
		SKU:                 item.SKU,
		Title:               item.Title,
		Description:         item.Description,
		Condition:           item.Condition,
		Brand:               item.Brand,
		ImageURLs:           item.Images,
		Price:               price,
		FulfillmentPolicyID: pol.Fulfillment[0].ID,
		PaymentPolicyID:     pol.Payment[0].ID,
		ReturnPolicyID:      pol.Return[0].ID,
	})
}
