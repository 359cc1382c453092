package ebay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"easyflip-backend/internal/config"
	"easyflip-backend/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	SandboxAuthURL    = "https://auth.sandbox.ebay.com/oauth2/authorize"
	SandboxTokenURL   = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
	SandboxAPIBaseURL = "https://api.sandbox.ebay.com"

	ProductionAuthURL    = "https://auth.ebay.com/oauth2/authorize"
	ProductionTokenURL   = "https://api.ebay.com/identity/v1/oauth2/token"
	ProductionAPIBaseURL = "https://api.ebay.com"

	scopeBase = "https://api.ebay.com/oauth/api_scope"
)

// UserScopes are requested on every seller authorization.
var UserScopes = []string{
	scopeBase,
	scopeBase + "/sell.inventory",
	scopeBase + "/sell.account",
	scopeBase + "/sell.fulfillment",
}

// Client talks to the eBay REST APIs. Seller calls take the user's token
// source; Browse calls use the application token.
type Client struct {
	OAuth         *oauth2.Config
	App           *clientcredentials.Config
	APIBaseURL    string
	MarketplaceID string
	HTTP          *http.Client
}

// NewClient builds a client for sandbox or production from config.
func NewClient(cfg config.EbayConfig) *Client {
	authURL, tokenURL, baseURL := ProductionAuthURL, ProductionTokenURL, ProductionAPIBaseURL
	if cfg.Sandbox {
		authURL, tokenURL, baseURL = SandboxAuthURL, SandboxTokenURL, SandboxAPIBaseURL
	}
	return &Client{
		OAuth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       UserScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		App: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{scopeBase},
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		APIBaseURL:    baseURL,
		MarketplaceID: cfg.MarketplaceID,
		HTTP:          &http.Client{Timeout: 30 * time.Second},
	}
}

// AuthCodeURL builds the consent URL. prompt=login forces a fresh eBay sign-in.
func (c *Client) AuthCodeURL(state string) string {
	return c.OAuth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "login"))
}

func (c *Client) withHTTP(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.HTTP)
}

// Exchange trades an authorization code for a user token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := c.OAuth.Exchange(c.withHTTP(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return bearer(tok), nil
}

// UserTokenSource refreshes tok as needed using the user grant.
func (c *Client) UserTokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return c.OAuth.TokenSource(c.withHTTP(ctx), tok)
}

// FetchAppToken runs the client-credentials grant.
func (c *Client) FetchAppToken(ctx context.Context) (*oauth2.Token, error) {
	tok, err := c.App.Token(c.withHTTP(ctx))
	if err != nil {
		return nil, fmt.Errorf("app token: %w", err)
	}
	return bearer(tok), nil
}

// bearer normalises eBay's token_type ("User Access Token", "Application Access Token")
// so the Authorization header is sent as Bearer.
func bearer(tok *oauth2.Token) *oauth2.Token {
	if tok != nil {
		tok.TokenType = "Bearer"
	}
	return tok
}

// APIError is a non-2xx eBay response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ebay api returned status %d: %s", e.Status, e.Body)
}

func (c *Client) do(ctx context.Context, ts oauth2.TokenSource, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Language", "en-US")
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.MarketplaceID)

	resp, err := oauth2.NewClient(c.withHTTP(ctx), ts).Do(req)
	if err != nil {
		return fmt.Errorf("ebay %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode ebay response: %w", err)
	}
	return nil
}

// Policy is a seller business policy reference.
type Policy struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Policies groups the seller's business policies by kind.
type Policies struct {
	Fulfillment []Policy `json:"fulfillment"`
	Payment     []Policy `json:"payment"`
	Return      []Policy `json:"return"`
}

type fulfillmentPoliciesResponse struct {
	FulfillmentPolicies []struct {
		FulfillmentPolicyID string `json:"fulfillmentPolicyId"`
		Name                string `json:"name"`
	} `json:"fulfillmentPolicies"`
}

type paymentPoliciesResponse struct {
	PaymentPolicies []struct {
		PaymentPolicyID string `json:"paymentPolicyId"`
		Name            string `json:"name"`
	} `json:"paymentPolicies"`
}

type returnPoliciesResponse struct {
	ReturnPolicies []struct {
		ReturnPolicyID string `json:"returnPolicyId"`
		Name           string `json:"name"`
	} `json:"returnPolicies"`
}

// GetPolicies reads fulfillment, payment and return policies for the marketplace.
func (c *Client) GetPolicies(ctx context.Context, ts oauth2.TokenSource) (*Policies, error) {
	q := "?marketplace_id=" + url.QueryEscape(c.MarketplaceID)
	out := &Policies{Fulfillment: []Policy{}, Payment: []Policy{}, Return: []Policy{}}

	var f fulfillmentPoliciesResponse
	if err := c.do(ctx, ts, http.MethodGet, "/sell/account/v1/fulfillment_policy"+q, nil, &f); err != nil {
		return nil, err
	}
	for _, p := range f.FulfillmentPolicies {
		out.Fulfillment = append(out.Fulfillment, Policy{ID: p.FulfillmentPolicyID, Name: p.Name})
	}
	var p paymentPoliciesResponse
	if err := c.do(ctx, ts, http.MethodGet, "/sell/account/v1/payment_policy"+q, nil, &p); err != nil {
		return nil, err
	}
	for _, pp := range p.PaymentPolicies {
		out.Payment = append(out.Payment, Policy{ID: pp.PaymentPolicyID, Name: pp.Name})
	}
	var r returnPoliciesResponse
	if err := c.do(ctx, ts, http.MethodGet, "/sell/account/v1/return_policy"+q, nil, &r); err != nil {
		return nil, err
	}
	for _, rp := range r.ReturnPolicies {
		out.Return = append(out.Return, Policy{ID: rp.ReturnPolicyID, Name: rp.Name})
	}
	return out, nil
}

// ItemSummary is one Browse API search hit.
type ItemSummary struct {
	ItemID    string          `json:"item_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Condition string          `json:"condition"`
	ImageURL  string          `json:"image_url"`
	ItemURL   string          `json:"item_url"`
}

type browseSearchResponse struct {
	Total         int `json:"total"`
	ItemSummaries []struct {
		ItemID string `json:"itemId"`
		Title  string `json:"title"`
		Price  struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"price"`
		Condition string `json:"condition"`
		Image     struct {
			ImageURL string `json:"imageUrl"`
		} `json:"image"`
		ItemWebURL string `json:"itemWebUrl"`
	} `json:"itemSummaries"`
}

// SearchItems runs a fixed-price Browse search with the application token.
func (c *Client) SearchItems(ctx context.Context, ts oauth2.TokenSource, query string, limit int) ([]ItemSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	v := url.Values{}
	v.Set("q", query)
	v.Set("limit", strconv.Itoa(limit))
	v.Set("filter", "buyingOptions:{FIXED_PRICE}")
	var res browseSearchResponse
	if err := c.do(ctx, ts, http.MethodGet, "/buy/browse/v1/item_summary/search?"+v.Encode(), nil, &res); err != nil {
		return nil, err
	}
	items := make([]ItemSummary, 0, len(res.ItemSummaries))
	for _, s := range res.ItemSummaries {
		price, err := decimal.NewFromString(s.Price.Value)
		if err != nil {
			continue
		}
		items = append(items, ItemSummary{
			ItemID:    s.ItemID,
			Title:     s.Title,
			Price:     price,
			Currency:  s.Price.Currency,
			Condition: s.Condition,
			ImageURL:  s.Image.ImageURL,
			ItemURL:   s.ItemWebURL,
		})
	}
	return items, nil
}

// PublishRequest is everything needed to put one item live on eBay.
type PublishRequest struct {
	SKU         string
	Title       string
	Description string
	Condition   string
	Brand       string
	ImageURLs   []string
	Price       decimal.Decimal
	Currency    string
	CategoryID  string
	Quantity    int

	FulfillmentPolicyID string
	PaymentPolicyID     string
	ReturnPolicyID      string
}

// PublishResult identifies the created offer and live listing.
type PublishResult struct {
	OfferID   string `json:"offer_id"`
	ListingID string `json:"listing_id"`
}

type inventoryItem struct {
	Product      inventoryProduct `json:"product"`
	Condition    string           `json:"condition,omitempty"`
	Availability struct {
		ShipToLocationAvailability struct {
			Quantity int `json:"quantity"`
		} `json:"shipToLocationAvailability"`
	} `json:"availability"`
}

type inventoryProduct struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	ImageURLs   []string            `json:"imageUrls,omitempty"`
	Brand       string              `json:"brand,omitempty"`
	Aspects     map[string][]string `json:"aspects,omitempty"`
}

type offerRequest struct {
	SKU                string `json:"sku"`
	MarketplaceID      string `json:"marketplaceId"`
	Format             string `json:"format"`
	AvailableQuantity  int    `json:"availableQuantity"`
	CategoryID         string `json:"categoryId,omitempty"`
	ListingDescription string `json:"listingDescription,omitempty"`
	PricingSummary     struct {
		Price struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"price"`
	} `json:"pricingSummary"`
	ListingPolicies struct {
		FulfillmentPolicyID string `json:"fulfillmentPolicyId"`
		PaymentPolicyID     string `json:"paymentPolicyId"`
		ReturnPolicyID      string `json:"returnPolicyId"`
	} `json:"listingPolicies"`
}

// Publish creates or replaces the inventory item, creates an offer and publishes it.
func (c *Client) Publish(ctx context.Context, ts oauth2.TokenSource, in PublishRequest) (*PublishResult, error) {
	if in.Quantity <= 0 {
		in.Quantity = 1
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}

	var item inventoryItem
	item.Product = inventoryProduct{Title: in.Title, Description: in.Description, ImageURLs: in.ImageURLs, Brand: in.Brand}
	if in.Brand != "" {
		item.Product.Aspects = map[string][]string{"Brand": {in.Brand}}
	}
	item.Condition = ConditionEnum(in.Condition)
	item.Availability.ShipToLocationAvailability.Quantity = in.Quantity
	if err := c.do(ctx, ts, http.MethodPut, "/sell/inventory/v1/inventory_item/"+url.PathEscape(in.SKU), item, nil); err != nil {
		return nil, fmt.Errorf("create inventory item: %w", err)
	}

	var offer offerRequest
	offer.SKU = in.SKU
	offer.MarketplaceID = c.MarketplaceID
	offer.Format = "FIXED_PRICE"
	offer.AvailableQuantity = in.Quantity
	offer.CategoryID = in.CategoryID
	offer.ListingDescription = in.Description
	offer.PricingSummary.Price.Value = in.Price.StringFixed(2)
	offer.PricingSummary.Price.Currency = in.Currency
	offer.ListingPolicies.FulfillmentPolicyID = in.FulfillmentPolicyID
	offer.ListingPolicies.PaymentPolicyID = in.PaymentPolicyID
	offer.ListingPolicies.ReturnPolicyID = in.ReturnPolicyID
	var created struct {
		OfferID string `json:"offerId"`
	}
	if err := c.do(ctx, ts, http.MethodPost, "/sell/inventory/v1/offer", offer, &created); err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}

	var published struct {
		ListingID string `json:"listingId"`
	}
	if err := c.do(ctx, ts, http.MethodPost, "/sell/inventory/v1/offer/"+url.PathEscape(created.OfferID)+"/publish", nil, &published); err != nil {
		return &PublishResult{OfferID: created.OfferID}, fmt.Errorf("publish offer: %w", err)
	}
	return &PublishResult{OfferID: created.OfferID, ListingID: published.ListingID}, nil
}

// ConditionEnum maps the item condition vocabulary to eBay's ConditionEnum.
func ConditionEnum(condition string) string {
	switch condition {
	case domain.ConditionNew:
		return "NEW"
	case domain.ConditionLikeNew:
		return "LIKE_NEW"
	case domain.ConditionGood:
		return "USED_GOOD"
	case domain.ConditionFair:
		return "USED_ACCEPTABLE"
	case domain.ConditionPoor:
		return "FOR_PARTS_OR_NOT_WORKING"
	}
	return "USED_GOOD"
}
