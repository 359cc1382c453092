package ebay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"easyflip-backend/internal/config"
	"easyflip-backend/internal/infrastructure/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// fakeEbay serves the token endpoint and the handful of REST calls the client makes.
type fakeEbay struct {
	mu          sync.Mutex
	calls       []string
	authHeaders []string
	tokenGrants []string
	tokenStatus int
	scope       string
	noPolicies  bool
}

func (f *fakeEbay) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/identity/v1/oauth2/token":
		_ = r.ParseForm()
		f.mu.Lock()
		f.tokenGrants = append(f.tokenGrants, r.PostForm.Get("grant_type"))
		status := f.tokenStatus
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"bad code"}`))
			return
		}
		body := map[string]interface{}{
			"access_token": "access-" + r.PostForm.Get("grant_type"),
			"token_type":   "User Access Token",
			"expires_in":   7200,
		}
		if r.PostForm.Get("grant_type") == "authorization_code" {
			body["refresh_token"] = "refresh-1"
		}
		if f.scope != "" {
			body["scope"] = f.scope
		}
		_ = json.NewEncoder(w).Encode(body)
	case strings.HasPrefix(r.URL.Path, "/sell/account/v1/"):
		kind := strings.TrimPrefix(r.URL.Path, "/sell/account/v1/")
		if f.noPolicies {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		switch kind {
		case "fulfillment_policy":
			_, _ = w.Write([]byte(`{"fulfillmentPolicies":[{"fulfillmentPolicyId":"F1","name":"Ship"}]}`))
		case "payment_policy":
			_, _ = w.Write([]byte(`{"paymentPolicies":[{"paymentPolicyId":"P1","name":"Pay"}]}`))
		case "return_policy":
			_, _ = w.Write([]byte(`{"returnPolicies":[{"returnPolicyId":"R1","name":"Returns"}]}`))
		}
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/sell/inventory/v1/inventory_item/"):
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && r.URL.Path == "/sell/inventory/v1/offer":
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"offerId":"O-1"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/sell/inventory/v1/offer/O-1/publish":
		_, _ = w.Write([]byte(`{"listingId":"L-1"}`))
	case r.URL.Path == "/buy/browse/v1/item_summary/search":
		_, _ = w.Write([]byte(`{"total":3,"itemSummaries":[
			{"itemId":"1","title":"A","price":{"value":"10.00","currency":"USD"}},
			{"itemId":"2","title":"B","price":{"value":"30.00","currency":"USD"}},
			{"itemId":"3","title":"C","price":{"value":"20.00","currency":"USD"}}]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeEbay) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type testEnv struct {
	fake   *fakeEbay
	srv    *httptest.Server
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	db     *gorm.DB
	client *Client
	tokens *TokenStore
	oauth  *OAuthService
	seller *Service
}

func setupEbayTest(t *testing.T) *testEnv {
	fake := &fakeEbay{}
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
		srv.Close()
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	client := NewClient(config.EbayConfig{
		ClientID: "cid", ClientSecret: "secret", RedirectURI: "Easy-RuName", Sandbox: true, MarketplaceID: "EBAY_US",
	})
	client.OAuth.Endpoint.TokenURL = srv.URL + "/identity/v1/oauth2/token"
	client.App.TokenURL = srv.URL + "/identity/v1/oauth2/token"
	client.APIBaseURL = srv.URL
	client.HTTP = srv.Client()

	cipher, err := NewCipher(testKey)
	require.NoError(t, err)
	tokens := &TokenStore{DB: db, Rdb: rdb, Cipher: cipher}
	return &testEnv{
		fake:   fake,
		srv:    srv,
		mr:     mr,
		rdb:    rdb,
		db:     db,
		client: client,
		tokens: tokens,
		oauth:  &OAuthService{Client: client, Tokens: tokens, Rdb: rdb, FlowTimeout: 2 * time.Minute, Configured: true},
		seller: &Service{Client: client, Tokens: tokens},
	}
}
