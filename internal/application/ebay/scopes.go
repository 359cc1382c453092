package ebay

import "strings"

// Short names of the scopes the seller features depend on.
const (
	ScopeInventory   = "sell.inventory"
	ScopeAccount     = "sell.account"
	ScopeFulfillment = "sell.fulfillment"
)

var RequiredScopes = []string{ScopeInventory, ScopeAccount, ScopeFulfillment}

// ScopeReport describes what a granted scope string allows.
type ScopeReport struct {
	Scopes              []string `json:"scopes"`
	Missing             []string `json:"missing"`
	HasInventoryScope   bool     `json:"has_inventory_scope"`
	HasAccountScope     bool     `json:"has_account_scope"`
	HasFulfillmentScope bool     `json:"has_fulfillment_scope"`
	NeedsReauth         bool     `json:"needs_reauth"`
}

// shortScope turns "https://api.ebay.com/oauth/api_scope/sell.inventory" into "sell.inventory".
func shortScope(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// CheckScopes compares a space separated scope grant against RequiredScopes.
// A readonly variant does not satisfy a required scope.
func CheckScopes(scope string) ScopeReport {
	granted := map[string]bool{}
	report := ScopeReport{Scopes: []string{}, Missing: []string{}}
	for _, s := range strings.Fields(scope) {
		short := shortScope(s)
		if short == "" || granted[short] {
			continue
		}
		granted[short] = true
		report.Scopes = append(report.Scopes, short)
	}
	for _, req := range RequiredScopes {
		if !granted[req] {
			report.Missing = append(report.Missing, req)
		}
	}
	report.HasInventoryScope = granted[ScopeInventory]
	report.HasAccountScope = granted[ScopeAccount]
	report.HasFulfillmentScope = granted[ScopeFulfillment]
	report.NeedsReauth = len(report.Missing) > 0
	return report
}
