package generation

import (
	"strings"

	"easyflip-backend/internal/domain"

	"github.com/shopspring/decimal"
)

const maxTitleLen = 80

var conditionAliases = map[string]string{
	"new":                      domain.ConditionNew,
	"brand new":                domain.ConditionNew,
	"new with tags":            domain.ConditionNew,
	"nwt":                      domain.ConditionNew,
	"like new":                 domain.ConditionLikeNew,
	"like_new":                 domain.ConditionLikeNew,
	"excellent":                domain.ConditionLikeNew,
	"new without tags":         domain.ConditionLikeNew,
	"good":                     domain.ConditionGood,
	"very good":                domain.ConditionGood,
	"used":                     domain.ConditionGood,
	"fair":                     domain.ConditionFair,
	"acceptable":               domain.ConditionFair,
	"poor":                     domain.ConditionPoor,
	"for parts":                domain.ConditionPoor,
	"for parts or not working": domain.ConditionPoor,
}

// NormalizeCondition maps free-form condition text onto the item vocabulary.
func NormalizeCondition(c string) string {
	key := strings.ToLower(strings.TrimSpace(c))
	if v, ok := conditionAliases[key]; ok {
		return v
	}
	return domain.ConditionGood
}

// Normalized is an Analysis made safe to persist.
type Normalized struct {
	Title          string
	Description    string
	Category       string
	Condition      string
	Brand          string
	Size           string
	Color          string
	Model          string
	SuggestedPrice decimal.Decimal
	PriceMin       decimal.Decimal
	PriceMax       decimal.Decimal
	Confidence     float64
}

// Normalize fills the title, pins the condition vocabulary, orders the price
// range around the suggested price and clamps confidence to [0,1].
func Normalize(a *Analysis, sku string) Normalized {
	n := Normalized{
		Description: strings.TrimSpace(a.Description),
		Category:    strings.TrimSpace(a.Category),
		Condition:   NormalizeCondition(a.Condition),
		Brand:       strings.TrimSpace(a.Brand),
		Size:        strings.TrimSpace(a.Size),
		Color:       strings.TrimSpace(a.Color),
		Model:       strings.TrimSpace(a.Model),
	}

	n.Title = strings.TrimSpace(a.SuggestedTitle)
	if n.Title == "" {
		n.Title = strings.TrimSpace(strings.Join(nonEmpty(n.Brand, n.Model, n.Category), " "))
	}
	if n.Title == "" {
		n.Title = "Item " + sku
	}
	if r := []rune(n.Title); len(r) > maxTitleLen {
		n.Title = strings.TrimSpace(string(r[:maxTitleLen]))
	}
	if n.Description == "" && len(a.KeyFeatures) > 0 {
		n.Description = "- " + strings.Join(a.KeyFeatures, "\n- ")
	}

	price := money(a.SuggestedPrice)
	lo, hi := money(a.PriceRange.Min), money(a.PriceRange.Max)
	if lo.GreaterThan(hi) {
		lo, hi = hi, lo
	}
	if price.IsZero() && hi.IsPositive() {
		price = lo.Add(hi).Div(decimal.NewFromInt(2)).Round(2)
	}
	if lo.IsZero() && hi.IsZero() {
		lo, hi = price, price
	}
	if price.LessThan(lo) {
		lo = price
	}
	if price.GreaterThan(hi) {
		hi = price
	}
	n.SuggestedPrice, n.PriceMin, n.PriceMax = price, lo, hi

	switch {
	case a.Confidence < 0:
		n.Confidence = 0
	case a.Confidence > 1:
		n.Confidence = 1
	default:
		n.Confidence = a.Confidence
	}
	return n
}

func money(v float64) decimal.Decimal {
	if v <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}

func nonEmpty(vals ...string) []string {
	var out []string
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
