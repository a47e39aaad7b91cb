package market

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/price-comb/app/estimates"
	"github.com/shopspring/decimal"
)

const (
	DefaultStorefront = "AIKOS"
	DefaultSearchURL  = "https://kaspi.kz/shop/search/?text=%s"
)

var tireSellers = []string{
	"Шинный центр",
	"Vianor",
	"Колесо",
	"ШинМаркет",
	"Шинный двор",
	"Эйкос",
	"Express Шины",
}

var generalSellers = []string{
	"Technodom",
	"Sulpak",
	"Mechta",
	"Alser",
	"Evrika",
	"Shop.kz",
}

// Months when tires are swapped for the season; fewer sellers undercut then.
var seasonalMonths = map[time.Month]bool{
	time.March:     true,
	time.April:     true,
	time.September: true,
	time.October:   true,
}

type Options struct {
	Storefront string
	SearchURL  string // fmt template with a single %s for the escaped model
	Rand       *rand.Rand
	Now        func() time.Time
}

// SimulatedEstimator synthesizes competitor prices around the reference price.
// Results are random by design; repeated calls for the same product differ.
type SimulatedEstimator struct {
	store      Store
	storefront string
	searchURL  string
	now        func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

var _ Estimator = (*SimulatedEstimator)(nil)

func NewSimulatedEstimator(store Store, opts Options) *SimulatedEstimator {
	e := &SimulatedEstimator{
		store:      store,
		storefront: opts.Storefront,
		searchURL:  opts.SearchURL,
		now:        opts.Now,
		rnd:        opts.Rand,
	}
	if e.storefront == "" {
		e.storefront = DefaultStorefront
	}
	if e.searchURL == "" || !strings.Contains(e.searchURL, "%s") {
		e.searchURL = DefaultSearchURL
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return e
}

func (e *SimulatedEstimator) Estimate(ctx context.Context, model string, referencePrice decimal.Decimal) (snapshots []Snapshot) {
	slog.Debug("Estimating market price", "model", model, "our_price", referencePrice.String())

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Market estimate failed, using fallback", "model", model, "error", r)
			snapshots = []Snapshot{e.fallback(model, referencePrice)}
		}
	}()

	snapshot, err := e.estimate(ctx, model, referencePrice)
	if err != nil {
		slog.Error("Market estimate failed, using fallback", "model", model, "error", err)
		return []Snapshot{e.fallback(model, referencePrice)}
	}

	e.remember(model, snapshot)

	slog.Debug("Market estimate completed", "model", model, "price", snapshot.Price.String(), "sellers", len(snapshot.Sellers))
	return []Snapshot{snapshot}
}

func (e *SimulatedEstimator) estimate(ctx context.Context, model string, reference decimal.Decimal) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	class := Classify(model)
	pool := generalSellers
	if class.Tire {
		pool = tireSellers
	}

	offers := []SellerPrice{{Seller: e.storefront, Price: reference}}
	seen := map[string]bool{e.storefront: true}

	low, high := 0.85, 1.05
	if seasonalMonths[e.now().Month()] {
		low, high = 0.90, 1.08
	}

	offers = append(offers, e.drawCompetitors(pool, seen, reference, low, high, class.Premium())...)

	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].Price.LessThan(offers[j].Price)
	})

	sellers := make([]string, 0, len(offers))
	for i := range offers {
		offers[i].DiffPercent = DifferencePercent(offers[i].Price, reference)
		sellers = append(sellers, offers[i].Seller)
	}

	if class.Tire {
		slog.Debug("Tire product detected", "model", model, "brand", class.Brand, "size", class.Size)
	}

	return Snapshot{
		SourceLabel:     model,
		Price:           offers[0].Price,
		Sellers:         sellers,
		PerSellerDetail: offers,
		ReferenceURL:    e.lookupURL(model),
	}, nil
}

// drawCompetitors picks two to four sellers from the pool. Repeated picks are
// dropped, so fewer competitors than attempts is normal.
func (e *SimulatedEstimator) drawCompetitors(pool []string, seen map[string]bool, reference decimal.Decimal, low, high float64, premium bool) []SellerPrice {
	e.mu.Lock()
	defer e.mu.Unlock()

	var picked []SellerPrice
	attempts := 2 + e.rnd.IntN(3)
	for i := 0; i < attempts; i++ {
		seller := pool[e.rnd.IntN(len(pool))]
		multiplier := low + e.rnd.Float64()*(high-low)
		if premium {
			multiplier = multiplier*0.9 + 0.1
		}
		if seen[seller] {
			continue
		}
		seen[seller] = true
		picked = append(picked, SellerPrice{Seller: seller, Price: competitorPrice(reference, multiplier)})
	}
	return picked
}

// competitorPrice truncates reference*multiplier to whole currency units and
// rounds to the nearest hundred, ties to even.
func competitorPrice(reference decimal.Decimal, multiplier float64) decimal.Decimal {
	return reference.Mul(decimal.NewFromFloat(multiplier)).Truncate(0).RoundBank(-2)
}

func (e *SimulatedEstimator) remember(model string, snapshot Snapshot) {
	if e.store == nil {
		return
	}

	e.store.Put(Normalize(model), estimates.Entry{
		Model:       model,
		LastPrice:   snapshot.Price,
		LastChecked: e.now().Format(estimates.TimestampLayout),
		Sellers:     snapshot.Sellers,
	})
	if err := e.store.FlushIfDue(); err != nil {
		slog.Warn("Estimate cache not saved", "error", err)
	}
}

func (e *SimulatedEstimator) fallback(model string, reference decimal.Decimal) Snapshot {
	return Snapshot{
		SourceLabel:            model,
		Price:                  reference,
		Sellers:                []string{e.storefront},
		PriceDifferencePercent: decimal.NewNullDecimal(decimal.Zero),
		ReferenceURL:           e.lookupURL(model),
	}
}

func (e *SimulatedEstimator) lookupURL(model string) string {
	return fmt.Sprintf(e.searchURL, escapeQuery(model))
}

// Spaces are written as %20 and "/" is left as is, so size designations such
// as 205/55R16 stay readable in stored links.
var queryUnescaper = strings.NewReplacer("+", "%20", "%2F", "/")

func escapeQuery(s string) string {
	return queryUnescaper.Replace(url.QueryEscape(s))
}
