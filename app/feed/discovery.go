package feed

import (
	"log/slog"
	"strings"

	"github.com/beevik/etree"
)

const (
	StrategyNone        = "none"
	StrategyAllElements = "all-elements"
)

// DefaultVendorMarkers are matched case-insensitively against the root tag and
// its direct children to recognise marketplace catalog exports.
var DefaultVendorMarkers = []string{"kaspi"}

// DiscoveryStrategy proposes the item nodes of a document. An empty result
// means the strategy does not apply.
type DiscoveryStrategy struct {
	Name string
	Find func(root *etree.Element) []*etree.Element
}

// Discovery locates product item nodes in documents with unknown schemas.
type Discovery struct {
	markers    []string
	strategies []DiscoveryStrategy
}

func NewDiscovery(vendorMarkers []string) *Discovery {
	if len(vendorMarkers) == 0 {
		vendorMarkers = DefaultVendorMarkers
	}

	markers := make([]string, 0, len(vendorMarkers))
	for _, m := range vendorMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markers = append(markers, m)
		}
	}

	d := &Discovery{markers: markers}
	d.strategies = append([]DiscoveryStrategy{{Name: "vendor-offers", Find: d.findVendorOffers}}, genericStrategies...)
	return d
}

// genericStrategies are tried in order when no vendor layout is recognised.
var genericStrategies = []DiscoveryStrategy{
	{Name: "item", Find: byTag("item", false)},
	{Name: "product", Find: byTag("product", false)},
	{Name: "товар", Find: byTag("товар", false)},
	{Name: "offer", Find: byTag("offer", false)},
	{Name: "{*}offer", Find: byTag("offer", true)},
	{Name: "{*}item", Find: byTag("item", true)},
	{Name: "{*}product", Find: byTag("product", true)},
	{Name: "[@sku]", Find: byAttribute("sku")},
	{Name: "[@id]", Find: byAttribute("id")},
	{Name: "root-children", Find: func(root *etree.Element) []*etree.Element { return root.ChildElements() }},
}

// Run returns the discovered item nodes and the name of the strategy that
// produced them.
func (d *Discovery) Run(doc *etree.Document) ([]*etree.Element, string) {
	if doc == nil || doc.Root() == nil {
		return []*etree.Element{}, StrategyNone
	}
	root := doc.Root()

	for _, strategy := range d.strategies {
		if items := strategy.Find(root); len(items) > 0 {
			slog.Debug("Items discovered", "strategy", strategy.Name, "count", len(items))
			return items, strategy.Name
		}
	}

	// Last resort: every element becomes a candidate. Non-product nodes end up
	// as placeholder records, so callers see a high false-positive rate here.
	all := descendants(root)
	if len(all) == 0 {
		return []*etree.Element{}, StrategyNone
	}
	slog.Warn("No item pattern matched, using every element as a candidate", "root", qualifiedTag(root), "count", len(all))
	return all, StrategyAllElements
}

// Discover is Run without the strategy name.
func (d *Discovery) Discover(doc *etree.Document) []*etree.Element {
	items, _ := d.Run(doc)
	return items
}

// HasMarker reports whether a tag carries one of the vendor markers.
func (d *Discovery) HasMarker(el *etree.Element) bool {
	tag := strings.ToLower(qualifiedTag(el))
	for _, marker := range d.markers {
		if strings.Contains(tag, marker) {
			return true
		}
	}
	return false
}

func (d *Discovery) isVendorLayout(root *etree.Element) bool {
	if d.HasMarker(root) {
		return true
	}
	for _, child := range root.ChildElements() {
		if d.HasMarker(child) {
			return true
		}
	}
	return false
}

func (d *Discovery) findVendorOffers(root *etree.Element) []*etree.Element {
	if !d.isVendorLayout(root) {
		return nil
	}

	var containers []*etree.Element
	for _, anyNamespace := range []bool{false, true} {
		if containers = byTag("offers", anyNamespace)(root); len(containers) > 0 {
			break
		}
	}

	for _, anyNamespace := range []bool{false, true} {
		var items []*etree.Element
		for _, offers := range containers {
			for _, child := range offers.ChildElements() {
				if child.Tag == "offer" && (anyNamespace || isUnqualified(child)) {
					items = append(items, child)
				}
			}
		}
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

// byTag matches descendants by local tag name. Without anyNamespace only
// elements outside any namespace match.
func byTag(tag string, anyNamespace bool) func(root *etree.Element) []*etree.Element {
	return func(root *etree.Element) []*etree.Element {
		var out []*etree.Element
		for _, el := range descendants(root) {
			if el.Tag == tag && (anyNamespace || isUnqualified(el)) {
				out = append(out, el)
			}
		}
		return out
	}
}

func byAttribute(key string) func(root *etree.Element) []*etree.Element {
	return func(root *etree.Element) []*etree.Element {
		var out []*etree.Element
		for _, el := range descendants(root) {
			if _, ok := attrValue(el, key); ok {
				out = append(out, el)
			}
		}
		return out
	}
}
