package feed

import (
	"log/slog"
	"strings"

	"github.com/beevik/etree"
)

// fieldStrategy looks up one candidate name on an item node.
type fieldStrategy struct {
	name string
	find func(item *etree.Element, candidate string) string
}

// fieldStrategies run in this order for every candidate name.
var fieldStrategies = []fieldStrategy{
	{name: "child", find: findChildText},
	{name: "namespaced-child", find: findNamespacedChildText},
	{name: "attribute", find: findAttribute},
}

// Locate returns the first non-empty value for the candidate names. All
// strategies are tried for a candidate before moving to the next one.
func Locate(item *etree.Element, candidates []string) (string, bool) {
	if item == nil {
		return "", false
	}

	for _, candidate := range candidates {
		for _, strategy := range fieldStrategies {
			if value := safeFind(strategy, item, candidate); value != "" {
				return value, true
			}
		}
	}

	return "", false
}

func safeFind(strategy fieldStrategy, item *etree.Element, candidate string) (value string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("Field lookup failed", "strategy", strategy.name, "field", candidate, "error", r)
			value = ""
		}
	}()
	return strategy.find(item, candidate)
}

func findChildText(item *etree.Element, candidate string) string {
	for _, child := range item.ChildElements() {
		if child.Tag == candidate && isUnqualified(child) {
			return nonBlank(child.Text())
		}
	}
	return ""
}

func findNamespacedChildText(item *etree.Element, candidate string) string {
	for _, child := range item.ChildElements() {
		if child.Tag != candidate || isUnqualified(child) {
			continue
		}
		if text := nonBlank(child.Text()); text != "" {
			return text
		}
	}
	return ""
}

func findAttribute(item *etree.Element, candidate string) string {
	value, _ := attrValue(item, candidate)
	return nonBlank(value)
}

// nonBlank treats whitespace-only text (indentation inside container
// elements) as missing.
func nonBlank(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}
