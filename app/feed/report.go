package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/lysyi3m/price-comb/app/database"
)

// ReportGenerator renders a stored comparison as an XML document. Products
// keep the sku/model/price/stock element names so the report can be uploaded
// again as a feed.
type ReportGenerator struct {
	version string
}

func NewReportGenerator(version string) *ReportGenerator {
	return &ReportGenerator{version: version}
}

func (g *ReportGenerator) Run(comparison database.Comparison) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(fmt.Sprintf(`<comparison id="%s" generator="Price-Comb/%s">`, escapeAttr(comparison.PublicID), escapeAttr(g.version)))
	buf.WriteString("\n")

	g.writeElement(&buf, "filename", comparison.Filename, 2)
	g.writeElement(&buf, "source", comparison.SourceTitle, 2)
	g.writeElement(&buf, "vendor", comparison.Vendor, 2)
	g.writeElement(&buf, "created", comparison.CreatedAt.In(time.Local).Format(time.RFC3339), 2)

	buf.WriteString(fmt.Sprintf("  <products count=\"%d\">\n", comparison.ProductsCount))
	for _, product := range comparison.Products {
		g.writeProduct(&buf, product)
	}
	buf.WriteString("  </products>\n</comparison>")

	return buf.String(), nil
}

func (g *ReportGenerator) writeProduct(buf *bytes.Buffer, product database.Product) {
	buf.WriteString("    <product>\n")

	g.writeElement(buf, "sku", product.SKU, 6)
	g.writeElement(buf, "model", product.Model, 6)
	g.writeElement(buf, "price", product.OurPrice.String(), 6)
	g.writeElement(buf, "stock", strconv.FormatInt(product.Stock, 10), 6)

	for _, result := range product.MarketResults {
		buf.WriteString("      <market_result>\n")
		g.writeElement(buf, "name", result.SourceLabel, 8)
		g.writeElement(buf, "market_price", result.Price.String(), 8)
		if result.PriceDifferencePercent.Valid {
			g.writeElement(buf, "difference_percent", result.PriceDifferencePercent.Decimal.StringFixed(2), 8)
		}
		g.writeElement(buf, "url", result.ReferenceURL, 8)
		if len(result.Sellers) > 0 {
			buf.WriteString("        <sellers>\n")
			for _, seller := range result.Sellers {
				g.writeElement(buf, "seller", seller, 10)
			}
			buf.WriteString("        </sellers>\n")
		}
		buf.WriteString("      </market_result>\n")
	}

	buf.WriteString("    </product>\n")
}

func (g *ReportGenerator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func escapeAttr(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
