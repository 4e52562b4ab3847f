package scraper

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Product is one name/price pair extracted from a retailer page.
type Product struct {
	Name  string
	Price string
}

// ParseProducts walks retailer HTML and extracts one Product per product
// tile. The price is combined with the per-unit fragment when present, e.g.
// "$2.50 ($1.47 per 100g)". Tiles missing a name or price are skipped.
func ParseProducts(r io.Reader) ([]Product, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	products := []Product{}
	for _, tile := range findAll(doc, isProductTile) {
		name := nodeText(findFirst(tile, matchTag("h2", "product__title")))
		price := nodeText(findFirst(tile, matchTag("span", "price__value")))
		if name == "" || price == "" {
			continue
		}

		if unit := nodeText(findFirst(tile, matchTag("div", "price__calculation_method"))); unit != "" {
			// The unit-price div carries extra fragments after a pipe.
			unit = strings.TrimSpace(strings.SplitN(unit, "|", 2)[0])
			price = fmt.Sprintf("%s (%s)", price, unit)
		}

		products = append(products, Product{Name: name, Price: price})
	}
	return products, nil
}

func isProductTile(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "section" && attr(n, "data-testid") == "product-tile"
}

func matchTag(tag, class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag && hasClass(n, class)
	}
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	if match(n) {
		found = append(found, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		found = append(found, findAll(c, match)...)
	}
	return found
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := findFirst(c, match); m != nil {
			return m
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
