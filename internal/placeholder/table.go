package placeholder

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultTable returns the fixed sample values used when normalizing
// generated integration queries. Values are chosen so the remote service
// accepts the query and prices it the same way on every run; none of them
// contain placeholder delimiters, which keeps Normalize idempotent.
func DefaultTable() Table {
	return Table{
		"Id":           "gid://shopify/Product/1",
		"ProductId":    "gid://shopify/Product/1",
		"VariantId":    "gid://shopify/ProductVariant/1",
		"OrderId":      "gid://shopify/Order/1",
		"CustomerId":   "gid://shopify/Customer/1",
		"CollectionId": "gid://shopify/Collection/1",
		"LocationId":   "gid://shopify/Location/1",
		"InventoryId":  "gid://shopify/InventoryItem/1",
		"Cursor":       "eyJsYXN0X2lkIjoxLCJsYXN0X3ZhbHVlIjoiMSJ9",
		"First":        "1",
		"Last":         "1",
		"Query":        "title:sample",
		"Handle":       "sample-handle",
		"Sku":          "SAMPLE-SKU-1",
		"Email":        "sample@example.com",
		"Tag":          "sample-tag",
		"Status":       "ACTIVE",
		"CreatedAtMin": "2024-01-01T00:00:00Z",
		"CreatedAtMax": "2024-12-31T23:59:59Z",
	}
}

// LoadTable reads token overrides from a YAML file and merges them over the
// default table. Entries in the file win on name collisions; names the
// defaults do not know are added as-is.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "placeholder: read table %s", path)
	}

	var wrapper struct {
		Tokens map[string]string `yaml:"tokens"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "placeholder: parse table")
	}

	table := DefaultTable()
	for name, value := range wrapper.Tokens {
		table[name] = value
	}
	return table, nil
}
