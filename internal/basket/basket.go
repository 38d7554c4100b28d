package basket

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// Entry is one product line in a basket. Price is the unit price at the
// moment the product was first added.
type Entry struct {
	ProductID int64           `json:"-"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal is quantity times unit price
func (e Entry) Subtotal() decimal.Decimal {
	return e.Price.Mul(decimal.NewFromInt(int64(e.Qty)))
}

// Basket tracks the products a visitor picked before checkout.
// It is a plain value; persistence is handled by Manager.
type Basket struct {
	entries map[int64]*Entry
}

// New returns an empty basket
func New() *Basket {
	return &Basket{entries: make(map[int64]*Entry)}
}

// Add increases the quantity of an existing entry or inserts a new one with
// the product's current price. Checking qty against the product's inventory
// is left to the caller.
func (b *Basket) Add(product *models.Product, qty int) {
	if e, ok := b.entries[product.ID]; ok {
		e.Qty += qty
		return
	}
	b.entries[product.ID] = &Entry{
		ProductID: product.ID,
		Qty:       qty,
		Price:     product.Price.Round(2),
	}
}

// Update sets the quantity of an entry; qty <= 0 removes it.
// Products that are not in the basket are ignored.
func (b *Basket) Update(productID int64, qty int) {
	e, ok := b.entries[productID]
	if !ok {
		return
	}
	if qty <= 0 {
		delete(b.entries, productID)
		return
	}
	e.Qty = qty
}

// Delete removes an entry if present
func (b *Basket) Delete(productID int64) {
	delete(b.entries, productID)
}

// Quantity returns the quantity held for a product, 0 if absent
func (b *Basket) Quantity(productID int64) int {
	if e, ok := b.entries[productID]; ok {
		return e.Qty
	}
	return 0
}

// TotalPrice sums quantity times unit price over all entries
func (b *Basket) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, e := range b.entries {
		total = total.Add(e.Subtotal())
	}
	return total.Round(2)
}

// Len is the total number of units in the basket
func (b *Basket) Len() int {
	n := 0
	for _, e := range b.entries {
		n += e.Qty
	}
	return n
}

// IsEmpty reports whether the basket holds no entries
func (b *Basket) IsEmpty() bool {
	return len(b.entries) == 0
}

// Clear empties the basket
func (b *Basket) Clear() {
	b.entries = make(map[int64]*Entry)
}

// Items returns a copy of the entries ordered by product id
func (b *Basket) Items() []Entry {
	items := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		items = append(items, *e)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID < items[j].ProductID
	})
	return items
}

// ProductIDs returns the ids of all products in the basket, ascending
func (b *Basket) ProductIDs() []int64 {
	items := b.Items()
	ids := make([]int64, len(items))
	for i, e := range items {
		ids[i] = e.ProductID
	}
	return ids
}

// MarshalJSON encodes the basket as a product-id keyed object
func (b *Basket) MarshalJSON() ([]byte, error) {
	out := make(map[string]Entry, len(b.entries))
	for id, e := range b.entries {
		out[strconv.FormatInt(id, 10)] = *e
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the product-id keyed form written by MarshalJSON
func (b *Basket) UnmarshalJSON(data []byte) error {
	var in map[string]Entry
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	entries := make(map[int64]*Entry, len(in))
	for key, e := range in {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid basket product id %q: %w", key, err)
		}
		if e.Qty <= 0 {
			continue
		}
		entry := e
		entry.ProductID = id
		entries[id] = &entry
	}
	b.entries = entries
	return nil
}
