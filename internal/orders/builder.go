package orders

// NormalizeItems turns a raw request into a list fit for placement:
//   - rows with no product selected or a non-positive quantity are dropped,
//     they represent unfilled form rows rather than bad input;
//   - duplicate products are merged by summing quantities, keeping the
//     position of the first occurrence so output order is deterministic;
//   - an empty result is a validation failure.
//
// Product existence is checked later, inside the placement transaction,
// against the same snapshot the stock check uses.
func NormalizeItems(raw []LineItem) ([]LineItem, error) {
	out := make([]LineItem, 0, len(raw))
	index := make(map[int64]int, len(raw))

	for _, it := range raw {
		if it.ProductID == 0 || it.Qty <= 0 {
			continue
		}
		if it.Qty > MaxQty {
			return nil, &ValidationError{Field: "qty", Reason: "quantity out of range"}
		}
		if i, seen := index[it.ProductID]; seen {
			out[i].Qty += it.Qty
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}

	if len(out) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "order has no items"}
	}
	return out, nil
}

// ValidateProduct enforces the catalog field bounds before a create/update
// hits the database.
func ValidateProduct(p *Product) error {
	switch {
	case p.Name == "" || len(p.Name) > MaxNameLen:
		return &ValidationError{Field: "name", Reason: "required, at most 100 characters"}
	case p.SKU == "" || len(p.SKU) > MaxSKULen:
		return &ValidationError{Field: "sku", Reason: "required, at most 50 characters"}
	case p.PriceCents <= 0:
		return &ValidationError{Field: "price_cents", Reason: "must be positive"}
	case p.QuantityInStock < 0:
		return &ValidationError{Field: "quantity_in_stock", Reason: "must not be negative"}
	}
	return nil
}
