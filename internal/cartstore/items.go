package cartstore

import "github.com/aquavo/fishweb-cart/internal/domain"

func cloneItems(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}

func addOrIncrement(items []domain.CartItem, p domain.Product, quantity int) []domain.CartItem {
	for i := range items {
		if items[i].ID == p.ID {
			items[i].Quantity += quantity
			return items
		}
	}
	return append(items, domain.NewCartItem(p, quantity))
}

func without(items []domain.CartItem, id string) []domain.CartItem {
	out := items[:0]
	for _, item := range items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}

// withQuantity sets the quantity of id if it is present; absent items stay absent.
func withQuantity(items []domain.CartItem, id string, quantity int) []domain.CartItem {
	for i := range items {
		if items[i].ID == id {
			items[i].Quantity = quantity
		}
	}
	return items
}

func quantityOf(items []domain.CartItem, id string) (int, bool) {
	for _, item := range items {
		if item.ID == id {
			return item.Quantity, true
		}
	}
	return 0, false
}

func lineOf(items []domain.CartItem, id string) (domain.CartItem, int, bool) {
	for i, item := range items {
		if item.ID == id {
			return item, i, true
		}
	}
	return domain.CartItem{}, 0, false
}

// restoreAt puts item back at index unless a line for it is already present.
func restoreAt(items []domain.CartItem, item domain.CartItem, index int) []domain.CartItem {
	if _, ok := quantityOf(items, item.ID); ok {
		return items
	}
	if index > len(items) {
		index = len(items)
	}
	return append(items[:index], append([]domain.CartItem{item}, items[index:]...)...)
}

// normalize enforces one line per product and drops non-positive quantities.
func normalize(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 || item.ID == "" {
			continue
		}
		if i, ok := index[item.ID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.ID] = len(out)
		out = append(out, item)
	}
	return out
}
