package model

// Category taxonomy items are validated against when listed.
var Categories = map[string][]string{
	"Clothing":    {"Tops", "Bottoms", "Outerwear", "Dresses", "Activewear"},
	"Shoes":       {"Sneakers", "Boots", "Sandals", "Heels"},
	"Accessories": {"Bags", "Jewelry", "Hats", "Belts", "Scarves"},
	"Electronics": {"Phones", "Audio", "Gaming", "Wearables"},
	"Home":        {"Decor", "Kitchen", "Furniture"},
	"Sports":      {"Equipment", "Apparel"},
	"Books":       {},
	"Other":       {},
}

// ValidCategory reports whether category (and, when non-empty, subcategory)
// exists in the taxonomy.
func ValidCategory(category, subcategory string) bool {
	subs, ok := Categories[category]
	if !ok {
		return false
	}
	if subcategory == "" {
		return true
	}
	for _, s := range subs {
		if s == subcategory {
			return true
		}
	}
	return false
}
