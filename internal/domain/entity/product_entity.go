package entity

import (
	"sort"
	"time"
)

// PlaceholderImageURL is stored when a product is saved without an image.
const PlaceholderImageURL = "https://placehold.co/400x250/cccccc/333333?text=No+Image"

// Category is one of the fixed storefront categories.
type Category string

const (
	CategoryAllopathic      Category = "Allopathic Medicines"
	CategoryAyurvedic       Category = "Ayurvedic Medicines"
	CategoryHomeopathic     Category = "Homeopathic Medicines"
	CategoryGeneric         Category = "Generic Medicines"
	CategoryVeterinary      Category = "Veterinary Medicines"
	CategoryUnani           Category = "Unani Medicines & Maajum"
	CategorySyrups          Category = "Syrups"
	CategoryEyeDrops        Category = "Eye Drops"
	CategoryBodyLotions     Category = "Body Lotions"
	CategorySurgical        Category = "Surgical Appliances"
	CategoryProteinPowder   Category = "Protein Powder"
	CategoryHairFallSerum   Category = "Hair Fall Serum"
	CategoryInjections      Category = "Injections"
	CategoryHousehold       Category = "Household Essentials"
	CategorySnacksBeverages Category = "Snacks & Beverages"
	CategorySelfCare        Category = "Self-care & Grooming Products"
	CategoryCosmetics       Category = "Cosmetic Products"
	CategoryBabyCare        Category = "Baby Care Products"
)

var categories = []Category{
	CategoryAllopathic,
	CategoryAyurvedic,
	CategoryHomeopathic,
	CategoryGeneric,
	CategoryVeterinary,
	CategoryUnani,
	CategorySyrups,
	CategoryEyeDrops,
	CategoryBodyLotions,
	CategorySurgical,
	CategoryProteinPowder,
	CategoryHairFallSerum,
	CategoryInjections,
	CategoryHousehold,
	CategorySnacksBeverages,
	CategorySelfCare,
	CategoryCosmetics,
	CategoryBabyCare,
}

// Categories returns the categories in display order. The first entry is the
// default for a new product.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// DefaultCategory is preselected when creating a product.
func DefaultCategory() Category { return categories[0] }

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// Product is a storefront catalogue entry. Price is free-form text.
type Product struct {
	ID          string
	Name        string
	Category    Category
	Price       string
	ImageURL    string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SortProducts orders products by category, then name, both ascending.
func SortProducts(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Category != products[j].Category {
			return products[i].Category < products[j].Category
		}
		return products[i].Name < products[j].Name
	})
}
