package stock

// Target identifies the product variant family being watched.
type Target struct {
	BaseURL          string
	ProductFamily    string
	ItemType         string
	ProductLinkXPath string
	AddToCartXPath   string
	// InStockWhenDisabled selects which add-to-cart state counts as in stock.
	// The default of true is carried over unchanged from the earlier checker
	// and has not been confirmed against the live storefront.
	InStockWhenDisabled bool
}

// DefaultTarget returns the compiled-in target.
func DefaultTarget() Target {
	return Target{
		BaseURL:             "https://istorepreowned.co.za",
		ProductFamily:       "apple-watch",
		ItemType:            "apple-watch-s8-cell-alum-45mm",
		ProductLinkXPath:    "//a[contains(@class, 'product-item__action-button') and contains(@class, 'button')]",
		AddToCartXPath:      "//button[contains(@class, 'product-form__add-button') and contains(@class, 'button')]",
		InStockWhenDisabled: true,
	}
}

// CollectionURL is the listing page for the product family.
func (t Target) CollectionURL() string {
	return t.BaseURL + "/collections/" + t.ProductFamily
}

// VariantURL is the purchase page for a single variant of the item type.
func (t Target) VariantURL(variantID string) string {
	return t.BaseURL + "/products/" + t.ItemType + "?variant=" + variantID
}

// InStock maps the control's disabled state onto availability.
func (t Target) InStock(controlDisabled bool) bool {
	return controlDisabled == t.InStockWhenDisabled
}
