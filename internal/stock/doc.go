// Package stock implements the stock check pipeline: fetch the collection
// listing, follow product links for the target item type, load each product's
// variant metadata, inspect every variant page's add-to-cart control, and
// publish one notification listing the variants found in stock.
package stock
