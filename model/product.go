package models

// Product is a catalog document.
type Product struct {
	ID        ID       `json:"_id"`
	Title     string   `json:"title"`
	Type      string   `json:"type"`
	Stock     int      `json:"stock"`
	Price     float64  `json:"price"`
	Platforms []string `json:"platforms,omitempty"`
}

// ProductSummary is the projection returned by catalog listings.
type ProductSummary struct {
	ID    ID      `json:"_id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// PlatformCount is one group of the platforms aggregation.
type PlatformCount struct {
	Platform string `json:"_id"`
	Total    int    `json:"total"`
}

// ProductInput is a create or replace request as decoded from the client.
// A nil field was absent from the request, which is different from a zero value.
type ProductInput struct {
	Title     *string  `json:"title"`
	Type      *string  `json:"type"`
	Stock     *int     `json:"stock"`
	Price     *float64 `json:"price"`
	Platforms []string `json:"platforms,omitempty"`
}

// Missing lists the mandatory fields absent from the input, in declaration order.
func (in ProductInput) Missing() []string {
	var missing []string
	if in.Title == nil {
		missing = append(missing, "title")
	}
	if in.Type == nil {
		missing = append(missing, "type")
	}
	if in.Stock == nil {
		missing = append(missing, "stock")
	}
	if in.Price == nil {
		missing = append(missing, "price")
	}
	return missing
}

// Product builds the document described by the input. Absent fields become zero values,
// so callers check Missing first.
func (in ProductInput) Product() Product {
	var p Product
	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.Type != nil {
		p.Type = *in.Type
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if len(in.Platforms) > 0 {
		p.Platforms = append([]string(nil), in.Platforms...)
	}
	return p
}
