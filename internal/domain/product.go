package domain

type Product struct {
	ID        string  `json:"id"`
	Slug      string  `json:"slug"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	SalePrice float64 `json:"sale_price,omitempty"`
	Currency  string  `json:"currency,omitempty"`
	Image     string  `json:"image,omitempty"`
	InStock   bool    `json:"in_stock"`
}

type ProductPage struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
	Total    int       `json:"total"`
}

type Review struct {
	Author  string  `json:"author"`
	Rating  float64 `json:"rating"`
	Comment string  `json:"comment,omitempty"`
}

// Homepage is the CMS-driven component list the storefront renders in
// order. Component payloads vary by type; unknown types are dropped by
// the upstream decoder with a warning rather than breaking the page.
type Homepage struct {
	Components []HomepageComponent `json:"components"`
}

type ComponentType string

const (
	ComponentHero        ComponentType = "hero"
	ComponentProductList ComponentType = "product_list"
	ComponentReviews     ComponentType = "reviews"
	ComponentFeatures    ComponentType = "features"
)

type HomepageComponent struct {
	ID       string        `json:"id"`
	Type     ComponentType `json:"type"`
	Title    string        `json:"title,omitempty"`
	Subtitle string        `json:"subtitle,omitempty"`
	Image    string        `json:"image,omitempty"`
	Products []Product     `json:"products,omitempty"`
	Reviews  []Review      `json:"reviews,omitempty"`
	Features []Feature     `json:"features,omitempty"`
}

type Feature struct {
	Icon  string `json:"icon,omitempty"`
	Title string `json:"title"`
	Text  string `json:"text,omitempty"`
}

type Order struct {
	ID        string  `json:"id"`
	Status    string  `json:"status"`
	Total     float64 `json:"total"`
	Currency  string  `json:"currency,omitempty"`
	CreatedAt string  `json:"created_at"`
}
