package domain

// Wishlist is the last fetched snapshot of liked products. Fetched
// distinguishes "empty because nothing liked" from "never loaded"
// (unauthenticated sessions stay unfetched).
type Wishlist struct {
	Items   []Product `json:"items"`
	Fetched bool      `json:"fetched"`
}

func (w *Wishlist) Count() int {
	return len(w.Items)
}

// Preferences are the per-session display settings (currency, locale)
// the storefront header manages.
type Preferences struct {
	Currency string `json:"currency"`
	Locale   string `json:"locale"`
}
