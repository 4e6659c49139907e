package domain

// PassID identifies a pass in the catalog (e.g. "3-day").
type PassID string

// AttractionID identifies an attraction in the catalog.
type AttractionID string

// UserID is the identifier of an authenticated user.
type UserID string

// PurchaseID identifies a purchase record. Pending purchases are removed from the
// offline queue by this identifier.
type PurchaseID string

// ClientID identifies one open page context (a browsing session talking to the worker).
// We model it as an opaque identifier chosen by the client.
type ClientID string
