package models

// Money is a currency-qualified amount in minor units.
type Money struct {
	// Currency is the ISO 4217 code, or empty when only a bare amount
	// was recognized.
	Currency string `json:"currency,omitempty"`

	// AmountCents is the amount in minor units (e.g. cents).
	AmountCents int64 `json:"amount_cents"`
}

// CategoryMatch records why a category activated for a query.
type CategoryMatch struct {
	// Category is the matched category configuration.
	Category *Category `json:"category"`

	// MatchedEntities are the category entities found in the query.
	MatchedEntities []string `json:"matched_entities,omitempty"`

	// Triggered is true when a trigger keyword activated the category
	// without an entity match.
	Triggered bool `json:"triggered,omitempty"`
}

// QueryIntent is the structured parse of a raw query string: exact
// tokens, money, dates, detected categories, and the residual semantic
// phrase.
type QueryIntent struct {
	// Raw is the original query string.
	Raw string `json:"raw"`

	// CleanText is the residual semantic phrase after stripping
	// recognized tokens, normalized.
	CleanText string `json:"clean_text"`

	// IDs are identifier candidates (invoice numbers, order IDs).
	IDs []string `json:"ids,omitempty"`

	// Emails are recognized email addresses.
	Emails []string `json:"emails,omitempty"`

	// IBANs are recognized bank account numbers.
	IBANs []string `json:"ibans,omitempty"`

	// Money are recognized amounts with optional currency.
	Money []Money `json:"money,omitempty"`

	// Dates are recognized calendar dates in ISO-8601 form.
	Dates []string `json:"dates,omitempty"`

	// FileTypes are trailing file-type hints like "pdf" or "image".
	FileTypes []string `json:"file_types,omitempty"`

	// Categories maps category type to its match details for every
	// category that activated.
	Categories map[string]*CategoryMatch `json:"categories,omitempty"`

	// HasStrongSignal is true when any of IDs, Emails, IBANs, or Money
	// is non-empty. Strong signals prefer exact search strategies.
	HasStrongSignal bool `json:"has_strong_signal"`
}
