package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Deterministic regex extractors. These are pure functions over the
// input text; the LLM-backed extractors live in llm.go.

var (
	// idPattern matches identifier candidates like INV-2024, AB12345678.
	idPattern = regexp.MustCompile(`\b[A-Z]{2,}-?\d{4,}\b`)

	// digitIDPattern matches pure digit sequences of length >= 6.
	digitIDPattern = regexp.MustCompile(`\b\d{6,}\b`)

	// emailPattern is an RFC-5322-lite address matcher.
	emailPattern = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)

	// ibanPattern matches country code + 2 check digits + up to 30
	// alphanumerics, optionally grouped with spaces.
	ibanPattern = regexp.MustCompile(`\b[A-Z]{2}\d{2}(?:\s?[A-Z0-9]{1,4}){3,8}\b`)

	// isoDatePattern matches ISO-8601 calendar dates.
	isoDatePattern = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

	// slashDatePattern matches DD/MM/YYYY and MM/DD/YYYY forms.
	slashDatePattern = regexp.MustCompile(`\b(\d{1,2})[/.](\d{1,2})[/.](\d{4})\b`)

	// moneyPrefixPattern matches a currency marker followed by an amount.
	moneyPrefixPattern = regexp.MustCompile(`(?i)(USD|EUR|GBP|CZK|PLN|CHF|\$|€|£|Kč)\s*([0-9][0-9 .,]*[0-9]|[0-9])`)

	// moneySuffixPattern matches an amount followed by a currency marker.
	moneySuffixPattern = regexp.MustCompile(`(?i)([0-9][0-9 .,]*[0-9]|[0-9])\s*(USD|EUR|GBP|CZK|PLN|CHF|\$|€|£|Kč)`)
)

var currencySymbols = map[string]string{
	"$":  "USD",
	"€":  "EUR",
	"£":  "GBP",
	"kč": "CZK",
}

// Money is one extracted currency-amount pair in minor units.
type Money struct {
	Currency    string
	AmountCents int64
}

// IDs returns identifier candidates: alphanumeric codes like INV-2024
// and pure digit sequences of length six or more.
func IDs(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range idPattern.FindAllString(text, -1) {
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	for _, m := range digitIDPattern.FindAllString(text, -1) {
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// Emails returns recognized email addresses.
func Emails(text string) []string {
	return dedupe(emailPattern.FindAllString(text, -1))
}

// IBANs returns recognized IBANs with internal spaces removed. Matches
// are validated for total length (15 to 34 characters).
func IBANs(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range ibanPattern.FindAllString(text, -1) {
		compact := strings.ReplaceAll(m, " ", "")
		if len(compact) < 15 || len(compact) > 34 {
			continue
		}
		if _, ok := seen[compact]; !ok {
			seen[compact] = struct{}{}
			out = append(out, compact)
		}
	}
	return out
}

// MoneyAmounts returns currency-qualified amounts found in the text,
// in minor units. Both "EUR 1,250.50" and "1250,50 Kč" forms are
// recognized.
func MoneyAmounts(text string) []Money {
	type key struct {
		cur string
		amt int64
	}
	seen := make(map[key]struct{})
	var out []Money

	add := func(curRaw, amtRaw string) {
		currency := canonicalCurrency(curRaw)
		cents, ok := parseAmountCents(amtRaw)
		if !ok {
			return
		}
		k := key{currency, cents}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, Money{Currency: currency, AmountCents: cents})
	}

	for _, m := range moneyPrefixPattern.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2])
	}
	for _, m := range moneySuffixPattern.FindAllStringSubmatch(text, -1) {
		add(m[2], m[1])
	}
	return out
}

// Dates returns recognized calendar dates normalized to YYYY-MM-DD.
// For slash-separated dates the day/month order is resolved by the
// "day > 12" heuristic; ambiguous dates default to day-first.
func Dates(text string) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(y, m, d int) {
		if m < 1 || m > 12 || d < 1 || d > 31 {
			return
		}
		iso := formatISODate(y, m, d)
		if _, ok := seen[iso]; !ok {
			seen[iso] = struct{}{}
			out = append(out, iso)
		}
	}

	for _, m := range isoDatePattern.FindAllStringSubmatch(text, -1) {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		add(y, mo, d)
	}

	for _, m := range slashDatePattern.FindAllStringSubmatch(text, -1) {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		switch {
		case a > 12 && b <= 12:
			add(y, b, a) // a must be the day
		case b > 12 && a <= 12:
			add(y, a, b) // b must be the day
		default:
			add(y, b, a) // ambiguous: day-first
		}
	}
	return out
}

func canonicalCurrency(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if iso, ok := currencySymbols[lower]; ok {
		return iso
	}
	return strings.ToUpper(lower)
}

// parseAmountCents parses a numeric string with optional thousands
// separators into minor units. A trailing separator followed by one or
// two digits is treated as the decimal part.
func parseAmountCents(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	decimal := ""
	integral := raw
	if idx := strings.LastIndexAny(raw, ".,"); idx != -1 {
		frac := raw[idx+1:]
		if len(frac) >= 1 && len(frac) <= 2 && isDigits(frac) {
			decimal = frac
			integral = raw[:idx]
		}
	}

	integral = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, integral)
	if integral == "" {
		integral = "0"
	}

	whole, err := strconv.ParseInt(integral, 10, 64)
	if err != nil {
		return 0, false
	}

	cents := whole * 100
	if decimal != "" {
		frac, err := strconv.ParseInt(decimal, 10, 64)
		if err != nil {
			return 0, false
		}
		if len(decimal) == 1 {
			frac *= 10
		}
		cents += frac
	}
	return cents, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func formatISODate(y, m, d int) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(y))
	sb.WriteByte('-')
	if m < 10 {
		sb.WriteByte('0')
	}
	sb.WriteString(strconv.Itoa(m))
	sb.WriteByte('-')
	if d < 10 {
		sb.WriteByte('0')
	}
	sb.WriteString(strconv.Itoa(d))
	return sb.String()
}

// StripRecognized removes every span matched by the deterministic
// extractors (IDs, emails, IBANs, money, dates) from the text. The
// query analyzer uses this to isolate the residual semantic phrase.
func StripRecognized(text string) string {
	for _, pattern := range []*regexp.Regexp{
		emailPattern, ibanPattern, moneyPrefixPattern, moneySuffixPattern,
		isoDatePattern, slashDatePattern, idPattern, digitIDPattern,
	} {
		text = pattern.ReplaceAllString(text, " ")
	}
	return text
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
