package extract

import (
	"reflect"
	"testing"
)

func TestIDs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "hyphenated invoice id",
			text: "payment for INV-20240815 received",
			want: []string{"INV-20240815"},
		},
		{
			name: "compact alpha id",
			text: "order AB12345 confirmed",
			want: []string{"AB12345"},
		},
		{
			name: "digit sequence",
			text: "reference 4820113 attached",
			want: []string{"4820113"},
		},
		{
			name: "short digits ignored",
			text: "room 42, floor 3",
			want: nil,
		},
		{
			name: "no duplicates",
			text: "INV-20240815 and again INV-20240815",
			want: []string{"INV-20240815"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IDs(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("IDs(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestEmails(t *testing.T) {
	got := Emails("contact jan.novak@example.com or billing+eu@corp.co.uk today")
	want := []string{"jan.novak@example.com", "billing+eu@corp.co.uk"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Emails = %v, want %v", got, want)
	}

	if got := Emails("no addresses here"); got != nil {
		t.Errorf("Emails on plain text = %v, want nil", got)
	}
}

func TestIBANs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "compact",
			text: "pay to DE89370400440532013000 please",
			want: []string{"DE89370400440532013000"},
		},
		{
			name: "spaced groups",
			text: "IBAN: GB29 NWBK 6016 1331 9268 19",
			want: []string{"GB29NWBK60161331926819"},
		},
		{
			name: "too short rejected",
			text: "code AB12 XY34 Z9",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IBANs(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("IBANs(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestMoneyAmounts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Money
	}{
		{
			name: "iso code prefix with thousands and decimals",
			text: "total EUR 1,250.50 due",
			want: []Money{{Currency: "EUR", AmountCents: 125050}},
		},
		{
			name: "dollar symbol",
			text: "charged $42.99",
			want: []Money{{Currency: "USD", AmountCents: 4299}},
		},
		{
			name: "suffix currency czech",
			text: "cena 1250,50 Kč",
			want: []Money{{Currency: "CZK", AmountCents: 125050}},
		},
		{
			name: "integer amount",
			text: "USD 300 flat",
			want: []Money{{Currency: "USD", AmountCents: 30000}},
		},
		{
			name: "single decimal digit",
			text: "fee $10.5",
			want: []Money{{Currency: "USD", AmountCents: 1050}},
		},
		{
			name: "no money",
			text: "meeting at 10",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MoneyAmounts(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MoneyAmounts(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestDates(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "iso",
			text: "issued 2024-08-15",
			want: []string{"2024-08-15"},
		},
		{
			name: "day first resolved by heuristic",
			text: "due 25/03/2024",
			want: []string{"2024-03-25"},
		},
		{
			name: "month first resolved by heuristic",
			text: "shipped 03/25/2024",
			want: []string{"2024-03-25"},
		},
		{
			name: "ambiguous defaults to day first",
			text: "signed 05/03/2024",
			want: []string{"2024-03-05"},
		},
		{
			name: "invalid month rejected",
			text: "weird 2024-19-40",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dates(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Dates(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestMatchVendor(t *testing.T) {
	vendors := []string{"google", "amazon web services", "škoda"}

	tests := []struct {
		text string
		want string
	}{
		{"Google Cloud invoice for July", "google"},
		{"objednávka Škoda Auto", "škoda"},
		{"invoice from Amazon Web Services for EC2 usage", "amazon web services"},
		{"amazon prime order confirmation", ""},
		{"microsoft teams subscription", ""},
		{"", ""},
	}

	for _, tt := range tests {
		got := MatchVendor(tt.text, vendors)
		if got != tt.want {
			t.Errorf("MatchVendor(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
