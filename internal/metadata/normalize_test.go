package metadata

import "testing"

func TestNormalizePrice(t *testing.T) {
	tests := map[string]string{
		"23.00元":    "23.00",
		"CNY 45.50": "45.50",
		"¥1,280.00": "1280.00",
		"$12":       "12",
		"":          "",
		"免费":        "",
	}
	for in, want := range tests {
		if got := NormalizePrice(in); got != want {
			t.Errorf("NormalizePrice(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJoinAuthors(t *testing.T) {
	if got := JoinAuthors([]string{"刘慈欣", " ", "Ken Liu "}); got != "刘慈欣、Ken Liu" {
		t.Errorf("Unexpected join %q", got)
	}
	if got := JoinAuthors(nil); got != "" {
		t.Errorf("Expected empty string, got %q", got)
	}
}

func TestPreferISBN13(t *testing.T) {
	if got := PreferISBN13("978-7-5366-9293-0", "7536692935"); got != "9787536692930" {
		t.Errorf("Expected ISBN-13, got %q", got)
	}
	if got := PreferISBN13("", "7536692935"); got != "7536692935" {
		t.Errorf("Expected ISBN-10 fallback, got %q", got)
	}
}
