package metadata

import (
	"regexp"
	"strings"
)

// AuthorSeparator joins multiple authors into one field
const AuthorSeparator = "、"

var priceNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// CleanISBN removes hyphens and whitespace from an ISBN
func CleanISBN(isbn string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, strings.TrimSpace(isbn))
}

// JoinAuthors joins non-blank author names with the full-width separator
func JoinAuthors(authors []string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, a)
		}
	}
	return strings.Join(names, AuthorSeparator)
}

// NormalizePrice strips currency markers and returns the decimal amount as a
// string, e.g. "23.00元" becomes "23.00". Unparseable prices become "".
func NormalizePrice(price string) string {
	price = strings.ReplaceAll(price, ",", "")
	return priceNumber.FindString(price)
}

// PreferISBN13 returns the first non-blank ISBN-13, falling back to ISBN-10
func PreferISBN13(isbn13, isbn10 string) string {
	if v := CleanISBN(isbn13); v != "" {
		return v
	}
	return CleanISBN(isbn10)
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
