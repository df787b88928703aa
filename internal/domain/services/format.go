package services

import (
	"math"
	"strings"
)

// displayName turns an ingredient id like "chicken_breast" into "Chicken Breast".
func displayName(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "_", " "))
	for i, w := range words {
		words[i] = titleCase(w)
	}
	return strings.Join(words, " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}
