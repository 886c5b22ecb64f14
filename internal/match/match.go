// Package match scores OpenLibrary search candidates against a catalog
// entry using a weighted fuzzy title/author similarity.
package match

import (
	"math"
	"strings"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// Threshold is the minimum combined score a candidate needs to be accepted.
	Threshold = 75.0

	titleWeight  = 0.7
	authorWeight = 0.3
)

// Ratio returns the case-insensitive similarity of a and b in [0,100].
// It is the indel ratio 2·LCS/(|a|+|b|), rounded half to even, and 0 when
// either side is empty.
func Ratio(a, b string) int {
	a = normalize(a)
	b = normalize(b)
	total := len([]rune(a)) + len([]rune(b))
	if a == "" || b == "" || total == 0 {
		return 0
	}
	lcs := edlib.LCS(a, b)
	return int(math.RoundToEven(200 * float64(lcs) / float64(total)))
}

// Score combines title and author similarity as 0.7·title + 0.3·author.
// Only the first name of a comma-separated queryAuthor is compared, against
// every candidate author; the best match counts. Without a query author, or
// without candidate authors, the author part is 0.
func Score(queryTitle, queryAuthor, candidateTitle string, candidateAuthors []string) float64 {
	title := Ratio(queryTitle, candidateTitle)

	author := 0
	if first := firstAuthor(queryAuthor); first != "" {
		for _, name := range candidateAuthors {
			author = max(author, Ratio(first, name))
		}
	}

	return titleWeight*float64(title) + authorWeight*float64(author)
}

// Accept reports whether score clears Threshold.
func Accept(score float64) bool {
	return score >= Threshold
}

func normalize(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

func firstAuthor(authors string) string {
	first, _, _ := strings.Cut(authors, ",")
	return strings.TrimSpace(first)
}
