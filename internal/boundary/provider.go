// Package boundary resolves a region selector to the geographic clip
// polygon the coverage diagram is cut to. Selectors are matched
// case- and diacritic-insensitively; "nationwide" selects the whole
// dataset extent.
package boundary

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SelectorNationwide selects the union of every feature in the dataset.
const SelectorNationwide = "nationwide"

// ErrNotFound marks an unknown region selector.
var ErrNotFound = eris.New("boundary: region selector not found")

// Provider resolves a region selector to its boundary polygon.
type Provider interface {
	Resolve(ctx context.Context, selector string) (*geom.MultiPolygon, error)
}

var foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize folds case and strips diacritics so "Tamil Nādu" matches
// "tamil nadu".
func normalize(s string) string {
	folded, _, err := transform.String(foldTransform, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

// appendPolygons copies every polygon of src into dst.
func appendPolygons(dst, src *geom.MultiPolygon) error {
	for i := 0; i < src.NumPolygons(); i++ {
		if err := dst.Push(src.Polygon(i)); err != nil {
			return eris.Wrap(err, "boundary: merge polygons")
		}
	}
	return nil
}
