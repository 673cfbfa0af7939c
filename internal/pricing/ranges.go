package pricing

import "fmt"

// PriceRange bounds a catalog listing by base price, both ends inclusive.
// Nil bounds are open.
type PriceRange struct {
	Min *int64
	Max *int64
}

func bound(v int64) *int64 { return &v }

var priceRanges = map[string]PriceRange{
	"all":       {},
	"under-500": {Max: bound(499)},
	"500-1000":  {Min: bound(500), Max: bound(999)},
	"1000-2000": {Min: bound(1000), Max: bound(1999)},
	"2000-3000": {Min: bound(2000), Max: bound(2999)},
	"premium":   {Min: bound(3000)},
}

// ParsePriceRange maps a filter key to its bounds. The empty key means "all".
func ParsePriceRange(key string) (PriceRange, error) {
	if key == "" {
		return PriceRange{}, nil
	}
	r, ok := priceRanges[key]
	if !ok {
		return PriceRange{}, fmt.Errorf("unknown price range %q", key)
	}
	return r, nil
}
