package ledger

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/cppla/carbontrack/catalog"
)

// FallbackPolicy decides what registerScan does with a code the catalog
// does not know.
type FallbackPolicy string

const (
	// FallbackRandom substitutes a uniformly chosen product (demo behaviour).
	FallbackRandom FallbackPolicy = "random"
	// FallbackFirst substitutes the first product in catalog order.
	FallbackFirst FallbackPolicy = "first"
	// FallbackReject fails with ErrUnknownCode.
	FallbackReject FallbackPolicy = "reject"
)

// ParseFallbackPolicy accepts the config spelling of a policy.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch p := FallbackPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return FallbackRandom, nil
	case FallbackRandom, FallbackFirst, FallbackReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown scan fallback policy %q", s)
	}
}

// pick resolves the substitute product. ok is false when the policy rejects
// or there is nothing to substitute.
func (p FallbackPolicy) pick(products []catalog.Product, intn func(int) int) (catalog.Product, bool) {
	if len(products) == 0 {
		return catalog.Product{}, false
	}
	switch p {
	case FallbackFirst:
		return products[0], true
	case FallbackReject:
		return catalog.Product{}, false
	default:
		if intn == nil {
			intn = rand.IntN
		}
		return products[intn(len(products))], true
	}
}

// PaymentMethod selects how an offset is paid for.
type PaymentMethod string

const (
	PayWithPoints PaymentMethod = "points"
	PayWithToken  PaymentMethod = "token"
)

// ParsePaymentMethod validates a wire value.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case PayWithPoints, PayWithToken:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
	}
}
