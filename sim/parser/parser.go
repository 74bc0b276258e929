// Package parser turns an operator LLM reply into a structured Action.
// Matching is deliberately strict: the closed templates from the operator
// prompt, or UNKNOWN. Malformed input is data, never an error.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	contractx "github.com/openvend/vendsim/sim/contract"
)

var (
	buyPattern      = regexp.MustCompile(`(?i)Action: BUY, Item: '([^']*)', Quantity: (\d+)`)
	pricePattern    = regexp.MustCompile(`(?i)Action: UPDATE_PRICE, Item: '([^']*)', Price: ([\d.]+)`)
	discountPattern = regexp.MustCompile(`(?i)Action: OFFER_DISCOUNT, Item: '([^']*)', Discount: (\d+)%`)
)

// Parse maps free text onto the closed action set. DO_NOTHING is checked
// first since models tend to embed it in prose; the structured templates are
// then tried in BUY, UPDATE_PRICE, OFFER_DISCOUNT order and the first match
// wins.
func Parse(response string) contractx.Action {
	response = strings.TrimSpace(response)

	if strings.Contains(response, "DO_NOTHING") {
		return contractx.Action{Type: contractx.ActionDoNothing}
	}

	if m := buyPattern.FindStringSubmatch(response); m != nil {
		if quantity, err := strconv.Atoi(m[2]); err == nil && quantity > 0 {
			return contractx.Action{
				Type:     contractx.ActionBuy,
				ItemName: m[1],
				Quantity: quantity,
			}
		}
	}

	if m := pricePattern.FindStringSubmatch(response); m != nil {
		if price, err := strconv.ParseFloat(m[2], 64); err == nil && price > 0 {
			return contractx.Action{
				Type:     contractx.ActionUpdatePrice,
				ItemName: m[1],
				Price:    price,
			}
		}
	}

	if m := discountPattern.FindStringSubmatch(response); m != nil {
		if pct, err := strconv.Atoi(m[2]); err == nil && pct >= 0 && pct <= 100 {
			return contractx.Action{
				Type:        contractx.ActionOfferDiscount,
				ItemName:    m[1],
				DiscountPct: pct,
			}
		}
	}

	return contractx.Action{
		Type:    contractx.ActionUnknown,
		RawText: response,
	}
}
