package matching

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"

	"payment-matching-backend/internal/models"
	"payment-matching-backend/internal/money"
)

// Scoring weights. Factors are additive and the total is capped at
// maxScore. The fuzzy name bonus always stays below the exact-name bonus.
const (
	weightReferenceExact    = 40
	weightReferenceContains = 30
	weightAmountExact       = 40
	weightAmountClose       = 35
	weightAmountPartial     = 10
	weightNameExact         = 20
	weightNameFuzzyMax      = 15
	weightChildFullName     = 20
	weightChildFirstName    = 15
	weightDateInPeriod      = 20

	maxScore = 100

	// Fuzzy similarity below this is treated as noise.
	fuzzyNameFloor = 0.5

	// One currency unit, in minor units.
	oneCurrencyUnitCents = 100
)

// Score rates how well a credit transaction fits an invoice. Pure and
// deterministic: identical inputs always yield identical score and
// reasons.
func Score(tx *models.Transaction, inv *models.Invoice, t Thresholds) (int, []string) {
	score := 0
	var reasons []string

	// Reference vs invoice number.
	ref := strings.ToLower(strings.TrimSpace(tx.Reference))
	num := strings.ToLower(strings.TrimSpace(inv.InvoiceNumber))
	if ref != "" && num != "" {
		if ref == num {
			score += weightReferenceExact
			reasons = append(reasons, "reference matches invoice number")
		} else if strings.Contains(ref, num) {
			score += weightReferenceContains
			reasons = append(reasons, "reference contains invoice number")
		}
	}

	// Amount vs outstanding.
	outstanding := inv.OutstandingCents()
	amount := tx.AmountCents
	switch {
	case outstanding > 0 && amount == outstanding:
		score += weightAmountExact
		reasons = append(reasons, "amount matches outstanding balance")
	case outstanding > 0 && (money.WithinPercent(amount, outstanding, t.AmountTolerancePct) || absInt64(amount-outstanding) <= oneCurrencyUnitCents):
		score += weightAmountClose
		reasons = append(reasons, "amount within tolerance of outstanding balance")
	case amount > 0 && amount < outstanding:
		score += weightAmountPartial
		reasons = append(reasons, "plausible partial payment")
	}

	// Payer name vs responsible party.
	if bonus, reason := namePoints(tx, inv.ParentName); bonus > 0 {
		score += bonus
		reasons = append(reasons, reason)
	}

	// Child name in the free-text description.
	if bonus, reason := childNamePoints(tx.Description, inv.ChildFirstName, inv.ChildLastName); bonus > 0 {
		score += bonus
		reasons = append(reasons, reason)
	}

	// Transaction date vs billing period / due date.
	if inPeriod(tx.TransactionDate, inv, t.DueGraceDays) {
		score += weightDateInPeriod
		reasons = append(reasons, "date within billing period")
	}

	if score > maxScore {
		score = maxScore
	}
	return score, reasons
}

func namePoints(tx *models.Transaction, parentName string) (int, string) {
	target := normalizeName(parentName)
	if target == "" {
		return 0, ""
	}

	best := 0.0
	for _, raw := range []string{tx.PayeeName, ExtractPayerName(tx.Description)} {
		candidate := normalizeName(raw)
		if candidate == "" {
			continue
		}
		if candidate == target {
			return weightNameExact, "payer name matches responsible party"
		}
		if sim := nameSimilarity(candidate, target); sim > best {
			best = sim
		}
	}

	if best < fuzzyNameFloor {
		return 0, ""
	}
	bonus := int(math.Round(best * weightNameFuzzyMax))
	if bonus >= weightNameExact {
		bonus = weightNameFuzzyMax
	}
	if bonus <= 0 {
		return 0, ""
	}
	return bonus, fmt.Sprintf("payer name similar to responsible party (%.2f)", best)
}

func childNamePoints(description, firstName, lastName string) (int, string) {
	desc := normalizeName(description)
	first := normalizeName(firstName)
	if desc == "" || first == "" {
		return 0, ""
	}

	last := normalizeName(lastName)
	if last != "" && strings.Contains(desc, first+" "+last) {
		return weightChildFullName, "description contains child full name"
	}
	if containsWord(desc, first) {
		return weightChildFirstName, "description contains child first name"
	}
	return 0, ""
}

func inPeriod(date time.Time, inv *models.Invoice, graceDays int) bool {
	if !inv.PeriodStart.IsZero() && !inv.PeriodEnd.IsZero() &&
		!date.Before(inv.PeriodStart) && !date.After(inv.PeriodEnd) {
		return true
	}
	if inv.DueDate.IsZero() {
		return false
	}
	diff := date.Sub(inv.DueDate)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(graceDays)*24*time.Hour
}

// nameSimilarity is a normalized edit-distance similarity in [0,1]:
// per invoice-name token, the best match across transaction tokens.
func nameSimilarity(a, b string) float64 {
	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)
	if len(bTokens) == 0 || len(aTokens) == 0 {
		return 0
	}

	total := 0.0
	for _, bt := range bTokens {
		best := 0.0
		for _, at := range aTokens {
			dist := levenshtein.ComputeDistance(at, bt)
			maxLen := float64(len(at))
			if len(bt) > len(at) {
				maxLen = float64(len(bt))
			}
			if maxLen == 0 {
				continue
			}
			if sim := 1 - float64(dist)/maxLen; sim > best {
				best = sim
			}
		}
		total += best
	}
	return total / float64(len(bTokens))
}

// Bank-statement phrasings stripped before name comparison. Longer
// prefixes must come before their shorter variants.
var descriptionPrefixes = []string{
	"PAYMENT RECEIVED FROM",
	"PAYMENT FROM",
	"PAYMENT BY",
	"PAYMENT",
	"CASH DEPOSIT BRANCH",
	"CASH DEPOSIT",
	"CASH DEP",
	"DEPOSIT FROM",
	"DEPOSIT",
	"TRANSFER FROM",
	"INTERNET TRANSFER FROM",
	"INTERNET TRANSFER",
	"TRANSFER",
	"EFT FROM",
	"EFT",
	"POS PURCHASE",
	"TELLER",
	"ATM",
	"IB",
}

// ExtractPayerName pulls a comparable payer name out of a free-text bank
// description: known statement prefixes and account-number tokens are
// stripped, the remainder is treated as the name.
func ExtractPayerName(description string) string {
	s := normalizeName(description)
	if s == "" {
		return ""
	}

	for changed := true; changed; {
		changed = false
		for _, p := range descriptionPrefixes {
			if strings.HasPrefix(s, p+" ") {
				s = strings.TrimSpace(strings.TrimPrefix(s, p+" "))
				changed = true
			} else if s == p {
				return ""
			}
		}
	}

	// Drop account-number style tokens.
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if containsDigit(f) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func normalizeName(s string) string {
	s = strings.ToUpper(s)
	s = strings.NewReplacer(".", "", ",", "", "-", " ", "/", " ", ":", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func containsWord(haystack, word string) bool {
	for _, f := range strings.Fields(haystack) {
		if f == word {
			return true
		}
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
