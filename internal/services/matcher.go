package services

import (
	"strings"

	"order-ingestion-service/internal/models"
)

// MinPhoneDigits is how many trailing digits two phone numbers must share
const MinPhoneDigits = 6

// MatchTier is the confidence of a manifest reference resolution
type MatchTier int

const (
	TierNone MatchTier = iota
	TierExact
	TierFuzzy
	TierAmbiguous
)

func (t MatchTier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierFuzzy:
		return "fuzzy"
	case TierAmbiguous:
		return "ambiguous"
	default:
		return "none"
	}
}

// Signal is one relaxed predicate between a manifest row and an order
type Signal uint8

const (
	SignalName Signal = 1 << iota
	SignalPhone
	SignalCity
)

// MatchScore records which signals hold
type MatchScore struct {
	Signals Signal
}

// Has reports whether sig holds
func (s MatchScore) Has(sig Signal) bool {
	return s.Signals&sig != 0
}

// Count returns the number of signals that hold
func (s MatchScore) Count() int {
	n := 0
	for _, sig := range []Signal{SignalName, SignalPhone, SignalCity} {
		if s.Has(sig) {
			n++
		}
	}
	return n
}

// MatchPolicy decides when a score is good enough
type MatchPolicy struct {
	// MinSignals is how many signals a candidate needs
	MinSignals int
	// PartialTiesAreAmbiguous reports a reference as ambiguous when no candidate
	// reaches MinSignals but several orders share at least one signal
	PartialTiesAreAmbiguous bool
}

// DefaultMatchPolicy is the two-of-three rule
var DefaultMatchPolicy = MatchPolicy{MinSignals: 2, PartialTiesAreAmbiguous: true}

// ManifestRow is one line of a carrier shipping manifest
type ManifestRow struct {
	Reference string
	Carrier   string
	Tracking  string
	Name      string
	Phone     string
	City      string
}

// Candidate is one marketplace order (all of its items) with its best score
type Candidate struct {
	OrderID string
	Orders  []*models.Order
	Score   MatchScore
}

// MatchResult is the outcome of classifying one manifest row
type MatchResult struct {
	Tier      MatchTier
	Candidate *Candidate
	// Candidates holds every group that reached the policy threshold, or the
	// partial matches behind a partial tie
	Candidates []*Candidate
}

// Matcher scores manifest rows against stored orders
type Matcher struct {
	policy MatchPolicy
}

// NewMatcher creates a matcher; a MinSignals below 1 falls back to the default policy
func NewMatcher(policy MatchPolicy) *Matcher {
	if policy.MinSignals < 1 {
		policy = DefaultMatchPolicy
	}
	return &Matcher{policy: policy}
}

// Score evaluates the name, phone and city signals of row against order
func (m *Matcher) Score(row ManifestRow, order *models.Order) MatchScore {
	var score MatchScore
	if nameMatches(row.Name, order) {
		score.Signals |= SignalName
	}
	if PhonesMatch(row.Phone, order.Phone) {
		score.Signals |= SignalPhone
	}
	if equalNonEmpty(row.City, order.City) {
		score.Signals |= SignalCity
	}
	return score
}

// Classify groups orders by marketplace order id and applies the policy.
// Exactly one qualifying group is a fuzzy match; more than one is ambiguous and never auto-resolved.
func (m *Matcher) Classify(row ManifestRow, groups []*Candidate) MatchResult {
	var qualified, partial []*Candidate

	for _, group := range groups {
		var best MatchScore
		for _, order := range group.Orders {
			if s := m.Score(row, order); s.Count() > best.Count() {
				best = s
			}
		}
		if best.Count() == 0 {
			continue
		}

		scored := &Candidate{OrderID: group.OrderID, Orders: group.Orders, Score: best}
		if best.Count() >= m.policy.MinSignals {
			qualified = append(qualified, scored)
		} else {
			partial = append(partial, scored)
		}
	}

	switch {
	case len(qualified) == 1:
		return MatchResult{Tier: TierFuzzy, Candidate: qualified[0], Candidates: qualified}
	case len(qualified) > 1:
		return MatchResult{Tier: TierAmbiguous, Candidates: qualified}
	case m.policy.PartialTiesAreAmbiguous && len(partial) > 1:
		return MatchResult{Tier: TierAmbiguous, Candidates: partial}
	default:
		return MatchResult{Tier: TierNone}
	}
}

// GroupByOrderID builds one candidate per marketplace order id, in first-seen order
func GroupByOrderID(orders []models.Order) ([]*Candidate, map[string]*Candidate) {
	groups := make([]*Candidate, 0)
	index := make(map[string]*Candidate)

	for i := range orders {
		order := &orders[i]
		key := order.OrderID
		if key == "" {
			// items without an order id stand alone
			key = "\x00" + order.OrderItemID
		}
		group, ok := index[key]
		if !ok {
			group = &Candidate{OrderID: order.OrderID}
			if group.OrderID == "" {
				group.OrderID = order.OrderItemID
			}
			index[key] = group
			groups = append(groups, group)
		}
		group.Orders = append(group.Orders, order)
	}
	return groups, index
}

// NormalizePhone keeps only the ASCII digits of a phone number, dropping spaces,
// hyphens, plus signs, slashes and brackets
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r < '0' || r > '9' {
			return -1
		}
		return r
	}, phone)
}

// PhonesMatch reports whether both numbers have at least MinPhoneDigits digits
// and share the last MinPhoneDigits of them
func PhonesMatch(a, b string) bool {
	na, nb := NormalizePhone(a), NormalizePhone(b)
	if len(na) < MinPhoneDigits || len(nb) < MinPhoneDigits {
		return false
	}
	return na[len(na)-MinPhoneDigits:] == nb[len(nb)-MinPhoneDigits:]
}

func nameMatches(name string, order *models.Order) bool {
	full := strings.TrimSpace(order.FirstName + " " + order.LastName)
	return equalNonEmpty(name, full)
}

func equalNonEmpty(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && b != "" && strings.EqualFold(a, b)
}
