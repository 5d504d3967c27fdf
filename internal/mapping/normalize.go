package mapping

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"order-ingestion-service/internal/models"
)

// SplitName takes the last whitespace-separated token as the last name and
// everything before it as the first name
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02",
}

// NormalizeISODate parses a date-time as exported by Amazon and re-emits it as RFC 3339 in UTC.
// Unparseable input is returned unchanged.
func NormalizeISODate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return s
}

// monthAbbreviations covers German and English export spellings
var monthAbbreviations = map[string]time.Month{
	"jan": time.January, "jän": time.January,
	"feb": time.February,
	"mär": time.March, "mrz": time.March, "mar": time.March,
	"apr": time.April,
	"mai": time.May, "may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September, "sept": time.September,
	"okt": time.October, "oct": time.October,
	"nov": time.November,
	"dez": time.December, "dec": time.December,
}

var (
	dottedDate = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4}|\d{2})\b`)
	monthDate  = regexp.MustCompile(`^(\p{L}{3,4})\.?-(\d{1,2})-(\d{4}|\d{2})\b`)
)

// NormalizeLocalDate parses "DD.MM.YYYY" or "Mon-DD-YYYY" (any trailing time is ignored)
// and returns midnight UTC of that day in RFC 3339. Unparseable input is returned unchanged.
func NormalizeLocalDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var day, year int
	var month time.Month

	if m := dottedDate.FindStringSubmatch(s); m != nil {
		day, _ = strconv.Atoi(m[1])
		mon, _ := strconv.Atoi(m[2])
		month = time.Month(mon)
		year, _ = strconv.Atoi(m[3])
	} else if m := monthDate.FindStringSubmatch(s); m != nil {
		mon, ok := monthAbbreviations[strings.ToLower(m[1])]
		if !ok {
			return s
		}
		month = mon
		day, _ = strconv.Atoi(m[2])
		year, _ = strconv.Atoi(m[3])
	} else {
		return s
	}

	if year < 100 {
		year += 2000
	}
	if month < time.January || month > time.December || day < 1 {
		return s
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31.02 into March; reject instead of guessing
	if t.Day() != day || t.Month() != month {
		return s
	}
	return t.Format(time.RFC3339)
}

// NormalizePrice strips currency symbols and whitespace, converts a German
// "1.234,56" into "1234.56" and returns a two-decimal fixed-point string.
// Unparseable input is returned unchanged.
func NormalizePrice(s string) string {
	original := s
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return original
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case lastComma >= 0:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return original
	}
	return amount.StringFixed(2)
}

// ParseQuantity returns the quantity or 1 when the value is missing, unparseable or below 1
func ParseQuantity(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return 1
		}
		return n
	}
	if d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1)); err == nil {
		if n := d.IntPart(); n >= 1 {
			return int(n)
		}
	}
	return 1
}

// CustomerTypeFor derives the customer type from the secondary address line
func CustomerTypeFor(secondaryAddress string) models.CustomerType {
	if strings.TrimSpace(secondaryAddress) != "" {
		return models.CustomerBusiness
	}
	return models.CustomerPrivate
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
