package risk

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/towerclub/ambassador-server/internal/referrals"
)

const (
	// rapidSignupWindow is the gap under which two adjacent signups count as rapid
	rapidSignupWindow = 5 * time.Minute

	// sequentialEmailMinScope is the minimum number of referrals before the
	// sequential-email detector is meaningful
	sequentialEmailMinScope = 5
	// sequentialEmailMinSuffixes is the minimum number of digit-suffixed locals required
	sequentialEmailMinSuffixes = 3
	// sequentialEmailMaxGap is the largest suffix gap still considered adjacent
	sequentialEmailMaxGap = 2
	// sequentialEmailMinPairs is the number of adjacent pairs needed to flag
	sequentialEmailMinPairs = 2

	// crossChannelPrefixLen is the normalized-phone prefix length used for grouping
	crossChannelPrefixLen = 5
	// coordinatedGroupSize is the group size treated as a coordinated signup cluster
	coordinatedGroupSize = 3
	// suspiciousComboSize is the group size already counted as a suspicious combination
	suspiciousComboSize = 2
)

var (
	fillerNameRe   = regexp.MustCompile(`(?i)^(test|fake|dummy|sample|temp|asdf|qwerty|user|none|xxx)[0-9]*$`)
	numericNameRe  = regexp.MustCompile(`^[0-9]{4,}$`)
	emailSuffixRe  = regexp.MustCompile(`([0-9]+)$`)
	leadingZerosRe = regexp.MustCompile(`^0{5,}`)
)

// HasSequentialEmailPattern reports whether the scope's email local parts carry
// near-consecutive numeric suffixes ("user1", "user2", ...). It needs at least
// five referrals in scope and three digit-suffixed locals before it fires.
func HasSequentialEmailPattern(records []*referrals.ReferralRecord) bool {
	if len(records) < sequentialEmailMinScope {
		return false
	}

	suffixes := make([]int, 0, len(records))
	for _, rec := range records {
		if rec.ReferredEmail == nil {
			continue
		}
		local, _ := NormalizeEmail(*rec.ReferredEmail)
		m := emailSuffixRe.FindStringSubmatch(local)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			suffixes = append(suffixes, n)
		}
	}
	if len(suffixes) < sequentialEmailMinSuffixes {
		return false
	}

	sort.Ints(suffixes)
	adjacent := 0
	for i := 1; i < len(suffixes); i++ {
		if suffixes[i]-suffixes[i-1] <= sequentialEmailMaxGap {
			adjacent++
		}
	}
	return adjacent >= sequentialEmailMinPairs
}

// RapidSignupCount returns the number of adjacent signup pairs closer than the
// rapid-signup window, ordered by signup time.
func RapidSignupCount(records []*referrals.ReferralRecord) int {
	if len(records) < 2 {
		return 0
	}

	times := make([]time.Time, len(records))
	for i, rec := range records {
		times[i] = rec.CreatedAt
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	pairs := 0
	for i := 1; i < len(times); i++ {
		if times[i].Sub(times[i-1]) < rapidSignupWindow {
			pairs++
		}
	}
	return pairs
}

// IsSuspiciousName flags placeholder names: literal filler tokens, purely
// numeric "names" of four or more digits, and runs of three or more repeated
// non-Latin filler characters.
func IsSuspiciousName(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false
	}
	if fillerNameRe.MatchString(trimmed) || numericNameRe.MatchString(trimmed) {
		return true
	}

	// Repeated non-Latin filler, e.g. "ـــ" padding
	var prev rune
	run := 1
	for _, r := range trimmed {
		if r == prev && nameFillerRune(r) {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 1
		}
		prev = r
	}
	return false
}

// arabicTatweel is the kashida elongation mark, a modifier letter by Unicode
// category, so a plain letter test does not catch it.
const arabicTatweel = '\u0640'

func nameFillerRune(r rune) bool {
	if r == arabicTatweel {
		return true
	}
	return r > unicode.MaxASCII && !unicode.IsLetter(r)
}

// IsSuspiciousPhone flags structurally fake numbers on the raw digit sequence:
// one digit repeated seven or more times, canonical seven-digit ascending or
// descending runs, five or more leading zeros, and a multi-digit group
// repeated three or more times back to back.
func IsSuspiciousPhone(raw string) bool {
	digits := digitsOnly(raw)
	if digits == "" {
		return false
	}

	if leadingZerosRe.MatchString(digits) {
		return true
	}
	if longestDigitRun(digits) >= 7 {
		return true
	}
	if hasSequentialRun(digits, 7) {
		return true
	}
	return hasRepeatedGroup(digits)
}

// longestDigitRun returns the length of the longest run of one repeated digit.
// Go's RE2 engine has no backreferences, so the run is scanned directly.
func longestDigitRun(digits string) int {
	longest, run := 1, 1
	for i := 1; i < len(digits); i++ {
		if digits[i] == digits[i-1] {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 1
		}
	}
	return longest
}

// hasSequentialRun reports whether digits contain an ascending or descending
// consecutive run of at least n digits ("1234567", "9876543").
func hasSequentialRun(digits string, n int) bool {
	if len(digits) < n {
		return false
	}
	asc, desc := 1, 1
	for i := 1; i < len(digits); i++ {
		diff := int(digits[i]) - int(digits[i-1])
		if diff == 1 {
			asc++
			desc = 1
		} else if diff == -1 {
			desc++
			asc = 1
		} else {
			asc, desc = 1, 1
		}
		if asc >= n || desc >= n {
			return true
		}
	}
	return false
}

// hasRepeatedGroup reports whether a group of 2-4 digits repeats three or more
// times consecutively ("121212", "456456456").
func hasRepeatedGroup(digits string) bool {
	for size := 2; size <= 4; size++ {
		if len(digits) < size*3 {
			continue
		}
		for start := 0; start+size*3 <= len(digits); start++ {
			group := digits[start : start+size]
			if digits[start+size:start+2*size] == group && digits[start+2*size:start+3*size] == group {
				return true
			}
		}
	}
	return false
}

// CrossChannelGroups buckets referrals by normalized phone prefix plus email
// domain. Referrals missing either channel never join a group.
func CrossChannelGroups(records []*referrals.ReferralRecord) map[string][]*referrals.ReferralRecord {
	groups := make(map[string][]*referrals.ReferralRecord)
	for _, rec := range records {
		if rec.ReferredPhone == nil || rec.ReferredEmail == nil {
			continue
		}
		phone, ok := NormalizePhone(*rec.ReferredPhone)
		if !ok {
			continue
		}
		_, domain := NormalizeEmail(*rec.ReferredEmail)
		if domain == "" {
			continue
		}
		prefix := phone
		if len(prefix) > crossChannelPrefixLen {
			prefix = prefix[:crossChannelPrefixLen]
		}
		key := prefix + "|" + domain
		groups[key] = append(groups[key], rec)
	}
	return groups
}

// HasCoordinatedGroup reports whether any cross-channel group reaches the
// coordinated-signup size.
func HasCoordinatedGroup(groups map[string][]*referrals.ReferralRecord) bool {
	for _, members := range groups {
		if len(members) >= coordinatedGroupSize {
			return true
		}
	}
	return false
}

// HasSuspiciousCombination reports whether any cross-channel group reaches the
// smaller suspicious-combination size.
func HasSuspiciousCombination(groups map[string][]*referrals.ReferralRecord) bool {
	for _, members := range groups {
		if len(members) >= suspiciousComboSize {
			return true
		}
	}
	return false
}
