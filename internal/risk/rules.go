package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/towerclub/ambassador-server/internal/referrals"
)

// Rule identifiers. Stable strings stored inside assessments, do not rename.
const (
	RuleDuplicatePhone    = "duplicate_phone"
	RuleSimilarPhone      = "similar_phone"
	RuleSimilarEmail      = "similar_email"
	RuleSimilarName       = "similar_name"
	RuleRapidSignup       = "rapid_signup"
	RuleSuspiciousName    = "suspicious_name"
	RuleSuspiciousPhone   = "suspicious_phone"
	RuleSameIP            = "same_ip"
	RuleSameDevice        = "same_device"
	RuleSequentialEmails  = "sequential_email_pattern"
	RuleCoordinatedSignup = "coordinated_signup"
	RuleSuspiciousCombo   = "suspicious_combination"
)

// ruleDef is one catalog entry.
type ruleDef struct {
	ID     string
	Name   string
	Weight int
}

var ruleCatalog = map[string]ruleDef{
	RuleDuplicatePhone:    {RuleDuplicatePhone, "Duplicate phone number", 30},
	RuleSimilarPhone:      {RuleSimilarPhone, "Near-identical phone number", 20},
	RuleSimilarEmail:      {RuleSimilarEmail, "Similar email address", 25},
	RuleSimilarName:       {RuleSimilarName, "Similar referred name", 15},
	RuleRapidSignup:       {RuleRapidSignup, "Rapid successive signup", 15},
	RuleSuspiciousName:    {RuleSuspiciousName, "Placeholder or fake name", 10},
	RuleSuspiciousPhone:   {RuleSuspiciousPhone, "Structurally fake phone", 15},
	RuleSameIP:            {RuleSameIP, "Shared signup IP", 10},
	RuleSameDevice:        {RuleSameDevice, "Shared device fingerprint", 15},
	RuleSequentialEmails:  {RuleSequentialEmails, "Sequential email pattern", 20},
	RuleCoordinatedSignup: {RuleCoordinatedSignup, "Coordinated signup cluster", 25},
	RuleSuspiciousCombo:   {RuleSuspiciousCombo, "Suspicious phone/email combination", 10},
}

const (
	emailSimilarityThreshold = 0.7
	nameDistanceThreshold    = 3
	phoneDistanceThreshold   = 2

	sameIPCap     = 30
	sameDeviceCap = 45
)

// Evaluator scores referrals against the rule catalog.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate runs pairwise and batch rules over the scope and returns one result
// per referral, clamped to [0,100], in the input order. The result is fully
// determined by the scope contents.
func (e *Evaluator) Evaluate(scope []*referrals.ReferralRecord) []Evaluation {
	results := make([]Evaluation, len(scope))

	sortedByTime := make([]*referrals.ReferralRecord, len(scope))
	copy(sortedByTime, scope)
	sort.Slice(sortedByTime, func(i, j int) bool {
		return sortedByTime[i].CreatedAt.Before(sortedByTime[j].CreatedAt)
	})
	predecessor := make(map[string]time.Time, len(scope))
	for i := 1; i < len(sortedByTime); i++ {
		predecessor[sortedByTime[i].ID.String()] = sortedByTime[i-1].CreatedAt
	}

	ipClusters := clusterSizes(scope, func(r *referrals.ReferralRecord) *string { return r.SignupIP })
	deviceClusters := clusterSizes(scope, func(r *referrals.ReferralRecord) *string { return r.DeviceFingerprint })

	groups := CrossChannelGroups(scope)
	batch := e.batchRules(scope, groups)

	for i, rec := range scope {
		ev := Evaluation{Record: rec}
		e.pairwiseRules(&ev, rec, scope)
		e.selfRules(&ev, rec)
		e.clusterRule(&ev, RuleSameIP, rec.SignupIP, ipClusters, sameIPCap)
		e.clusterRule(&ev, RuleSameDevice, rec.DeviceFingerprint, deviceClusters, sameDeviceCap)
		if prev, ok := predecessor[rec.ID.String()]; ok && rec.CreatedAt.Sub(prev) < rapidSignupWindow {
			ev.attach(ruleCatalog[RuleRapidSignup], fmt.Sprintf("signed up %s after previous referral", rec.CreatedAt.Sub(prev).Round(time.Second)))
		}
		ev.Rules = append(ev.Rules, batch...)
		for _, r := range batch {
			ev.Score += r.Weight
		}
		if ev.Score > 100 {
			ev.Score = 100
		}
		results[i] = ev
	}
	return results
}

// Evaluation is the outcome for one referral.
type Evaluation struct {
	Record *referrals.ReferralRecord
	Score  int
	Rules  []TriggeredRule
}

func (ev *Evaluation) attach(def ruleDef, detail string) {
	ev.Rules = append(ev.Rules, TriggeredRule{
		RuleID: def.ID,
		Name:   def.Name,
		Weight: def.Weight,
		Detail: detail,
	})
	ev.Score += def.Weight
}

// pairwiseRules compares rec against every other referral in scope. Each rule
// family attaches at most once: the first matching peer wins so a large
// duplicate cluster cannot stack the same weight repeatedly.
func (e *Evaluator) pairwiseRules(ev *Evaluation, rec *referrals.ReferralRecord, scope []*referrals.ReferralRecord) {
	var (
		phoneDone, emailDone, nameDone bool
		recPhone                       string
		recPhoneOK                     bool
	)
	if rec.ReferredPhone != nil {
		recPhone, recPhoneOK = NormalizePhone(*rec.ReferredPhone)
	}

	for _, other := range scope {
		if other.ID == rec.ID {
			continue
		}

		if !phoneDone && recPhoneOK && other.ReferredPhone != nil {
			if otherPhone, ok := NormalizePhone(*other.ReferredPhone); ok {
				if dist, ok := DigitDistance(recPhone, otherPhone); ok {
					if dist == 0 {
						ev.attach(ruleCatalog[RuleDuplicatePhone], fmt.Sprintf("matches referral %s", other.ID))
						phoneDone = true
					} else if dist <= phoneDistanceThreshold {
						ev.attach(ruleCatalog[RuleSimilarPhone], fmt.Sprintf("within %d digits of referral %s", dist, other.ID))
						phoneDone = true
					}
				}
			}
		}

		if !emailDone && rec.ReferredEmail != nil && other.ReferredEmail != nil {
			localA, _ := NormalizeEmail(*rec.ReferredEmail)
			localB, _ := NormalizeEmail(*other.ReferredEmail)
			if localA != "" && localB != "" && Similarity(EmailLocalBase(localA), EmailLocalBase(localB)) > emailSimilarityThreshold {
				ev.attach(ruleCatalog[RuleSimilarEmail], fmt.Sprintf("resembles email of referral %s", other.ID))
				emailDone = true
			}
		}

		if !nameDone && rec.ReferredName != nil && other.ReferredName != nil {
			if *rec.ReferredName != "" && *other.ReferredName != "" &&
				EditDistance(*rec.ReferredName, *other.ReferredName) <= nameDistanceThreshold {
				ev.attach(ruleCatalog[RuleSimilarName], fmt.Sprintf("resembles name of referral %s", other.ID))
				nameDone = true
			}
		}

		if phoneDone && emailDone && nameDone {
			break
		}
	}
}

func (e *Evaluator) selfRules(ev *Evaluation, rec *referrals.ReferralRecord) {
	if rec.ReferredName != nil && IsSuspiciousName(*rec.ReferredName) {
		ev.attach(ruleCatalog[RuleSuspiciousName], *rec.ReferredName)
	}
	if rec.ReferredPhone != nil && IsSuspiciousPhone(*rec.ReferredPhone) {
		ev.attach(ruleCatalog[RuleSuspiciousPhone], "structurally fake digit sequence")
	}
}

// clusterRule scales the rule weight by (cluster size - 1), capped.
func (e *Evaluator) clusterRule(ev *Evaluation, ruleID string, value *string, clusters map[string]int, ceiling int) {
	if value == nil || *value == "" {
		return
	}
	size := clusters[*value]
	if size < 2 {
		return
	}
	def := ruleCatalog[ruleID]
	weight := def.Weight * (size - 1)
	if weight > ceiling {
		weight = ceiling
	}
	ev.Rules = append(ev.Rules, TriggeredRule{
		RuleID: def.ID,
		Name:   def.Name,
		Weight: weight,
		Detail: fmt.Sprintf("shared by %d referrals", size),
	})
	ev.Score += weight
}

// batchRules returns whole-cohort rules applied to every referral in scope.
func (e *Evaluator) batchRules(scope []*referrals.ReferralRecord, groups map[string][]*referrals.ReferralRecord) []TriggeredRule {
	var out []TriggeredRule
	if HasSequentialEmailPattern(scope) {
		def := ruleCatalog[RuleSequentialEmails]
		out = append(out, TriggeredRule{RuleID: def.ID, Name: def.Name, Weight: def.Weight, Detail: "near-consecutive numeric email suffixes in scope"})
	}
	if HasCoordinatedGroup(groups) {
		def := ruleCatalog[RuleCoordinatedSignup]
		out = append(out, TriggeredRule{RuleID: def.ID, Name: def.Name, Weight: def.Weight, Detail: "3+ referrals share phone prefix and email domain"})
	} else if HasSuspiciousCombination(groups) {
		def := ruleCatalog[RuleSuspiciousCombo]
		out = append(out, TriggeredRule{RuleID: def.ID, Name: def.Name, Weight: def.Weight, Detail: "2 referrals share phone prefix and email domain"})
	}
	return out
}

func clusterSizes(scope []*referrals.ReferralRecord, key func(*referrals.ReferralRecord) *string) map[string]int {
	sizes := make(map[string]int)
	for _, rec := range scope {
		if v := key(rec); v != nil && *v != "" {
			sizes[*v]++
		}
	}
	return sizes
}

// Fallback scoring brackets: number of distinct coarse signals present in the
// scope mapped to a base score.
var fallbackBrackets = []int{0, 15, 35, 55, 75}

const fallbackDuplicatePhoneBonus = 10

// FallbackEvaluate scores the whole scope from coarse pattern counts only. It
// is fully deterministic and used for lightweight ad-hoc analysis where no
// pairwise detail or narrative is wanted.
func (e *Evaluator) FallbackEvaluate(scope []*referrals.ReferralRecord) (int, []string) {
	var signals []string

	if HasSequentialEmailPattern(scope) {
		signals = append(signals, RuleSequentialEmails)
	}
	if RapidSignupCount(scope) > 0 {
		signals = append(signals, RuleRapidSignup)
	}
	suspiciousNames := 0
	suspiciousPhones := 0
	for _, rec := range scope {
		if rec.ReferredName != nil && IsSuspiciousName(*rec.ReferredName) {
			suspiciousNames++
		}
		if rec.ReferredPhone != nil && IsSuspiciousPhone(*rec.ReferredPhone) {
			suspiciousPhones++
		}
	}
	if suspiciousNames > 0 {
		signals = append(signals, RuleSuspiciousName)
	}
	if suspiciousPhones > 0 {
		signals = append(signals, RuleSuspiciousPhone)
	}
	groups := CrossChannelGroups(scope)
	if HasSuspiciousCombination(groups) {
		signals = append(signals, RuleSuspiciousCombo)
	}

	bracket := len(signals)
	if bracket >= len(fallbackBrackets) {
		bracket = len(fallbackBrackets) - 1
	}
	score := fallbackBrackets[bracket]

	if hasDuplicatePhoneGroup(scope) {
		score += fallbackDuplicatePhoneBonus
		signals = append(signals, RuleDuplicatePhone)
	}
	if score > 100 {
		score = 100
	}
	return score, signals
}

func hasDuplicatePhoneGroup(scope []*referrals.ReferralRecord) bool {
	seen := make(map[string]bool)
	for _, rec := range scope {
		if rec.ReferredPhone == nil {
			continue
		}
		phone, ok := NormalizePhone(*rec.ReferredPhone)
		if !ok {
			continue
		}
		if seen[phone] {
			return true
		}
		seen[phone] = true
	}
	return false
}
