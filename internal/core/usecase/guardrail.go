package usecase

import (
	"math"
	"regexp"
	"strings"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

const keywordStepBonus = 0.05

type guardrailRule struct {
	category   domain.SensitiveCategory
	base       float64
	keywords   []string
	patterns   []*regexp.Regexp
	disclaimer string
	referral   string
}

var defaultGuardrailRules = []guardrailRule{
	{
		category: domain.CategoryEstatePlanning,
		base:     0.7,
		keywords: []string{"estate plan", "estate planning", "last will", "living trust", "irrevocable trust", "probate", "estate recovery", "power of attorney", "inheritance"},
		disclaimer: "This information is general and is not legal advice. Estate planning decisions can affect " +
			"Medicaid eligibility and estate recovery. Consult a qualified elder law attorney before acting.",
		referral: "Contact an elder law attorney through the National Academy of Elder Law Attorneys (naela.org) " +
			"or your state bar referral service.",
	},
	{
		category: domain.CategoryAssetTransfer,
		base:     0.8,
		keywords: []string{"transfer assets", "asset transfer", "transfer of assets", "gift money", "gifting", "give away", "give my house", "transfer my house", "transfer the house", "transfer property", "deed"},
		disclaimer: "Transferring assets can trigger a Medicaid penalty period and delay eligibility. " +
			"This information is general and is not legal or financial advice.",
		referral: "Speak with an elder law attorney or your local Medicaid eligibility office before transferring any assets.",
	},
	{
		category: domain.CategorySpendDown,
		base:     0.7,
		keywords: []string{"spend down", "spenddown", "medically needy", "excess income", "qualified income trust", "miller trust"},
		disclaimer: "Spend-down rules depend on your state and your individual circumstances. " +
			"Verify your calculation with your caseworker.",
		referral: "Your local Medicaid eligibility office can review your spend-down amount.",
	},
	{
		category: domain.CategorySpousalComplexity,
		base:     0.6,
		keywords: []string{"community spouse", "spousal impoverishment", "spousal allowance", "spousal refusal", "mmmna", "cspra", "divorce", "separated"},
		disclaimer: "Spousal impoverishment rules are complex and depend on the assessment date and both spouses' resources. " +
			"This information is general guidance only.",
		referral: "Request a resource assessment from your state Medicaid agency or consult an elder law attorney.",
	},
	{
		category: domain.CategoryAppeals,
		base:     0.75,
		keywords: []string{"appeal", "fair hearing", "denied", "denial", "overturn", "reconsideration", "adverse action"},
		disclaimer: "Appeal deadlines are strict. Missing a deadline can forfeit your right to a hearing. " +
			"Check the date on your notice immediately.",
		referral: "Contact your local legal aid office (lawhelp.org) for free help with a fair hearing.",
	},
	{
		category: domain.CategoryLookBackPeriod,
		base:     0.8,
		keywords: []string{"look back", "lookback", "five year", "5 year", "60 month", "penalty period"},
		disclaimer: "The look-back period reviews transfers made during the 60 months before application. " +
			"Penalties are calculated by the state and this information is not a determination.",
		referral: "Your local Medicaid eligibility office can explain how the look-back applies to your application.",
	},
}

func init() {
	for i := range defaultGuardrailRules {
		rule := &defaultGuardrailRules[i]
		rule.patterns = make([]*regexp.Regexp, 0, len(rule.keywords))
		for _, keyword := range rule.keywords {
			rule.patterns = append(rule.patterns, keywordPattern(keyword))
		}
	}
}

// keywordPattern matches the phrase on word boundaries. Words may be
// separated by whitespace or hyphens, so "look back" also matches "look-back"
// and "5 year" matches "5-year".
func keywordPattern(keyword string) *regexp.Regexp {
	words := strings.Fields(strings.ToLower(keyword))
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b` + strings.Join(words, `[\s-]+`) + `\b`)
}

// GuardrailAnnotator flags sensitive topics. The guardrail is informational:
// it never blocks a query.
type GuardrailAnnotator struct {
	rules []guardrailRule
}

func NewGuardrailAnnotator() *GuardrailAnnotator {
	return &GuardrailAnnotator{rules: defaultGuardrailRules}
}

func (g *GuardrailAnnotator) Check(query string) domain.GuardrailResult {
	result := domain.GuardrailResult{
		MatchedKeywords: []string{},
		ShouldProceed:   true,
	}

	var (
		best      *guardrailRule
		bestScore float64
		bestHits  []string
	)
	for i := range g.rules {
		rule := &g.rules[i]
		hits := matchKeywords(rule, query)
		if len(hits) == 0 {
			continue
		}
		score := math.Min(1, rule.base+keywordStepBonus*float64(len(hits)-1))
		// Rules are declared in tie-break order, so a strict comparison keeps the earlier category.
		if best == nil || score > bestScore {
			best, bestScore, bestHits = rule, score, hits
		}
	}
	if best == nil {
		return result
	}

	category := best.category
	result.IsSensitive = true
	result.Category = &category
	result.MatchedKeywords = bestHits
	result.Confidence = bestScore
	result.DisclaimerRequired = true
	result.Disclaimer = best.disclaimer
	result.Referral = best.referral
	return result
}

func matchKeywords(rule *guardrailRule, query string) []string {
	var hits []string
	for i, pattern := range rule.patterns {
		if pattern.MatchString(query) {
			hits = append(hits, rule.keywords[i])
		}
	}
	return hits
}

// Annotate appends the disclaimer and referral sections after the answer.
func (g *GuardrailAnnotator) Annotate(answer string, result domain.GuardrailResult) string {
	if !result.DisclaimerRequired || strings.TrimSpace(result.Disclaimer) == "" {
		return answer
	}
	var b strings.Builder
	b.WriteString(answer)
	b.WriteString("\n\n---\n**Disclaimer:** ")
	b.WriteString(result.Disclaimer)
	if strings.TrimSpace(result.Referral) != "" {
		b.WriteString("\n\n**Referral:** ")
		b.WriteString(result.Referral)
	}
	return b.String()
}
