package extraction

import (
	"fmt"
	"sort"
	"strings"

	"planextract/internal/domain"
)

// System texts sent with each stage.
const (
	SystemExtraction     = "You are a precise benefits-document extraction assistant."
	SystemPlanIdentifier = "You are a precise, deterministic parser. Output only <index>::Plans::<LOC>::<Plan Name>::$0.00::<page_ref> lines."
	SystemPerPlan        = "You are a precise, deterministic parser. Return ONLY the extraction text for this plan. No extra commentary."
)

const (
	classificationSlot = "<Classification Output></Classification Output>"
	keyParameterSlot   = "<Key Parameter Output></Key Parameter Output>"
	locToken           = "{{LOC}}"
)

var planNameListSlots = []string{
	"<Plan_Name_List></Plan_Name_List>",
	"<Plan Name List></Plan Name List>",
}

// planNameTokens are tried in order; only the first one present is filled.
var planNameTokens = []string{
	"{{plan_name}}",
	"{{PLAN_NAME}}",
	"<PlanName></PlanName>",
	"<Plan Name></Plan Name>",
}

// InjectPlanNameList fills the plan-name list slot with the sorted, unique,
// newline-joined names.
func InjectPlanNameList(tmpl string, names []string) string {
	seen := make(map[string]bool, len(names))
	var unique []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		unique = append(unique, n)
	}
	sort.Strings(unique)
	list := strings.Join(unique, "\n")

	for _, slot := range planNameListSlots {
		if !strings.Contains(tmpl, slot) {
			continue
		}
		open, closing := splitTag(slot)
		tmpl = strings.ReplaceAll(tmpl, slot, open+list+closing)
	}
	return tmpl
}

// InjectPlanIdentification inlines the classification and key-parameter
// outputs once each and substitutes every LOC token.
func InjectPlanIdentification(tmpl, classification, keyParams string, locs []domain.LOC) string {
	if strings.Contains(tmpl, classificationSlot) {
		tmpl = strings.Replace(tmpl, classificationSlot,
			"<Classification Output>"+classification+"</Classification Output>", 1)
	}
	if strings.Contains(tmpl, keyParameterSlot) {
		tmpl = strings.Replace(tmpl, keyParameterSlot,
			"<Key Parameter Output>"+keyParams+"</Key Parameter Output>", 1)
	}
	return strings.ReplaceAll(tmpl, locToken, strings.Join(locs, ", "))
}

// InjectPlanName substitutes the first plan-name token kind found in tmpl.
// Either tag token becomes <PlanName>name</PlanName>.
func InjectPlanName(tmpl, planName string) string {
	for _, token := range planNameTokens {
		if !strings.Contains(tmpl, token) {
			continue
		}
		if strings.HasPrefix(token, "{{") {
			return strings.ReplaceAll(tmpl, token, planName)
		}
		return strings.ReplaceAll(tmpl, token, "<PlanName>"+planName+"</PlanName>")
	}
	return tmpl
}

// BuildMatchPrompt asks whether query names one of candidates.
func BuildMatchPrompt(candidates []string, query string) string {
	quoted := make([]string, len(candidates))
	for i, c := range candidates {
		quoted[i] = fmt.Sprintf("'%s'", c)
	}
	return "Given this list [" + strings.Join(quoted, ", ") + "].\n\n" +
		"Question: Is " + query + " in the list?\n\n" +
		"Guidelines to answer Question:\n" +
		"- Search for semantic meaning (treat punctuation/dashes/extra spaces as equivalent).\n" +
		"- If it is in the list, return exactly the matching plan from the list.\n" +
		"- Otherwise return \"" + NoMatch + "\".\n" +
		"Your response must be a single string: either the plan name from the list or \"" + NoMatch + "\"."
}

// splitTag splits an empty "<X></X>" slot into its opening and closing tags.
func splitTag(slot string) (string, string) {
	i := strings.Index(slot, "></")
	return slot[:i+1], slot[i+1:]
}
