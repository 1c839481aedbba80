package cue

import "strings"

// eightKItems is the Form 8-K item table. Each item becomes an event cue
// named <topic>_<code without the dot>, located by its item caption.
var eightKItems = []struct {
	code, topic, title string
}{
	{"1.01", "material_agreement", "Entry into a Material Definitive Agreement"},
	{"1.02", "agreement_termination", "Termination of a Material Definitive Agreement"},
	{"1.03", "bankruptcy", "Bankruptcy or Receivership"},
	{"1.05", "cybersecurity_incident", "Material Cybersecurity Incidents"},
	{"2.01", "acquisition_disposition", "Completion of Acquisition or Disposition of Assets"},
	{"2.02", "results_of_operations", "Results of Operations and Financial Condition"},
	{"2.03", "direct_obligation", "Creation of a Direct Financial Obligation"},
	{"2.04", "triggering_event", "Triggering Events That Accelerate or Increase a Direct Financial Obligation"},
	{"2.05", "exit_costs", "Costs Associated with Exit or Disposal Activities"},
	{"2.06", "impairment", "Material Impairments"},
	{"3.01", "delisting", "Notice of Delisting or Failure to Satisfy a Continued Listing Rule or Standard"},
	{"3.02", "unregistered_sales", "Unregistered Sales of Equity Securities"},
	{"3.03", "rights_modification", "Material Modification to Rights of Security Holders"},
	{"4.01", "accountant_change", "Changes in Registrant's Certifying Accountant"},
	{"4.02", "restatement", "Non-Reliance on Previously Issued Financial Statements or a Related Audit Report or Completed Interim Review"},
	{"5.01", "control_change", "Changes in Control of Registrant"},
	{"5.02", "director_officer_change", "Departure of Directors or Certain Officers; Election of Directors; Appointment of Certain Officers"},
	{"5.03", "bylaws_amendment", "Amendments to Articles of Incorporation or Bylaws; Change in Fiscal Year"},
	{"5.07", "shareholder_vote", "Submission of Matters to a Vote of Security Holders"},
	{"7.01", "reg_fd", "Regulation FD Disclosure"},
	{"8.01", "other_events", "Other Events"},
	{"9.01", "financial_statements_exhibits", "Financial Statements and Exhibits"},
}

// itemOverrides adds content rules to item cues whose caption alone is not
// the signal.
var itemOverrides = map[string]Cue{
	"4.02": {
		Headings: []string{"Non-Reliance on Previously Issued Financial Statements"},
		Patterns: []string{
			`no\s+longer\s+(?:be\s+)?relied\s+upon`,
			`should\s+not\s+be\s+relied\s+upon`,
			`non-?\s*reliance`,
		},
		Required: []string{
			`non-?\s*reliance|previously\s+issued\s+financial\s+statements|item\s+4\.02|restate`,
		},
	},
	"4.01": {
		Patterns: []string{`dismiss(?:ed|al)`, `resign(?:ed|ation)`, `declin(?:ed|e)\s+to\s+stand`},
		Required: []string{`accountant|accounting\s+firm|auditor`},
	},
}

func itemCues() []Cue {
	out := make([]Cue, 0, len(eightKItems))
	for _, it := range eightKItems {
		c := Cue{
			Name:        it.topic + "_" + strings.ReplaceAll(it.code, ".", ""),
			Description: "Form 8-K Item " + it.code + ": " + it.title,
			Kind:        KindEvent,
			Headings:    []string{"Item " + it.code},
			Patterns:    []string{`\bitem\s+` + strings.ReplaceAll(it.code, ".", `\.`) + `\b`},
		}
		if o, ok := itemOverrides[it.code]; ok {
			c.Headings = append(c.Headings, o.Headings...)
			c.Patterns = append(append([]string(nil), o.Patterns...), c.Patterns...)
			c.Required = o.Required
			c.Exclude = o.Exclude
		}
		out = append(out, c)
	}
	return out
}

var textCues = []Cue{
	{
		Name:        "going_concern",
		Description: "Substantial doubt about the ability to continue as a going concern",
		Kind:        KindEvent,
		Headings:    []string{"Going Concern", "Liquidity and Going Concern"},
		Patterns:    []string{`substantial\s+doubt`},
		Required:    []string{`going\s+concern`},
		Exclude:     []string{`substantial\s+doubt\s+(?:has\s+been|was|is)\s+alleviated`, `no\s+substantial\s+doubt`},
		MaxDistance: 300,
	},
	{
		Name:        "material_weakness",
		Description: "Material weakness in internal control over financial reporting",
		Kind:        KindEvent,
		Headings:    []string{"Material Weakness", "Controls and Procedures", "Internal Control over Financial Reporting"},
		Patterns:    []string{`material\s+weakness(?:es)?`},
		Required:    []string{`internal\s+control|financial\s+reporting|controls\s+and\s+procedures`},
		Exclude:     []string{`\b(?:did\s+not\s+identify|has\s+not\s+identified|no)\s+(?:any\s+)?material\s+weakness(?:es)?\s+(?:was|were|has|have|in)`},
	},
	{
		Name:        "exclusive_forum",
		Description: "Exclusive forum or forum selection provision",
		Kind:        KindGovernance,
		Headings:    []string{"Exclusive Forum", "Forum Selection", "Choice of Forum"},
		Patterns:    []string{`exclusive\s+forum`, `forum\s+selection`, `exclusive\s+jurisdiction`},
	},
	{
		Name:        "classified_board",
		Description: "Classified (staggered) board of directors",
		Kind:        KindGovernance,
		Headings:    []string{"Classified Board"},
		Patterns:    []string{`classified\s+board`, `staggered\s+board`, `(?:three|3)\s+classes\s+of\s+directors`},
		Exclude:     []string{`declassif`},
	},
	{
		Name:        "dual_class",
		Description: "Dual-class or multi-class voting structure",
		Kind:        KindGovernance,
		Headings:    []string{"Dual Class"},
		Patterns:    []string{`dual[-\s]class`, `class\s+b\s+common\s+stock[^.]{0,120}\bvotes\s+per\s+share`},
	},
	{
		Name:        "rights_plan",
		Description: "Stockholder rights plan (poison pill)",
		Kind:        KindGovernance,
		Headings:    []string{"Rights Plan", "Rights Agreement"},
		Patterns:    []string{`rights\s+plan`, `poison\s+pill`, `rights\s+agreement`},
		Exclude:     []string{`(?:terminated|expired)\s+(?:the\s+|our\s+)?rights\s+(?:plan|agreement)`},
	},
	{
		Name:        "supermajority",
		Description: "Supermajority voting requirement",
		Kind:        KindGovernance,
		Headings:    []string{"Supermajority"},
		Patterns: []string{
			`supermajority`,
			`(?:two-thirds|66\s*2/3%?|66\.67%|75%|80%)\s+of\s+the\s+(?:voting\s+power|outstanding)`,
		},
	},
}

var builtinSections = []Section{
	{
		Name:        "related_party",
		Description: "Related person transactions",
		Headings:    []string{"Certain Relationships and Related Transactions", "Related Party", "Item 404", "Transactions with Related Persons"},
	},
	{
		Name:        "director_independence",
		Description: "Board determination of director independence",
		Headings:    []string{"Director Independence", "Independence of the Board", "Independent Directors"},
	},
	{
		Name:        "board_committees",
		Description: "Standing committees of the board",
		Headings:    []string{"Board Committees", "Committees of the Board", "Audit Committee", "Compensation Committee", "Nominating and Corporate Governance Committee"},
	},
	{
		Name:        "beneficial_ownership",
		Description: "Security ownership of beneficial owners and management",
		Headings:    []string{"Security Ownership of Certain Beneficial Owners and Management", "Beneficial Ownership", "Principal Stockholders", "Ownership of Securities"},
	},
	{
		Name:        "exclusive_forum",
		Description: "Exclusive forum provisions",
		Headings:    []string{"Exclusive Forum", "Forum Selection", "Choice of Forum", "Exclusive Jurisdiction"},
	},
	{
		Name:        "governance_overview",
		Description: "Corporate governance overview and anti-takeover structure",
		Headings:    []string{"Corporate Governance", "Governance", "Board Structure", "Classified Board", "Dual Class", "Stockholder Rights", "Supermajority", "Bylaws", "Certificate of Incorporation"},
	},
	{
		Name:        "audit",
		Description: "Audit committee",
		Headings:    []string{"Audit Committee", "Report of the Audit Committee"},
	},
	{
		Name:        "compensation",
		Description: "Compensation committee",
		Headings:    []string{"Compensation Committee", "Compensation and Human Capital Committee", "Human Capital Committee"},
	},
	{
		Name:        "nominating",
		Description: "Nominating and governance committee",
		Headings:    []string{"Nominating Committee", "Nominating and Corporate Governance Committee", "Nominating and Governance Committee", "Governance and Nominating Committee", "Nominations Committee"},
	},
	{
		Name:        "business",
		Description: "Description of the business (10-K Item 1)",
		Headings:    []string{"Item 1. Business", "Description of Business"},
	},
	{
		Name:        "risk_factors",
		Description: "Risk factors (10-K Item 1A, 10-Q Part II Item 1A)",
		Headings:    []string{"Item 1A. Risk Factors", "Risk Factors"},
	},
	{
		Name:        "mda",
		Description: "Management's discussion and analysis (10-K Item 7, 10-Q Item 2)",
		Headings:    []string{"Management's Discussion and Analysis", "MD&A"},
	},
	{
		Name:        "directors",
		Description: "Board roster and director nominees",
		Headings:    []string{"Board of Directors", "Directors and Executive Officers", "Director Nominees", "Nominees for Director", "Election of Directors", "Information About Our Directors"},
	},
}

// SummarySections are the sections a proxy summary reports by default.
var SummarySections = []string{
	"related_party", "director_independence", "board_committees", "beneficial_ownership",
	"exclusive_forum", "governance_overview", "audit", "compensation", "nominating",
}

// PeriodicSections are reported by default for 10-K and 10-Q filings.
var PeriodicSections = []string{"business", "risk_factors", "mda"}

var builtinTables = []TableCue{
	{
		Kind:    BoardRoster,
		Section: "directors",
		Require: [][]string{
			{"name", "director", "directors", "nominee"},
			{"age", "position", "title", "independent", "director since", "occupation"},
		},
		Columns: []Column{
			{Field: "independent", Synonyms: []string{"independent", "independence"}},
			{Field: "since", Synonyms: []string{"director since", "since"}},
			{Field: "role", Synonyms: []string{"position", "title", "role", "principal occupation", "occupation"}},
			{Field: "age", Synonyms: []string{"age"}},
			{Field: "name", Synonyms: []string{"name", "director", "directors", "nominee"}},
		},
	},
	{
		Kind:    CommitteeMembership,
		Section: "board_committees",
		Require: [][]string{
			{"name", "director", "directors", "member", "nominee"},
			{"audit", "compensation", "nominating", "governance", "committee", "risk"},
		},
		Columns: []Column{
			{Field: "name", Synonyms: []string{"name", "director", "directors", "member", "nominee"}},
		},
	},
	{
		Kind:    BeneficialOwners,
		Section: "beneficial_ownership",
		Require: [][]string{
			{"name", "owner", "holder", "stockholder", "shareholder"},
			{"shares", "amount", "number"},
			{"percent", "percentage", "%"},
		},
		Columns: []Column{
			{Field: "percent", Synonyms: []string{"percent", "percentage", "%"}},
			{Field: "shares", Synonyms: []string{"number of shares", "shares", "amount and nature", "amount", "number"}},
			{Field: "holder", Synonyms: []string{"name", "beneficial owner", "owner", "holder", "stockholder", "shareholder"}},
		},
	},
}

var builtinExhibitTerms = []string{
	"restatement", "non-reliance", "material weakness", "going concern", "investigation",
	"subpoena", "resignation", "impairment", "default", "settlement",
}

// Builtin returns the built-in catalog definition.
func Builtin() Definition {
	def := Definition{
		Cues:         append(itemCues(), textCues...),
		Sections:     append([]Section(nil), builtinSections...),
		ExhibitTerms: append([]string(nil), builtinExhibitTerms...),
		Tables:       append([]TableCue(nil), builtinTables...),
	}
	return def
}
