// Package fixture holds representative filing documents shared by package
// tests. The markup mirrors what EDGAR serves: bold paragraphs instead of h
// tags, layout tables around item captions, and ownership tables with spacer,
// dollar and percent cells.
package fixture

import (
	"fmt"
	"strings"
	"time"

	"github.com/hurttlocker/filingintel/internal/document"
)

// EightKRestatement is an 8-K reporting Item 4.02 non-reliance.
const EightKRestatement = `<html><head><title>8-K</title><style>p{margin:0}</style></head><body>
<div style="display:none">hidden iXBRL data 4.02</div>
<p style="text-align:center"><b>UNITED STATES SECURITIES AND EXCHANGE COMMISSION</b></p>
<p>Washington, D.C. 20549</p>
<p><b>FORM 8-K</b></p>
<p>Check the appropriate box below if the Form 8-K filing is intended to simultaneously satisfy the filing obligation of the registrant.</p>
<table><tr><td><b>Item 4.02</b></td><td><b>Non-Reliance on Previously Issued Financial Statements or a Related Audit Report or Completed Interim Review.</b></td></tr></table>
<p>On March 3, 2025, the Audit Committee of the Board of Directors of Example Corp. concluded, after discussion with management and the independent registered public accounting firm, that the Company's previously issued financial statements for the fiscal year ended December 31, 2023 should no longer be relied upon because of errors in revenue recognition.</p>
<p>The Company expects to file restated financial statements as soon as practicable.</p>
<table><tr><td><b>Item 9.01</b></td><td><b>Financial Statements and Exhibits.</b></td></tr></table>
<p>(d) Exhibits. 99.1 Press release dated March 4, 2025.</p>
<p><b>SIGNATURES</b></p>
<p>Pursuant to the requirements of the Securities Exchange Act of 1934, the registrant has duly caused this report to be signed.</p>
</body></html>`

// EightKDirectorDeparture is an 8-K reporting Items 5.02 and 5.03.
const EightKDirectorDeparture = `<html><body>
<p><b>FORM 8-K</b></p>
<p>Item 5.02 Departure of Directors or Certain Officers; Election of Directors; Appointment of Certain Officers.</p>
<p>On April 10, 2025, Jane Roe notified the Board of Directors of her decision to resign as a director of the Company, effective immediately. Ms. Roe's resignation was not the result of any disagreement with the Company.</p>
<p>Item 5.03 Amendments to Articles of Incorporation or Bylaws; Change in Fiscal Year.</p>
<p>On April 11, 2025, the Board approved amended and restated bylaws of the Company, effective immediately, which adopt an exclusive forum provision.</p>
</body></html>`

// Proxy is a DEF 14A with governance sections, a board roster, a committee
// matrix and a beneficial ownership table. It has no nominating committee
// section.
const Proxy = `<html><body>
<p style="text-align:center"><b>EXAMPLE CORP.</b></p>
<p><b>NOTICE OF ANNUAL MEETING OF STOCKHOLDERS</b></p>
<p>The annual meeting will be held on June 12, 2025.</p>
<p><b>CORPORATE GOVERNANCE</b></p>
<p>Our Board of Directors is committed to sound governance practices. Our certificate of incorporation provides for a classified board.</p>
<p><b>Director Independence</b></p>
<p>The Board has determined that each of Alice Smith and Carol White is independent under the listing standards of the Nasdaq Stock Market.</p>
<p><b>Board of Directors</b></p>
<table>
<tr><td><b>Name</b></td><td></td><td><b>Age</b></td><td></td><td><b>Position</b></td><td><b>Independent</b></td></tr>
<tr><td>John Doe</td><td></td><td>61</td><td></td><td>Chairman and Chief Executive Officer</td><td>No</td></tr>
<tr><td>Alice Smith</td><td></td><td>55</td><td></td><td>Director</td><td>Yes</td></tr>
<tr><td>Carol White</td><td></td><td>48</td><td></td><td>Lead Independent Director</td><td>Yes</td></tr>
</table>
<p><b>Board Committees</b></p>
<p>The Board has two standing committees. The table below shows current membership.</p>
<table>
<tr><td><b>Director</b></td><td><b>Audit</b></td><td><b>Compensation</b></td></tr>
<tr><td>Alice Smith</td><td>Chair</td><td>X</td></tr>
<tr><td>Carol White</td><td>X</td><td>Chair</td></tr>
<tr><td>John Doe</td><td></td><td></td></tr>
</table>
<p><b>Audit Committee</b></p>
<p>The Audit Committee oversees our accounting and financial reporting processes and the audits of our financial statements. Each member of the Audit Committee is financially literate.</p>
<p><b>Compensation Committee</b></p>
<p>The Compensation Committee reviews and approves the compensation of our executive officers and administers our equity plans.</p>
<p><b>CERTAIN RELATIONSHIPS AND RELATED TRANSACTIONS</b></p>
<p>Since January 1, 2024, we have not been a party to any transaction with a related person in which the amount involved exceeded $120,000.</p>
<p><b>SECURITY OWNERSHIP OF CERTAIN BENEFICIAL OWNERS AND MANAGEMENT</b></p>
<p>The following table sets forth information regarding beneficial ownership of our common stock as of March 31, 2025.</p>
<table>
<tr><td><b>Name of Beneficial Owner</b></td><td></td><td><b>Number of Shares Beneficially Owned</b></td><td></td><td><b>Percent of Class</b></td></tr>
<tr><td>Vanguard Group, Inc.(1)</td><td>$</td><td>12,500,000</td><td></td><td>12.5</td><td>%</td></tr>
<tr><td>BlackRock, Inc.(2)</td><td></td><td>8,250,000</td><td></td><td>8.3</td><td>%</td></tr>
<tr><td>John Doe</td><td></td><td>1,200,000</td><td></td><td>1.2</td><td>%</td></tr>
<tr><td>Alice Smith</td><td></td><td>45,000</td><td></td><td>*</td></tr>
<tr><td>Carol White</td><td></td><td>&#8212;</td><td></td><td>&#8212;</td></tr>
</table>
<p>* Less than 1%.</p>
<p>(1) Based on a Schedule 13G/A filed February 9, 2025 by The Vanguard Group.</p>
<p>(2) Based on a Schedule 13G filed January 29, 2025 by BlackRock, Inc.</p>
<p><b>EXCLUSIVE FORUM</b></p>
<p>Our bylaws provide that the Court of Chancery of the State of Delaware is the exclusive forum for certain stockholder litigation.</p>
<p><b>OTHER MATTERS</b></p>
<p>We know of no other matters to be submitted at the meeting.</p>
</body></html>`

// Exhibit is a press-release exhibit.
const Exhibit = `<html><body>
<p><b>Exhibit 99.1</b></p>
<p>Example Corp. Announces Restatement of Prior Period Financial Statements</p>
<p>Example Corp. today announced that its previously issued financial statements should no longer be relied upon. The restatement relates to revenue recognition. Management identified a material weakness in internal control over financial reporting.</p>
<p>The company will host a conference call regarding the restatement on March 5, 2025.</p>
</body></html>`

// PlainTenK is a plain-text periodic report with a fixed-width table.
const PlainTenK = `ANNUAL REPORT ON FORM 10-K

PART II

Item 9A. Controls and Procedures

Management identified a material weakness in our internal control over financial reporting related to revenue.

Item 9B. Other Information

None.

PRINCIPAL STOCKHOLDERS

Name                      Shares        Percent
Acme Capital LLC          5,000,000     10.0%
Beta Partners LP          2,500,000     5.0%
Gamma Holdings            n/a           n/a
`

// TenKItems is a plain-text annual report with the Part I and Part II items
// a periodic section summary reports.
const TenKItems = `ANNUAL REPORT ON FORM 10-K

PART I

Item 1. Business

Example Corp designs and sells industrial sensors to manufacturers.

Item 1A. Risk Factors

Our revenue depends on a small number of customers.

PART II

Item 7. Management's Discussion and Analysis of Financial Condition and Results of Operations

Revenue grew 12% compared with the prior year.

Item 8. Financial Statements and Supplementary Data

See the index to the financial statements.
`

// Long returns a document body with n filler paragraphs under one heading,
// used to exercise truncation and compaction bounds.
func Long(heading string, n int) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	fmt.Fprintf(&sb, "<p><b>%s</b></p>", heading)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "<p>Paragraph %d describes the committee charter, meeting cadence and oversight responsibilities in considerable detail.</p>", i)
	}
	sb.WriteString("<p><b>OTHER MATTERS</b></p><p>None.</p></body></html>")
	return sb.String()
}

// Meta returns document metadata for fixtures.
func Meta(id, form string, date time.Time) document.Meta {
	return document.Meta{
		ID:         id,
		Identifier: "0000123456",
		Form:       form,
		FilingDate: date,
		SourceURL:  "https://www.sec.gov/Archives/edgar/data/123456/" + id + ".htm",
	}
}

// Must normalizes raw into a Document and panics on failure.
func Must(meta document.Meta, raw string) *document.Document {
	doc, err := document.Normalize(meta, raw)
	if err != nil {
		panic(err)
	}
	return doc
}

// Date parses an ISO date and panics on failure.
func Date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
