package model

// Availability classifies stock phrasing found in page text.
type Availability string

const (
	AvailabilityInStock    Availability = "in_stock"
	AvailabilityOutOfStock Availability = "out_of_stock"
	AvailabilityUnknown    Availability = "unknown"
)

// Quality issue tags attached to observations during validation.
const (
	IssueCategoryPage = "category_page"
	IssueNoPriceFound = "no_price_found"
	IssueNoTimeFound  = "no_time_found"
	IssueOutOfStock   = "out_of_stock"
	IssueNoResults    = "no_results"
)

// SignalUnit is the unit of an extracted numeric signal.
type SignalUnit string

const (
	UnitCurrency SignalUnit = "currency"
	UnitHours    SignalUnit = "hours"
)

// RawObservation is one unvalidated search result: a URL plus whatever
// text came back with it.
type RawObservation struct {
	SourceURL string `json:"source_url"`
	Title     string `json:"title"`
	BodyText  string `json:"body_text"`
}

// NumericSignal is a price or duration pulled out of observation text.
// RangeLow and RangeHigh bracket ranged expressions ("2-4 hours"); for
// single values all three are equal.
type NumericSignal struct {
	Value         float64    `json:"value"`
	RangeLow      float64    `json:"range_low"`
	RangeHigh     float64    `json:"range_high"`
	Unit          SignalUnit `json:"unit"`
	ConfidenceTag string     `json:"confidence_tag,omitempty"`
}

// ValidatedObservation is a raw observation with its quality assessment.
type ValidatedObservation struct {
	RawObservation
	QualityScore     float64        `json:"quality_score"`
	IsProductPage    bool           `json:"is_product_page"`
	IsCategoryPage   bool           `json:"is_category_page"`
	SourceTrustScore float64        `json:"source_trust_score"`
	ExtractedNumeric *NumericSignal `json:"extracted_numeric,omitempty"`
	Availability     Availability   `json:"availability"`
	QualityIssues    []string       `json:"quality_issues,omitempty"`
}

// HasIssue returns true if the observation carries the given quality issue tag.
func (v ValidatedObservation) HasIssue(tag string) bool {
	for _, t := range v.QualityIssues {
		if t == tag {
			return true
		}
	}
	return false
}
