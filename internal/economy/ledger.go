package economy

// Ledger categories. Expenses and revenues share the string space; the
// direction is carried by the Recorder method.
const (
	CategorySeeds        = "seeds"
	CategoryFeed         = "feed"
	CategoryLivestock    = "livestock"
	CategoryMaintenance  = "maintenance"
	CategoryFuel         = "fuel"
	CategoryLabor        = "labor"
	CategoryConstruction = "construction"
	CategoryInsurance    = "insurance"
	CategoryTaxes        = "taxes"
	CategoryUtilities    = "utilities"
	CategoryInterest     = "interest"
	CategoryOther        = "other"

	CategoryCropSales      = "crop_sales"
	CategoryLivestockSales = "livestock_sales"
	CategoryProcessedSales = "processed_sales"
	CategoryContracts      = "contracts"
	CategorySubsidies      = "subsidies"
	CategoryLoans          = "loans"
)

// Recorder receives every money movement a subsystem performs.
type Recorder interface {
	RecordExpense(amount float64, category, description string)
	RecordRevenue(amount float64, category, description string)
}

// EventSink collects notable occurrences for the farm's event log.
type EventSink interface {
	Emit(category, description string)
}

type nopRecorder struct{}

func (nopRecorder) RecordExpense(float64, string, string) {}
func (nopRecorder) RecordRevenue(float64, string, string) {}

type nopSink struct{}

func (nopSink) Emit(string, string) {}

// OrNop returns r, or a recorder that drops everything when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

// SinkOrNop returns s, or a sink that drops everything when s is nil.
func SinkOrNop(s EventSink) EventSink {
	if s == nil {
		return nopSink{}
	}
	return s
}
