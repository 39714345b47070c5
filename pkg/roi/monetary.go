package roi

// MonetaryInputs are the inputs of the savings-in-euro calculator.
type MonetaryInputs struct {
	Clients         int     `json:"clients"`
	PackagesPerYear int     `json:"packagesPerYear"`
	MinutesSaved    int     `json:"minutesSaved"`
	HourlyRate      int     `json:"hourlyRate"`
	Adoption        float64 `json:"adoption"`
	AnnualCost      int     `json:"annualCost"`
}

// MonetaryOutputs are derived from MonetaryInputs. BreakEvenMonths is nil
// when there is no cost to recover or no savings to recover it with.
type MonetaryOutputs struct {
	SavingsAnnual       float64  `json:"savingsAnnual"`
	SavingsMonthly      float64  `json:"savingsMonthly"`
	BreakEvenMonths     *float64 `json:"breakEvenMonths"`
	CapacityHoursAnnual float64  `json:"capacityHoursAnnual"`
}

// DefaultMonetaryInputs returns the values the widget starts with.
func DefaultMonetaryInputs() MonetaryInputs {
	return MonetaryInputs{
		Clients:         50,
		PackagesPerYear: 2,
		MinutesSaved:    60,
		HourlyRate:      120,
		Adoption:        0.8,
		AnnualCost:      1000,
	}
}

// Values converts the typed inputs to the generic representation.
func (in MonetaryInputs) Values() Values {
	return Values{
		"clients":         float64(in.Clients),
		"packagesPerYear": float64(in.PackagesPerYear),
		"minutesSaved":    float64(in.MinutesSaved),
		"hourlyRate":      float64(in.HourlyRate),
		"adoption":        in.Adoption,
		"annualCost":      float64(in.AnnualCost),
	}
}

// CalculateMonetary evaluates the monetary formula.
func CalculateMonetary(in MonetaryInputs) MonetaryOutputs {
	s := evaluateMonetary(in.Values())
	out := MonetaryOutputs{
		SavingsAnnual:       *s["savingsAnnual"],
		SavingsMonthly:      *s["savingsMonthly"],
		CapacityHoursAnnual: *s["capacityHoursAnnual"],
	}
	if v, ok := s.Get("breakEvenMonths"); ok {
		out.BreakEvenMonths = floatPtr(v)
	}
	return out
}

func evaluateMonetary(v Values) Snapshot {
	hoursPerEvent := v["minutesSaved"] / 60
	savingsAnnual := roundHalfUp(v["clients"] * v["packagesPerYear"] * hoursPerEvent * v["hourlyRate"] * v["adoption"])
	savingsMonthly := roundHalfUp(savingsAnnual / 12)

	var breakEven *float64
	if v["annualCost"] > 0 && savingsMonthly > 0 {
		breakEven = floatPtr(round1(v["annualCost"] / savingsMonthly))
	}

	return Snapshot{
		"savingsAnnual":       floatPtr(savingsAnnual),
		"savingsMonthly":      floatPtr(savingsMonthly),
		"breakEvenMonths":     breakEven,
		"capacityHoursAnnual": floatPtr(roundHalfUp(v["clients"] * v["packagesPerYear"] * hoursPerEvent * v["adoption"])),
	}
}

// Monetary is the savings-in-euro calculator.
var Monetary = &Variant{
	Name: "monetary",
	Fields: []Field{
		{Name: "clients", Min: 10, Max: 500, Step: 5, Integer: true, Attribute: "ROI_CLIENTS",
			Message: "Mandanten müssen zwischen {min} und {max} liegen"},
		{Name: "packagesPerYear", Min: 1, Max: 12, Step: 1, Integer: true, Attribute: "ROI_PACKAGES_PER_YEAR",
			Message: "Pakete pro Jahr müssen zwischen {min} und {max} liegen"},
		{Name: "minutesSaved", Min: 10, Max: 180, Step: 5, Integer: true, Attribute: "ROI_MINUTES_SAVED",
			Message: "Zeitersparnis muss zwischen {min} und {max} Minuten liegen"},
		{Name: "hourlyRate", Min: 60, Max: 250, Step: 5, Integer: true, Attribute: "ROI_HOURLY_RATE",
			Message: "Stundensatz muss zwischen {min}€ und {max}€ liegen"},
		{Name: "adoption", Min: 0.5, Max: 1.0, Step: 0.05, Percent: true, Attribute: "ROI_ADOPTION",
			Message: "Adoption muss zwischen {min} und {max} liegen"},
		{Name: "annualCost", Min: 0, Max: 15000, Step: 100, Integer: true, Attribute: "ROI_ANNUAL_COST",
			Message: "Kosten pro Jahr müssen zwischen {min}€ und {max}€ liegen"},
	},
	Outputs: []Output{
		{Name: "savingsAnnual", Attribute: "ROI_SAVINGS_ANNUAL"},
		{Name: "savingsMonthly", Attribute: "ROI_SAVINGS_MONTHLY"},
		{Name: "breakEvenMonths", Attribute: "ROI_BREAK_EVEN_MONTHS", Decimals: 1, Nullable: true},
		{Name: "capacityHoursAnnual", Attribute: "ROI_CAPACITY_HOURS_ANNUAL"},
	},
	Defaults: DefaultMonetaryInputs().Values(),
	evaluate: evaluateMonetary,
}
