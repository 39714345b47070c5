package roi

// TimeInputs are the inputs of the hours-won calculator.
type TimeInputs struct {
	Clients         int     `json:"clients"`
	PackagesPerYear int     `json:"packagesPerYear"`
	MinutesSaved    int     `json:"minutesSaved"`
	Adoption        float64 `json:"adoption"`
	OwnerShare      float64 `json:"ownerShare"`
}

// TimeOutputs are derived from TimeInputs.
type TimeOutputs struct {
	TotalHoursAnnual     float64 `json:"totalHoursAnnual"`
	TotalHoursMonthly    float64 `json:"totalHoursMonthly"`
	TotalHoursWeekly     float64 `json:"totalHoursWeekly"`
	OwnerHoursMonthly    float64 `json:"ownerHoursMonthly"`
	TeamHoursMonthly     float64 `json:"teamHoursMonthly"`
	EveningsSavedMonthly float64 `json:"eveningsSavedMonthly"`
}

// HoursPerEvening is the length of one evening in the evenings-won figure.
const HoursPerEvening = 2

func DefaultTimeInputs() TimeInputs {
	return TimeInputs{
		Clients:         50,
		PackagesPerYear: 2,
		MinutesSaved:    60,
		Adoption:        0.8,
		OwnerShare:      0.5,
	}
}

func (in TimeInputs) Values() Values {
	return Values{
		"clients":         float64(in.Clients),
		"packagesPerYear": float64(in.PackagesPerYear),
		"minutesSaved":    float64(in.MinutesSaved),
		"adoption":        in.Adoption,
		"ownerShare":      in.OwnerShare,
	}
}

// CalculateTime evaluates the time formula.
func CalculateTime(in TimeInputs) TimeOutputs {
	s := evaluateTime(in.Values())
	return TimeOutputs{
		TotalHoursAnnual:     *s["totalHoursAnnual"],
		TotalHoursMonthly:    *s["totalHoursMonthly"],
		TotalHoursWeekly:     *s["totalHoursWeekly"],
		OwnerHoursMonthly:    *s["ownerHoursMonthly"],
		TeamHoursMonthly:     *s["teamHoursMonthly"],
		EveningsSavedMonthly: *s["eveningsSavedMonthly"],
	}
}

func evaluateTime(v Values) Snapshot {
	hoursPerEvent := v["minutesSaved"] / 60
	annual := roundHalfUp(v["clients"] * v["packagesPerYear"] * hoursPerEvent * v["adoption"])
	monthly := round1(annual / 12)

	return Snapshot{
		"totalHoursAnnual":     floatPtr(annual),
		"totalHoursMonthly":    floatPtr(monthly),
		"totalHoursWeekly":     floatPtr(round1(annual / 52)),
		"ownerHoursMonthly":    floatPtr(round1(monthly * v["ownerShare"])),
		"teamHoursMonthly":     floatPtr(round1(monthly * (1 - v["ownerShare"]))),
		"eveningsSavedMonthly": floatPtr(round1(monthly / HoursPerEvening)),
	}
}

// Time is the hours-won calculator.
var Time = &Variant{
	Name: "time",
	Fields: []Field{
		{Name: "clients", Min: 10, Max: 500, Step: 5, Integer: true, Attribute: "ROI_CLIENTS",
			Message: "Mandanten müssen zwischen {min} und {max} liegen"},
		{Name: "packagesPerYear", Min: 1, Max: 12, Step: 1, Integer: true, Attribute: "ROI_PACKAGES_PER_YEAR",
			Message: "Pakete pro Jahr müssen zwischen {min} und {max} liegen"},
		{Name: "minutesSaved", Min: 10, Max: 180, Step: 5, Integer: true, Attribute: "ROI_MINUTES_SAVED",
			Message: "Zeitersparnis muss zwischen {min} und {max} Minuten liegen"},
		{Name: "adoption", Min: 0.5, Max: 1.0, Step: 0.05, Percent: true, Attribute: "ROI_ADOPTION",
			Message: "Adoption muss zwischen {min} und {max} liegen"},
		{Name: "ownerShare", Min: 0, Max: 1, Step: 0.05, Percent: true, Attribute: "ROI_OWNER_SHARE",
			Message: "Inhaberanteil muss zwischen {min} und {max} liegen"},
	},
	Outputs: []Output{
		{Name: "totalHoursAnnual", Attribute: "ROI_TOTAL_HOURS_ANNUAL"},
		{Name: "totalHoursMonthly", Attribute: "ROI_TOTAL_HOURS_MONTHLY", Decimals: 1},
		{Name: "totalHoursWeekly", Attribute: "ROI_TOTAL_HOURS_WEEKLY", Decimals: 1},
		{Name: "ownerHoursMonthly", Attribute: "ROI_OWNER_HOURS_MONTHLY", Decimals: 1},
		{Name: "teamHoursMonthly", Attribute: "ROI_TEAM_HOURS_MONTHLY", Decimals: 1},
		{Name: "eveningsSavedMonthly", Attribute: "ROI_EVENINGS_SAVED", Decimals: 1},
	},
	Defaults: DefaultTimeInputs().Values(),
	evaluate: evaluateTime,
}
