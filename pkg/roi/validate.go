package roi

// ValidationResult is the outcome of Validate. Errors is never nil and is
// empty exactly when Valid is true.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors"`
}

// Validate checks the fields present in partial against their declared
// ranges. Absent fields and names the variant does not declare are skipped.
// Every violation is reported.
func (v *Variant) Validate(partial Values) ValidationResult {
	errs := make(map[string]string)
	for _, f := range v.Fields {
		val, ok := partial[f.Name]
		if !ok {
			continue
		}
		if !f.Contains(val) {
			errs[f.Name] = f.RangeMessage()
		}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// ValidateMonetary validates a complete set of monetary inputs.
func ValidateMonetary(in MonetaryInputs) ValidationResult {
	return Monetary.Validate(in.Values())
}

// ValidateTime validates a complete set of time inputs.
func ValidateTime(in TimeInputs) ValidationResult {
	return Time.Validate(in.Values())
}
