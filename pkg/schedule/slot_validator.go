package schedule

import (
	"github.com/go-playground/validator/v10"
)

// FieldError is a single validation failure on a named slot field. Validation
// failures are data returned to the caller, never errors raised by this
// package.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// slotCandidate mirrors the validated fields of OfficeHourSlot so the
// validation tags stay out of the domain struct.
type slotCandidate struct {
	Location    string `validate:"required"`
	MaxStudents int    `validate:"gt=0"`
	StartTime   string
	EndTime     string
}

var slotValidate = newSlotValidator()

func newSlotValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateSlotTimes, slotCandidate{})
	return v
}

// validateSlotTimes checks that both times parse as HH:MM and that the slot
// ends strictly after it starts, compared as minutes since midnight.
func validateSlotTimes(sl validator.StructLevel) {
	candidate := sl.Current().Interface().(slotCandidate)

	startMinutes, startErr := MinutesOfDay(candidate.StartTime)
	if startErr != nil {
		sl.ReportError(candidate.StartTime, "StartTime", "StartTime", "timeofday", "")
	}
	endMinutes, endErr := MinutesOfDay(candidate.EndTime)
	if endErr != nil {
		sl.ReportError(candidate.EndTime, "EndTime", "EndTime", "timeofday", "")
	}
	if startErr == nil && endErr == nil && endMinutes <= startMinutes {
		sl.ReportError(candidate.EndTime, "EndTime", "EndTime", "timeafter", "")
	}
}

// ValidateSlot checks an office-hour slot and returns all failing fields.
// Rules are independent, so several errors can be reported together. The
// candidate slot is never mutated.
func ValidateSlot(slot OfficeHourSlot) []FieldError {
	candidate := slotCandidate{
		Location:    slot.Location,
		MaxStudents: slot.MaxStudents,
		StartTime:   slot.StartTime,
		EndTime:     slot.EndTime,
	}

	err := slotValidate.Struct(candidate)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "slot", Message: err.Error()}}
	}

	fieldErrors := make([]FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fieldErrors = append(fieldErrors, fieldErrorFor(fe))
	}
	return fieldErrors
}

func fieldErrorFor(fe validator.FieldError) FieldError {
	switch fe.StructField() {
	case "Location":
		return FieldError{Field: "location", Message: "location is required"}
	case "MaxStudents":
		return FieldError{Field: "maxStudents", Message: "maxStudents must be greater than 0"}
	case "StartTime":
		return FieldError{Field: "startTime", Message: "startTime must be a valid HH:MM time"}
	case "EndTime":
		if fe.Tag() == "timeofday" {
			return FieldError{Field: "endTime", Message: "endTime must be a valid HH:MM time"}
		}
		return FieldError{Field: "endTime", Message: "endTime must be after startTime"}
	default:
		return FieldError{Field: fe.StructField(), Message: "invalid value"}
	}
}
