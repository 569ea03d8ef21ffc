package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validSlot() OfficeHourSlot {
	return OfficeHourSlot{
		Day:         time.Monday,
		StartTime:   "09:00",
		EndTime:     "10:00",
		IsRecurring: true,
		Location:    "Office 12",
		MaxStudents: 5,
	}
}

func fieldsOf(errs []FieldError) []string {
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	return fields
}

func TestValidateSlot(t *testing.T) {
	t.Run("valid slot has no errors", func(t *testing.T) {
		assert.Empty(t, ValidateSlot(validSlot()))
	})

	t.Run("end before start reports endTime", func(t *testing.T) {
		slot := validSlot()
		slot.StartTime = "10:00"
		slot.EndTime = "09:00"

		errs := ValidateSlot(slot)
		assert.Equal(t, []string{"endTime"}, fieldsOf(errs))
	})

	t.Run("end equal to start reports endTime", func(t *testing.T) {
		slot := validSlot()
		slot.StartTime = "10:00"
		slot.EndTime = "10:00"

		assert.Contains(t, fieldsOf(ValidateSlot(slot)), "endTime")
	})

	t.Run("zero capacity reports maxStudents", func(t *testing.T) {
		slot := validSlot()
		slot.MaxStudents = 0

		assert.Equal(t, []string{"maxStudents"}, fieldsOf(ValidateSlot(slot)))
	})

	t.Run("empty location reports location", func(t *testing.T) {
		slot := validSlot()
		slot.Location = ""

		assert.Equal(t, []string{"location"}, fieldsOf(ValidateSlot(slot)))
	})

	t.Run("independent rules fire together", func(t *testing.T) {
		slot := validSlot()
		slot.StartTime = "10:00"
		slot.EndTime = "09:00"
		slot.MaxStudents = 0
		slot.Location = ""

		fields := fieldsOf(ValidateSlot(slot))
		assert.Contains(t, fields, "endTime")
		assert.Contains(t, fields, "maxStudents")
		assert.Contains(t, fields, "location")
		assert.Len(t, fields, 3)
	})

	t.Run("malformed time reports the offending field", func(t *testing.T) {
		slot := validSlot()
		slot.EndTime = "25:99"

		assert.Equal(t, []string{"endTime"}, fieldsOf(ValidateSlot(slot)))
	})

	t.Run("does not mutate the candidate", func(t *testing.T) {
		slot := validSlot()
		slot.MaxStudents = 0
		before := slot
		ValidateSlot(slot)
		assert.Equal(t, before, slot)
	})
}
