package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

func TestValidateWorkingDays(t *testing.T) {
	assert.NoError(t, ValidateWorkingDays(nil))
	assert.NoError(t, ValidateWorkingDays([]int32{0, 1, 6}))
	assert.Error(t, ValidateWorkingDays([]int32{7}))
	assert.Error(t, ValidateWorkingDays([]int32{-1}))
	assert.Error(t, ValidateWorkingDays([]int32{1, 1}))
}

func TestValidateShiftDefaults(t *testing.T) {
	assert.NoError(t, ValidateShiftDefaults(domain.DefaultShiftDefaults()))
	assert.Error(t, ValidateShiftDefaults(map[domain.Shift][]int32{"Night": {1}}))
	assert.Error(t, ValidateShiftDefaults(map[domain.Shift][]int32{domain.ShiftMorning: {9}}))
}

func TestValidateTimezone(t *testing.T) {
	assert.NoError(t, ValidateTimezone("Asia/Karachi"))
	assert.Error(t, ValidateTimezone(""))
	assert.Error(t, ValidateTimezone("Asia/Atlantis"))
}

func TestValidateCalendarEntryRange(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, ValidateCalendarEntryRange(&domain.CalendarEntry{StartDate: day, EndDate: day}))
	assert.Error(t, ValidateCalendarEntryRange(&domain.CalendarEntry{StartDate: day, EndDate: day.Add(-time.Hour)}))
}
