package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

const holidayFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//holidays//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:kashmir-2026@test\r\n" +
	"DTSTART;VALUE=DATE:20260205\r\n" +
	"DTEND;VALUE=DATE:20260206\r\n" +
	"SUMMARY:Kashmir Solidarity Day\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:eid-2026@test\r\n" +
	"DTSTART;VALUE=DATE:20260320\r\n" +
	"DTEND;VALUE=DATE:20260323\r\n" +
	"SUMMARY:Eid ul-Fitr\r\n" +
	"DESCRIPTION:Public holiday\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:townhall@test\r\n" +
	"DTSTART:20260210T100000Z\r\n" +
	"DTEND:20260210T110000Z\r\n" +
	"SUMMARY:Town hall\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:untitled@test\r\n" +
	"DTSTART;VALUE=DATE:20260301\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseCalendarICS(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)
	createdBy := int64(1)

	entries, err := ParseCalendarICS(strings.NewReader(holidayFeed), domain.CalendarEntryHoliday, loc, &createdBy)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	kashmir := entries[0]
	assert.Equal(t, "Kashmir Solidarity Day", kashmir.Title)
	assert.Equal(t, domain.CalendarEntryHoliday, kashmir.Type)
	assert.True(t, kashmir.IsFullDay)
	assert.Equal(t, time.Date(2026, 2, 5, 0, 0, 0, 0, loc), kashmir.StartDate)
	assert.Equal(t, time.Date(2026, 2, 5, 23, 59, 59, 999999000, loc), kashmir.EndDate)
	assert.Equal(t, &createdBy, kashmir.CreatedBy)

	eid := entries[1]
	assert.Equal(t, "Public holiday", eid.Description)
	assert.Equal(t, time.Date(2026, 3, 22, 23, 59, 59, 999999000, loc), eid.EndDate)
	assert.True(t, eid.Overlaps(time.Date(2026, 3, 21, 0, 0, 0, 0, loc), time.Date(2026, 3, 21, 23, 59, 59, 0, loc)))
	assert.False(t, eid.Overlaps(time.Date(2026, 3, 23, 0, 0, 0, 0, loc), time.Date(2026, 3, 23, 23, 59, 59, 0, loc)))

	townhall := entries[2]
	assert.False(t, townhall.IsFullDay)
	assert.True(t, townhall.StartDate.Equal(time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Hour, townhall.EndDate.Sub(townhall.StartDate))
}

func TestParseCalendarICS_Invalid(t *testing.T) {
	_, err := ParseCalendarICS(strings.NewReader("not a calendar"), domain.CalendarEntryHoliday, time.UTC, nil)
	assert.Error(t, err)
}
