package utils

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

const icsDateLayout = "20060102"

// ParseCalendarICS 将 ICS 中的 VEVENT 转换为日历条目，全天事件按 loc 的整天处理
func ParseCalendarICS(r io.Reader, entryType domain.CalendarEntryType, loc *time.Location, createdBy *int64) ([]domain.CalendarEntry, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	entries := []domain.CalendarEntry{}
	for _, evt := range cal.Events() {
		entry, ok := parseCalendarEvent(evt, loc)
		if !ok {
			continue
		}
		entry.Type = entryType
		entry.CreatedBy = createdBy
		entries = append(entries, entry)
	}

	return entries, nil
}

func parseCalendarEvent(evt *ics.VEvent, loc *time.Location) (domain.CalendarEntry, bool) {
	summary := evt.GetProperty(ics.ComponentPropertySummary)
	if summary == nil || strings.TrimSpace(summary.Value) == "" {
		return domain.CalendarEntry{}, false
	}

	entry := domain.CalendarEntry{
		Title: strings.TrimSpace(summary.Value),
	}
	if desc := evt.GetProperty(ics.ComponentPropertyDescription); desc != nil {
		entry.Description = strings.TrimSpace(desc.Value)
	}

	startProp := evt.GetProperty(ics.ComponentPropertyDtStart)
	if startProp == nil {
		return domain.CalendarEntry{}, false
	}

	// 全天事件的 DTEND 是开区间，最后一天是 DTEND 的前一天
	if day, err := time.ParseInLocation(icsDateLayout, startProp.Value, loc); err == nil {
		lastDay := day
		if endProp := evt.GetProperty(ics.ComponentPropertyDtEnd); endProp != nil {
			if end, err := time.ParseInLocation(icsDateLayout, endProp.Value, loc); err == nil && end.After(day) {
				lastDay = end.AddDate(0, 0, -1)
			}
		}

		entry.StartDate = day
		entry.EndDate = lastDay.AddDate(0, 0, 1).Add(-time.Microsecond)
		entry.IsFullDay = true
		return entry, true
	}

	start, err := parseICSDateTime(startProp, loc)
	if err != nil {
		return domain.CalendarEntry{}, false
	}
	end := start
	if endProp := evt.GetProperty(ics.ComponentPropertyDtEnd); endProp != nil {
		if t, err := parseICSDateTime(endProp, loc); err == nil && !t.Before(start) {
			end = t
		}
	}

	entry.StartDate = start
	entry.EndDate = end
	return entry, true
}

func parseICSDateTime(prop *ics.IANAProperty, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse("20060102T150405Z", prop.Value); err == nil {
		return t.In(loc), nil
	}

	t, err := time.Parse("20060102T150405", prop.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析日期: %s", prop.Value)
	}

	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			if tzLoc, err := time.LoadLocation(v[0]); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), nil
			}
		}
	}

	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}
