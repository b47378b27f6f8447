package seed

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

type CalendarImporter interface {
	ImportCalendarEntries(ctx context.Context, entries []domain.CalendarEntry) (int, error)
}

type sampleEntry struct {
	title       string
	description string
	entryType   domain.CalendarEntryType
	start       string
	end         string
	isFullDay   bool
}

var sampleEntries = []sampleEntry{
	{"New Year's Day", "Happy New Year 2026!", domain.CalendarEntryHoliday, "2026-01-01", "2026-01-01", true},
	{"Project Kickoff Meeting", "Q1 2026 Project Kickoff", domain.CalendarEntryMeeting, "2026-01-05", "2026-01-05", false},
	{"Make-up Working Day", "补班", domain.CalendarEntryWorkingDay, "2026-01-10", "2026-01-10", true},
	{"Team Monthly Review", "Monthly team progress review", domain.CalendarEntryMeeting, "2026-01-15", "2026-01-15", false},
	{"Mid-Month Assessment", "Student progress assessment", domain.CalendarEntryEvent, "2026-01-20", "2026-01-20", true},
	{"Kashmir Solidarity Day", "Kashmir Day - Public Holiday", domain.CalendarEntryHoliday, "2026-02-05", "2026-02-05", true},
}

// SampleCalendarEntries 返回 2026 年初的示例日历条目，日期按 loc 的整天计算
func SampleCalendarEntries(loc *time.Location) ([]domain.CalendarEntry, error) {
	entries := make([]domain.CalendarEntry, 0, len(sampleEntries))
	for _, s := range sampleEntries {
		start, err := time.ParseInLocation(time.DateOnly, s.start, loc)
		if err != nil {
			return nil, err
		}
		end, err := time.ParseInLocation(time.DateOnly, s.end, loc)
		if err != nil {
			return nil, err
		}

		entries = append(entries, domain.CalendarEntry{
			Title:       s.title,
			Description: s.description,
			Type:        s.entryType,
			StartDate:   start,
			EndDate:     end.AddDate(0, 0, 1).Add(-time.Microsecond),
			IsFullDay:   s.isFullDay,
		})
	}
	return entries, nil
}

// SeedSampleCalendar 插入示例日历条目，重复执行不会产生重复数据
func SeedSampleCalendar(ctx context.Context, importer CalendarImporter, loc *time.Location) (int, error) {
	entries, err := SampleCalendarEntries(loc)
	if err != nil {
		return 0, err
	}
	return importer.ImportCalendarEntries(ctx, entries)
}
