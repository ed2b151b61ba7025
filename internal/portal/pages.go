package portal

import (
	"net/url"
	"strconv"
	"time"
)

// Portal pages, relative to the base URL
const (
	DayPath              = "day.php"
	EditEntryPath        = "edit_entry.php"
	EditEntryHandlerPath = "edit_entry_handler.php"
	DeleteEntryPath      = "del_entry.php"
	ViewEntryPath        = "view_entry.php"
	ReportPath           = "report.php"
)

// DayParams addresses the day view of one area
func DayParams(date time.Time, area string) url.Values {
	return url.Values{
		"year":  {strconv.Itoa(date.Year())},
		"month": {strconv.Itoa(int(date.Month()))},
		"day":   {strconv.Itoa(date.Day())},
		"area":  {area},
	}
}

// DayURL is the absolute URL of the day view of one area
func (g *Gateway) DayURL(date time.Time, area string) string {
	return g.URL(DayPath, DayParams(date, area))
}

// ReportParams selects the reservations created by creator between from and to
func ReportParams(from, to time.Time, creator string) url.Values {
	return url.Values{
		"from_date":       {from.Format("2006-01-02")},
		"to_date":         {to.Format("2006-01-02")},
		"creatormatch":    {creator},
		"match_private":   {"2"},
		"match_confirmed": {"2"},
		"output":          {"0"},
		"output_format":   {"0"},
		"sortby":          {"r"},
		"sumby":           {"d"},
		"phase":           {"2"},
	}
}
