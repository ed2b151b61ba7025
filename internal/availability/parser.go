package availability

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"seatwatch/pkg/logger"
)

const excerptLimit = 2048

type column struct {
	seat   string
	roomID string
}

// carried is a cell spanning several rows, repeated into the rows below
type carried struct {
	entry SeatEntry
	rows  int
}

// ParseDayGrid reads the day view table of one area. timeslots maps row
// labels to slots; when it is empty the slots are taken from the page.
func ParseDayGrid(body []byte, area string, timeslots []Timeslot) (*DayGrid, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, parseError(body, "invalid html: %v", err)
	}

	table := doc.Find("table#day_main").First()
	if table.Length() == 0 {
		return nil, parseError(body, "day table not found")
	}

	var columns []column
	table.Find("thead th[data-room]").Each(func(_ int, th *goquery.Selection) {
		roomID, _ := th.Attr("data-room")
		columns = append(columns, column{seat: firstText(th), roomID: roomID})
	})
	if len(columns) == 0 {
		return nil, parseError(body, "no seat columns in table header")
	}

	rows := dataRows(table)
	if rows.Length() == 0 {
		return nil, parseError(body, "no timeslot rows in table body")
	}

	if len(timeslots) == 0 {
		timeslots = timeslotsFromRows(rows)
	}

	grid := &DayGrid{
		Area:      area,
		Timeslots: timeslots,
		Slots:     make(map[int][]SeatEntry, len(timeslots)),
	}
	spans := make([]carried, len(columns))

	var rowErr error
	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		slot := -1
		entries := make([]SeatEntry, 0, len(columns))
		col := 0

		// Fill columns still covered by a cell from a row above.
		fill := func() {
			for col < len(columns) && spans[col].rows > 0 {
				entries = append(entries, spans[col].entry)
				spans[col].rows--
				col++
			}
		}

		row.ChildrenFiltered("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
			if td.HasClass("row_labels") {
				label := rowLabel(td)
				ts, ok := matchTimeslot(timeslots, label)
				if !ok {
					rowErr = parseError(body, "unknown timeslot label %q", label)
					return false
				}
				slot = ts.Index
				return true
			}

			fill()
			if col >= len(columns) {
				rowErr = parseError(body, "row has more cells than the %d seat columns", len(columns))
				return false
			}

			entry := seatEntry(td, area, columns[col])
			entries = append(entries, entry)
			if span := rowSpan(td); span > 1 {
				spans[col] = carried{entry: entry, rows: span - 1}
			}
			col++
			return true
		})
		if rowErr != nil {
			return false
		}
		fill()

		if slot < 0 {
			rowErr = parseError(body, "row without timeslot label")
			return false
		}
		if len(entries) != len(columns) {
			rowErr = parseError(body, "row has %d cells for %d seat columns", len(entries), len(columns))
			return false
		}
		if _, dup := grid.Slots[slot]; dup {
			rowErr = parseError(body, "timeslot %d appears in more than one row", slot)
			return false
		}
		grid.Slots[slot] = entries
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	return grid, nil
}

// ParseAreas reads the area navigation of any portal page, in page order
func ParseAreas(body []byte) ([]Area, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, parseError(body, "invalid html: %v", err)
	}

	var areas []Area
	seen := make(map[string]bool)
	doc.Find("#dwm_areas li").Each(func(_ int, li *goquery.Selection) {
		href, ok := li.Find("a[href]").First().Attr("href")
		if !ok {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		id := u.Query().Get("area")
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		areas = append(areas, Area{ID: id, DisplayName: collapseSpace(li.Text())})
	})
	if len(areas) == 0 {
		return nil, parseError(body, "no areas in navigation")
	}
	return areas, nil
}

// DiscoverTimeslots derives the timeslots from the row labels of a day view
func DiscoverTimeslots(body []byte) ([]Timeslot, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, parseError(body, "invalid html: %v", err)
	}
	table := doc.Find("table#day_main").First()
	if table.Length() == 0 {
		return nil, parseError(body, "day table not found")
	}
	timeslots := timeslotsFromRows(dataRows(table))
	if len(timeslots) == 0 {
		return nil, parseError(body, "no timeslot labels in day table")
	}
	return timeslots, nil
}

func dataRows(table *goquery.Selection) *goquery.Selection {
	return table.Find("tbody tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.HasClass("even_row") || tr.HasClass("odd_row")
	})
}

// timeslotsFromRows numbers the labelled rows in order. The seconds value
// follows the periods encoding of the booking form: noon plus one minute
// per period.
func timeslotsFromRows(rows *goquery.Selection) []Timeslot {
	var timeslots []Timeslot
	rows.Each(func(_ int, tr *goquery.Selection) {
		td := tr.ChildrenFiltered("td.row_labels").First()
		if td.Length() == 0 {
			return
		}
		label := rowLabel(td)
		if label == "" {
			return
		}
		index := len(timeslots)
		timeslots = append(timeslots, Timeslot{
			Index:   index,
			Name:    label,
			Label:   strings.ToLower(label),
			Seconds: 43200 + 60*index,
		})
	})
	return timeslots
}

func rowLabel(td *goquery.Selection) string {
	if div := td.Find(".celldiv").First(); div.Length() > 0 {
		return collapseSpace(div.Text())
	}
	return collapseSpace(td.Text())
}

func matchTimeslot(timeslots []Timeslot, label string) (Timeslot, bool) {
	for _, ts := range timeslots {
		if strings.EqualFold(ts.Label, label) || strings.EqualFold(ts.Name, label) {
			return ts, true
		}
	}
	return Timeslot{}, false
}

func seatEntry(td *goquery.Selection, area string, col column) SeatEntry {
	classes := strings.Fields(td.AttrOr("class", ""))
	has := func(name string) bool {
		for _, c := range classes {
			if c == name {
				return true
			}
		}
		return false
	}

	entry := SeatEntry{
		Area:   area,
		Seat:   col.seat,
		RoomID: col.roomID,
		State:  classify(has),
	}
	if entry.State != StateFree && entry.State != StateOccupiedByMe {
		category := occupier(has)
		entry.Occupier = &category
	}
	if id := entryID(td); id != "" {
		entry.EntryID = &id
	}
	return entry
}

// classify applies the markers in priority order; a cell may carry several.
func classify(has func(string) bool) State {
	switch {
	case has("new"):
		return StateFree
	case has("private"):
		return StateOccupiedByOther
	case has("writable"):
		return StateOccupiedByMe
	default:
		return StateUnknown
	}
}

func occupier(has func(string) bool) OccupierCategory {
	switch {
	case has("I"):
		return OccupierInternal
	case has("E"):
		return OccupierExternal
	case has("K"):
		return OccupierStudent
	case has("S"):
		return OccupierStaff
	default:
		return OccupierSpecial
	}
}

func entryID(td *goquery.Selection) string {
	if id, ok := td.Attr("data-id"); ok && id != "" {
		return id
	}
	if id, ok := td.Find("[data-id]").First().Attr("data-id"); ok && id != "" {
		return id
	}
	href, ok := td.Find("a[href*='view_entry.php']").First().Attr("href")
	if !ok {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("id")
}

func rowSpan(td *goquery.Selection) int {
	n, err := strconv.Atoi(td.AttrOr("rowspan", "1"))
	if err != nil {
		return 1
	}
	return n
}

// firstText returns the first non-blank text node below s. Header cells
// carry the seat label first, followed by capacity and similar extras.
func firstText(s *goquery.Selection) string {
	var text string
	s.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if goquery.NodeName(c) == "#text" {
			text = strings.TrimSpace(c.Text())
		} else {
			text = firstText(c)
		}
		return text == ""
	})
	return text
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseError(body []byte, format string, args ...interface{}) *ParseError {
	return &ParseError{
		Reason:  fmt.Sprintf(format, args...),
		Excerpt: logger.Excerpt(string(body), excerptLimit),
	}
}
