package reservations

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"seatwatch/internal/credentials"
	"seatwatch/internal/portal"
	"seatwatch/pkg/logger"
)

const excerptLimit = 2048

// timeslot word, weekday, day, month, year
var startPattern = regexp.MustCompile(`^\s*(\S+)\W+(\S+?),?\s+(\d{1,2})\.?\s+(\S+)\s+(\d{4})`)

type Service interface {
	List(ctx context.Context, userID string, session *portal.Session) ([]ReservationRecord, error)
}

// Options configures the reservation lister
type Options struct {
	ReportDays int
	Location   *time.Location
	Now        func() time.Time
}

type service struct {
	gateway    *portal.Gateway
	store      *credentials.Store
	reportDays int
	loc        *time.Location
	now        func() time.Time
	logger     *logger.Logger
}

func NewService(gateway *portal.Gateway, store *credentials.Store, opts Options, log *logger.Logger) Service {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	reportDays := opts.ReportDays
	if reportDays <= 0 {
		reportDays = 60
	}
	return &service{
		gateway:    gateway,
		store:      store,
		reportDays: reportDays,
		loc:        loc,
		now:        now,
		logger:     log,
	}
}

func (s *service) List(ctx context.Context, userID string, session *portal.Session) ([]ReservationRecord, error) {
	// Reservations are filed under the canonical account id, which may
	// differ from the name the user logged in with.
	creator := userID
	creds, err := s.store.LoadCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	if creds != nil {
		creator = creds.User
	}

	y, m, d := s.now().In(s.loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	params := portal.ReportParams(today, today.AddDate(0, 0, s.reportDays), creator)
	params.Set("datatable", "1")
	params.Set("ajax", "1")

	var cookies portal.Cookies
	if session != nil {
		cookies = session.Cookies
	}
	resp, err := s.gateway.Do(ctx, portal.Request{
		Path:    portal.ReportPath,
		Params:  params,
		Cookies: cookies,
		Referer: portal.ReportPath,
		Ajax:    true,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamData, resp.Status)
	}

	var r report
	if err := resp.JSON(&r); err != nil {
		s.logger.LogParseFailure(ctx, resp.URL, "report is not JSON", logger.Excerpt(resp.Text(), excerptLimit))
		return nil, fmt.Errorf("%w: %v", ErrUpstreamData, err)
	}

	records := make([]ReservationRecord, 0, len(r.Data))
	for _, row := range r.Data {
		record, ok := parseRow(row)
		if !ok {
			s.logger.Warn("Skipping short report row", "cells", len(row))
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// parseRow reads the entry link, area, room and start columns of one row
func parseRow(row []interface{}) (ReservationRecord, bool) {
	if len(row) < 4 {
		return ReservationRecord{}, false
	}
	record := ReservationRecord{
		ID:   entryID(cell(row, 0)),
		Room: text(cell(row, 1)),
		Seat: text(cell(row, 2)),
	}

	start := text(cell(row, 3))
	m := startPattern.FindStringSubmatch(start)
	if m == nil {
		record.DateLabel = start
		return record, true
	}
	day, _ := strconv.Atoi(m[3])
	year, _ := strconv.Atoi(m[5])
	record.TimeslotLabel = m[1]
	record.Weekday = m[2]
	record.Day = day
	record.Month = m[4]
	record.Year = year
	record.DateLabel = fmt.Sprintf("%s, %d. %s %d", m[2], day, m[4], year)
	return record, true
}

func cell(row []interface{}, i int) string {
	switch v := row[i].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func text(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// entryID takes the id parameter of the view_entry link in the fragment
func entryID(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	var id string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !strings.Contains(href, portal.ViewEntryPath) {
			return true
		}
		if u, err := url.Parse(href); err == nil {
			id = u.Query().Get("id")
		}
		return id == ""
	})
	return id
}
