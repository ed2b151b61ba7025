package bookings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-playground/validator/v10"

	"seatwatch/internal/availability"
	"seatwatch/internal/credentials"
	"seatwatch/internal/history"
	"seatwatch/internal/notifications"
	"seatwatch/internal/portal"
	"seatwatch/internal/shared/config"
	"seatwatch/pkg/logger"
)

var validate = validator.New()

type Service interface {
	BookSeat(ctx context.Context, req *BookingRequest) (*BookingResult, error)
	CancelReservation(ctx context.Context, userID, entryID string, session *portal.Session) (*BookingResult, error)
}

// TimeslotSource resolves timeslot indexes to their booking form values
type TimeslotSource interface {
	Timeslots(ctx context.Context) ([]availability.Timeslot, error)
}

// Options configures the booking service
type Options struct {
	Profile    config.BookingProfile
	ReportDays int
	Location   *time.Location
	Now        func() time.Time
}

type service struct {
	gateway    *portal.Gateway
	store      *credentials.Store
	timeslots  TimeslotSource
	producer   notifications.EventProducer
	history    history.Service
	profile    config.BookingProfile
	reportDays int
	loc        *time.Location
	now        func() time.Time
	logger     *logger.Logger
}

func NewService(
	gateway *portal.Gateway,
	store *credentials.Store,
	timeslots TimeslotSource,
	producer notifications.EventProducer,
	historyService history.Service,
	opts Options,
	log *logger.Logger,
) Service {
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
		timeslots:  timeslots,
		producer:   producer,
		history:    historyService,
		profile:    opts.Profile,
		reportDays: reportDays,
		loc:        loc,
		now:        now,
		logger:     log,
	}
}

func (s *service) today() time.Time {
	y, m, d := s.now().In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

func (s *service) BookSeat(ctx context.Context, req *BookingRequest) (*BookingResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	creds, err := s.store.LoadCredentials(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, ErrNoCredentials
	}

	timeslot, err := s.timeslot(ctx, req.Timeslot)
	if err != nil {
		return nil, err
	}

	date := s.today().AddDate(0, 0, req.DayOffset)
	dayURL := s.gateway.DayURL(date, req.Area)

	editParams := url.Values{
		"area":   {req.Area},
		"room":   {req.RoomID},
		"period": {"0"},
		"year":   {strconv.Itoa(date.Year())},
		"month":  {strconv.Itoa(int(date.Month()))},
		"day":    {strconv.Itoa(date.Day())},
	}
	edit, err := s.gateway.Do(ctx, portal.Request{
		Path:    portal.EditEntryPath,
		Params:  editParams,
		Cookies: req.Session.Cookies,
		Referer: dayURL,
	})
	if err != nil {
		return nil, err
	}
	editURL := s.gateway.URL(portal.EditEntryPath, editParams)

	form := s.bookingForm(creds.User, timeslot, date, req.Area, req.RoomID, dayURL)

	// The ajax submission only reports broken rules; it never books.
	ajaxForm := cloneValues(form)
	ajaxForm.Set("ajax", "1")
	check, err := s.gateway.Do(ctx, portal.Request{
		Method:  http.MethodPost,
		Path:    portal.EditEntryHandlerPath,
		Form:    ajaxForm,
		Cookies: edit.Cookies,
		Referer: editURL,
		Ajax:    true,
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.Do(ctx, portal.Request{
		Method:     http.MethodPost,
		Path:       portal.EditEntryHandlerPath,
		Form:       form,
		Cookies:    check.Cookies,
		Referer:    editURL,
		NoRedirect: true,
	})
	if err != nil {
		return nil, err
	}

	result := &BookingResult{Success: resp.Status == http.StatusFound}
	if !result.Success {
		result.Message = firstMessage(precheckMessage(check), s.errorText(resp))
	}

	target := fmt.Sprintf("%s %s area %s %s", availability.DateKey(date), timeslot.Name, req.Area, req.Seat)
	s.logger.LogBookingOutcome(ctx, "book", req.UserID, target, result.Success, deref(result.Message))

	eventType := notifications.EventTypeBookingSucceeded
	if !result.Success {
		eventType = notifications.EventTypeBookingDeclined
	}
	event := notifications.NewBookingEvent(eventType, req.UserID)
	event.Date = availability.DateKey(date)
	event.Area = req.Area
	event.Seat = req.Seat
	event.RoomID = req.RoomID
	event.Timeslot = timeslot.Name
	event.Success = result.Success
	event.Message = result.Message

	s.record(ctx, event, &history.BookingAttempt{
		UserID:   req.UserID,
		Action:   history.ActionBook,
		Date:     event.Date,
		Area:     req.Area,
		Seat:     req.Seat,
		RoomID:   req.RoomID,
		Timeslot: timeslot.Name,
		Success:  result.Success,
		Message:  result.Message,
	})

	return result, nil
}

func (s *service) CancelReservation(ctx context.Context, userID, entryID string, session *portal.Session) (*BookingResult, error) {
	if userID == "" || entryID == "" || session == nil {
		return nil, fmt.Errorf("%w: user, entry and session are required", ErrInvalidRequest)
	}
	if _, err := strconv.Atoi(entryID); err != nil {
		return nil, fmt.Errorf("%w: entry id %q is not numeric", ErrInvalidRequest, entryID)
	}

	creator := userID
	creds, err := s.store.LoadCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	if creds != nil {
		creator = creds.User
	}

	today := s.today()
	returl := s.gateway.URL(portal.ReportPath, portal.ReportParams(today, today.AddDate(0, 0, s.reportDays), creator))

	resp, err := s.gateway.Do(ctx, portal.Request{
		Path: portal.DeleteEntryPath,
		Params: url.Values{
			"id":     {entryID},
			"series": {"0"},
			"returl": {returl},
		},
		Cookies:    session.Cookies,
		Referer:    portal.ViewEntryPath + "?id=" + url.QueryEscape(entryID),
		NoRedirect: true,
	})
	if err != nil {
		return nil, err
	}

	result := &BookingResult{Success: resp.IsRedirect()}
	if !result.Success {
		result.Message = s.errorText(resp)
	}
	s.logger.LogBookingOutcome(ctx, "cancel", userID, "entry "+entryID, result.Success, deref(result.Message))

	eventType := notifications.EventTypeReservationCancelled
	if !result.Success {
		eventType = notifications.EventTypeCancellationDeclined
	}
	event := notifications.NewBookingEvent(eventType, userID)
	event.EntryID = entryID
	event.Success = result.Success
	event.Message = result.Message

	s.record(ctx, event, &history.BookingAttempt{
		UserID:  userID,
		Action:  history.ActionCancel,
		EntryID: entryID,
		Success: result.Success,
		Message: result.Message,
	})

	return result, nil
}

func (s *service) timeslot(ctx context.Context, index int) (availability.Timeslot, error) {
	timeslots, err := s.timeslots.Timeslots(ctx)
	if err != nil {
		return availability.Timeslot{}, err
	}
	for _, ts := range timeslots {
		if ts.Index == index {
			return ts, nil
		}
	}
	return availability.Timeslot{}, fmt.Errorf("%w: %d", ErrUnknownTimeslot, index)
}

// bookingForm builds the edit_entry_handler payload. Start and end are the
// same instant: a period booking is addressed by its start alone.
func (s *service) bookingForm(user string, ts availability.Timeslot, date time.Time, area, roomID, dayURL string) url.Values {
	day := strconv.Itoa(date.Day())
	month := strconv.Itoa(int(date.Month()))
	year := strconv.Itoa(date.Year())
	seconds := strconv.Itoa(ts.Seconds)

	return url.Values{
		"name":          {user},
		"create_by":     {user},
		"description":   {strings.ToLower(ts.Name) + "+"},
		"start_day":     {day},
		"start_month":   {month},
		"start_year":    {year},
		"start_seconds": {seconds},
		"end_day":       {day},
		"end_month":     {month},
		"end_year":      {year},
		"end_seconds":   {seconds},
		"area":          {area},
		"rooms[]":       {roomID},
		"type":          {s.profile.Type},
		"returl":        {selfReturnURL(dayURL)},
		"rep_id":        {"0"},
		"edit_type":     {"series"},
	}
}

// selfReturnURL appends the escaped URL to itself as its own returl
// parameter, which is the form the portal generates and expects back.
func selfReturnURL(u string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "returl=" + url.QueryEscape(u)
}

// precheckMessage reads the reason from the ajax answer, if it has one
func precheckMessage(resp *portal.Response) *string {
	var pc precheck
	if err := resp.JSON(&pc); err != nil {
		return nil
	}
	for _, list := range [][]string{pc.RulesBroken, pc.Conflicts} {
		var parts []string
		for _, item := range list {
			if text := htmlText(item); text != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) > 0 {
			msg := strings.Join(parts, "; ")
			return &msg
		}
	}
	return nil
}

// errorText reads the error container of an html answer
func (s *service) errorText(resp *portal.Response) *string {
	if s.profile.ErrorSelector == "" {
		return nil
	}
	doc, err := resp.Document()
	if err != nil {
		return nil
	}
	text := strings.Join(strings.Fields(doc.Find(s.profile.ErrorSelector).First().Text()), " ")
	if text == "" {
		return nil
	}
	return &text
}

// record publishes the event and stores the attempt. Neither may change
// the outcome reported to the caller.
func (s *service) record(ctx context.Context, event *notifications.BookingEvent, attempt *history.BookingAttempt) {
	if s.producer != nil {
		if err := s.producer.PublishBookingEvent(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish booking event", "type", event.Type, "error", err)
		}
	}
	if s.history != nil {
		if err := s.history.Record(ctx, attempt); err != nil && !errors.Is(err, history.ErrHistoryDisabled) {
			s.logger.WarnContext(ctx, "Failed to record booking attempt", "action", attempt.Action, "error", err)
		}
	}
}

func htmlText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func firstMessage(candidates ...*string) *string {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
