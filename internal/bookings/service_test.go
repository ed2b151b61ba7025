package bookings

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"seatwatch/internal/availability"
	"seatwatch/internal/credentials"
	"seatwatch/internal/history"
	"seatwatch/internal/notifications"
	"seatwatch/internal/portal"
	"seatwatch/internal/shared/config"
	"seatwatch/pkg/cache"
	"seatwatch/pkg/logger"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type staticTimeslots []availability.Timeslot

func (s staticTimeslots) Timeslots(context.Context) ([]availability.Timeslot, error) {
	return s, nil
}

var testTimeslots = staticTimeslots{
	{Index: 0, Name: "Vormittags", Label: "vormittags", Seconds: 43200},
	{Index: 1, Name: "Nachmittags", Label: "nachmittags", Seconds: 43260},
}

// fakePortal answers the booking pages with scripted responses
type fakePortal struct {
	*httptest.Server

	mu          sync.Mutex
	ajaxStatus  int
	ajaxBody    string
	finalStatus int
	finalBody   string
	forms       []url.Values
	handlerKeys []string
	deleteQuery url.Values
	deleteRef   string
}

func newFakePortal(t *testing.T) *fakePortal {
	t.Helper()
	fp := &fakePortal{ajaxStatus: http.StatusOK, ajaxBody: "{}", finalStatus: http.StatusFound}
	mux := http.NewServeMux()
	mux.HandleFunc("/mrbs/edit_entry.php", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "edit", Value: "1", Path: "/"})
		w.Write([]byte("<form></form>"))
	})
	mux.HandleFunc("/mrbs/edit_entry_handler.php", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		fp.mu.Lock()
		defer fp.mu.Unlock()
		fp.forms = append(fp.forms, r.PostForm)
		if c, err := r.Cookie("edit"); err == nil {
			fp.handlerKeys = append(fp.handlerKeys, c.Value)
		}
		if r.PostForm.Get("ajax") == "1" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(fp.ajaxStatus)
			w.Write([]byte(fp.ajaxBody))
			return
		}
		if fp.finalStatus >= 300 && fp.finalStatus < 400 {
			w.Header().Set("Location", "day.php")
		}
		w.WriteHeader(fp.finalStatus)
		w.Write([]byte(fp.finalBody))
	})
	mux.HandleFunc("/mrbs/del_entry.php", func(w http.ResponseWriter, r *http.Request) {
		fp.mu.Lock()
		defer fp.mu.Unlock()
		fp.deleteQuery = r.URL.Query()
		fp.deleteRef = r.Referer()
		if fp.finalStatus >= 300 && fp.finalStatus < 400 {
			w.Header().Set("Location", "report.php")
		}
		w.WriteHeader(fp.finalStatus)
		w.Write([]byte(fp.finalBody))
	})
	fp.Server = httptest.NewServer(mux)
	t.Cleanup(fp.Close)
	return fp
}

func (fp *fakePortal) script(ajaxBody string, finalStatus int, finalBody string) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.ajaxBody = ajaxBody
	fp.finalStatus = finalStatus
	fp.finalBody = finalBody
	fp.forms = nil
	fp.handlerKeys = nil
}

type recordingProducer struct {
	events []*notifications.BookingEvent
	err    error
}

func (p *recordingProducer) PublishBookingEvent(_ context.Context, event *notifications.BookingEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingProducer) Close() error                      { return nil }
func (p *recordingProducer) HealthCheck(context.Context) error { return nil }

type recordingHistory struct {
	attempts []*history.BookingAttempt
}

func (h *recordingHistory) Record(_ context.Context, attempt *history.BookingAttempt) error {
	h.attempts = append(h.attempts, attempt)
	return errors.New("database unavailable")
}

func (h *recordingHistory) List(context.Context, string, int, int) (*history.Page, error) {
	return nil, history.ErrHistoryDisabled
}

type fixture struct {
	portal   *fakePortal
	service  Service
	store    *credentials.Store
	producer *recordingProducer
	history  *recordingHistory
	session  *portal.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fp := newFakePortal(t)
	profile := config.DefaultProfile()
	gw, err := portal.New(portal.Options{
		BaseURL: fp.URL + "/mrbs/",
		Headers: profile.Headers,
		Timeout: 5 * time.Second,
		Logger:  logger.Discard(),
	})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	store, _ := credentials.NewStore(cache.NewMemoryStore(), "secret", time.Hour, time.Minute)
	store.SaveCredentials(context.Background(), "42", credentials.Credentials{User: "158066040087", Password: "pw"})

	f := &fixture{
		portal:   fp,
		store:    store,
		producer: &recordingProducer{},
		history:  &recordingHistory{},
		session:  &portal.Session{UserID: "42", Cookies: portal.Cookies{{Name: "PHPSESSID", Value: "s1"}}},
	}
	f.service = NewService(gw, store, testTimeslots, f.producer, f.history, Options{
		Profile:    profile.Booking,
		ReportDays: 60,
		Location:   time.UTC,
		Now:        func() time.Time { return testNow },
	}, logger.Discard())
	return f
}

func (f *fixture) request() *BookingRequest {
	return &BookingRequest{
		UserID:    "42",
		DayOffset: 2,
		Timeslot:  1,
		Area:      "3",
		Seat:      "Platz 2",
		RoomID:    "12",
		Session:   f.session,
	}
}

func TestBookSeatSuccessDependsOnlyOnFinalStatus(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name    string
		status  int
		body    string
		success bool
	}{
		{name: "found with error text", status: http.StatusFound, body: `<div class="error">Fehler</div>`, success: true},
		{name: "found with empty body", status: http.StatusFound, body: "", success: true},
		{name: "ok with success text", status: http.StatusOK, body: `<p>Buchung erfolgreich</p>`, success: false},
		{name: "see other", status: http.StatusSeeOther, body: "", success: false},
		{name: "server error", status: http.StatusInternalServerError, body: "valid_booking", success: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.portal.script(`{"valid_booking":true}`, tt.status, tt.body)
			result, err := f.service.BookSeat(context.Background(), f.request())
			if err != nil {
				t.Fatalf("book: %v", err)
			}
			if result.Success != tt.success {
				t.Fatalf("expected success=%v for status %d", tt.success, tt.status)
			}
			if tt.success && result.Message != nil {
				t.Fatalf("successful booking carries message %q", *result.Message)
			}
		})
	}
}

func TestBookSeatRulesBroken(t *testing.T) {
	f := newFixture(t)
	f.portal.script(`{"rules_broken": ["Already booked"]}`, http.StatusOK, `<div class="error">Anderer Fehler</div>`)

	result, err := f.service.BookSeat(context.Background(), f.request())
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if result.Success {
		t.Fatalf("expected a declined booking")
	}
	if result.Message == nil || *result.Message != "Already booked" {
		t.Fatalf("expected rule violation message, got %v", result.Message)
	}
}

func TestBookSeatMessageFallbacks(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name      string
		ajaxBody  string
		finalBody string
		want      string
	}{
		{name: "conflict markup", ajaxBody: `{"conflicts":["<a href=\"view_entry.php?id=3\">Platz 2</a> belegt"]}`, want: "Platz 2 belegt"},
		{name: "html error container", ajaxBody: `<html>not json</html>`, finalBody: `<div id="contents"><p class="error">Sie dürfen
 nicht buchen</p></div>`, want: "Sie dürfen nicht buchen"},
		{name: "no reason", ajaxBody: `{}`, finalBody: `<html><body>Formular</body></html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.portal.script(tt.ajaxBody, http.StatusOK, tt.finalBody)
			result, err := f.service.BookSeat(context.Background(), f.request())
			if err != nil {
				t.Fatalf("book: %v", err)
			}
			if result.Success {
				t.Fatalf("expected failure")
			}
			got := ""
			if result.Message != nil {
				got = *result.Message
			}
			if got != tt.want {
				t.Fatalf("expected message %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBookSeatForm(t *testing.T) {
	f := newFixture(t)
	f.portal.script(`{}`, http.StatusFound, "")

	if _, err := f.service.BookSeat(context.Background(), f.request()); err != nil {
		t.Fatalf("book: %v", err)
	}

	if len(f.portal.forms) != 2 {
		t.Fatalf("expected two submissions, got %d", len(f.portal.forms))
	}
	ajax, final := f.portal.forms[0], f.portal.forms[1]
	if ajax.Get("ajax") != "1" || final.Get("ajax") != "" {
		t.Fatalf("only the first submission is ajax")
	}

	checks := map[string]string{
		"name":          "158066040087",
		"create_by":     "158066040087",
		"description":   "nachmittags+",
		"start_day":     "4",
		"start_month":   "3",
		"start_year":    "2026",
		"start_seconds": "43260",
		"end_day":       "4",
		"end_seconds":   "43260",
		"area":          "3",
		"rooms[]":       "12",
		"type":          "K",
		"rep_id":        "0",
		"edit_type":     "series",
	}
	for field, want := range checks {
		if got := final.Get(field); got != want {
			t.Errorf("%s: expected %q, got %q", field, want, got)
		}
	}

	dayURL := f.portal.URL + "/mrbs/day.php?area=3&day=4&month=3&year=2026"
	if want := dayURL + "&returl=" + url.QueryEscape(dayURL); final.Get("returl") != want {
		t.Errorf("returl: expected %q, got %q", want, final.Get("returl"))
	}

	if len(f.portal.handlerKeys) != 2 {
		t.Errorf("cookies from the edit page were not replayed: %v", f.portal.handlerKeys)
	}
}

func TestBookSeatRecordsOutcome(t *testing.T) {
	f := newFixture(t)
	f.producer.err = errors.New("broker down")
	f.portal.script(`{"rules_broken":["Already booked"]}`, http.StatusOK, "")

	result, err := f.service.BookSeat(context.Background(), f.request())
	if err != nil {
		t.Fatalf("publishing or history failures must not fail the booking: %v", err)
	}
	if result.Success {
		t.Fatalf("expected decline")
	}

	if len(f.producer.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.producer.events))
	}
	event := f.producer.events[0]
	if event.Type != notifications.EventTypeBookingDeclined || event.Seat != "Platz 2" || event.Date != "2026-03-04" {
		t.Fatalf("unexpected event %+v", event)
	}
	if len(f.history.attempts) != 1 || f.history.attempts[0].Action != history.ActionBook {
		t.Fatalf("unexpected history %+v", f.history.attempts)
	}
}

func TestBookSeatPreconditions(t *testing.T) {
	f := newFixture(t)

	req := f.request()
	req.Session = nil
	if _, err := f.service.BookSeat(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	req = f.request()
	req.UserID = "unknown"
	if _, err := f.service.BookSeat(context.Background(), req); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}

	req = f.request()
	req.Timeslot = 9
	if _, err := f.service.BookSeat(context.Background(), req); !errors.Is(err, ErrUnknownTimeslot) {
		t.Fatalf("expected ErrUnknownTimeslot, got %v", err)
	}
}

func TestCancelReservation(t *testing.T) {
	f := newFixture(t)

	f.portal.script("", http.StatusFound, "")
	result, err := f.service.CancelReservation(context.Background(), "42", "901", f.session)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected a redirect to mean success")
	}

	q := f.portal.deleteQuery
	if q.Get("id") != "901" || q.Get("series") != "0" {
		t.Fatalf("unexpected delete query %v", q)
	}
	returl := q.Get("returl")
	if !strings.Contains(returl, "report.php") || !strings.Contains(returl, "creatormatch=158066040087") ||
		!strings.Contains(returl, "from_date=2026-03-02") || !strings.Contains(returl, "to_date=2026-05-01") {
		t.Fatalf("unexpected returl %q", returl)
	}
	if !strings.HasSuffix(f.portal.deleteRef, "/mrbs/view_entry.php?id=901") {
		t.Fatalf("unexpected referer %q", f.portal.deleteRef)
	}

	f.portal.script("", http.StatusOK, `<p class="error">Zugriff verweigert</p>`)
	result, err = f.service.CancelReservation(context.Background(), "42", "901", f.session)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.Success || result.Message == nil || *result.Message != "Zugriff verweigert" {
		t.Fatalf("expected decline with reason, got %+v", result)
	}

	if len(f.producer.events) != 2 || !f.producer.events[0].IsCancellation() {
		t.Fatalf("expected cancellation events, got %+v", f.producer.events)
	}

	if _, err := f.service.CancelReservation(context.Background(), "42", "abc", f.session); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for a non-numeric id, got %v", err)
	}
}
