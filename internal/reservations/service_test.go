package reservations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"seatwatch/internal/credentials"
	"seatwatch/internal/portal"
	"seatwatch/internal/session"
	"seatwatch/internal/shared/config"
	"seatwatch/internal/shared/middleware"
	"seatwatch/pkg/cache"
	"seatwatch/pkg/logger"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

const reportBody = `{"aaData":[
 ["<a href=\"view_entry.php?id=901&amp;area=3&amp;day=4&amp;month=3&amp;year=2026\" title=\"Vormittags\">Vormittags</a>", "Lesesaal", "Platz 2", "<span title=\"1772611200\"></span>Vormittags - Mittwoch, 04. März 2026", "Vormittags - Mittwoch, 04. März 2026"],
 ["<a href=\"view_entry.php?id=902\">Abends</a>", "Galerie Nord", "Platz 17", "Abends - Do 5 März 2026"],
 ["<a href=\"view_entry.php?id=903\">x</a>", "Lesesaal", "Platz 3", "ganztägig"],
 ["too", "short"]
]}`

type reportServer struct {
	*httptest.Server
	status int
	body   string
	query  url.Values
	ajax   string
	cookie string
}

func newReportServer(t *testing.T) *reportServer {
	t.Helper()
	rs := &reportServer{status: http.StatusOK, body: reportBody}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mrbs/report.php" {
			http.NotFound(w, r)
			return
		}
		rs.query = r.URL.Query()
		rs.ajax = r.Header.Get("X-Requested-With")
		if c, err := r.Cookie("PHPSESSID"); err == nil {
			rs.cookie = c.Value
		}
		w.WriteHeader(rs.status)
		w.Write([]byte(rs.body))
	}))
	t.Cleanup(rs.Close)
	return rs
}

func newTestService(t *testing.T, rs *reportServer) (Service, *credentials.Store) {
	t.Helper()
	gw, err := portal.New(portal.Options{
		BaseURL: rs.URL + "/mrbs/",
		Headers: config.DefaultProfile().Headers,
		Timeout: 5 * time.Second,
		Logger:  logger.Discard(),
	})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	store, _ := credentials.NewStore(cache.NewMemoryStore(), "secret", time.Hour, time.Minute)
	svc := NewService(gw, store, Options{
		ReportDays: 60,
		Location:   time.UTC,
		Now:        func() time.Time { return testNow },
	}, logger.Discard())
	return svc, store
}

var testSession = &portal.Session{UserID: "42", Cookies: portal.Cookies{{Name: "PHPSESSID", Value: "s1"}}}

func TestListParsesReport(t *testing.T) {
	rs := newReportServer(t)
	svc, store := newTestService(t, rs)
	store.SaveCredentials(context.Background(), "42", credentials.Credentials{User: "158066040087", Password: "pw"})

	records, err := svc.List(context.Background(), "42", testSession)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	want := []ReservationRecord{
		{ID: "901", Room: "Lesesaal", Seat: "Platz 2", DateLabel: "Mittwoch, 4. März 2026", TimeslotLabel: "Vormittags", Weekday: "Mittwoch", Day: 4, Month: "März", Year: 2026},
		{ID: "902", Room: "Galerie Nord", Seat: "Platz 17", DateLabel: "Do, 5. März 2026", TimeslotLabel: "Abends", Weekday: "Do", Day: 5, Month: "März", Year: 2026},
		{ID: "903", Room: "Lesesaal", Seat: "Platz 3", DateLabel: "ganztägig"},
	}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d: %+v", len(want), len(records), records)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("record %d: expected %+v, got %+v", i, want[i], records[i])
		}
	}

	checks := map[string]string{
		"creatormatch": "158066040087",
		"from_date":    "2026-03-02",
		"to_date":      "2026-05-01",
		"datatable":    "1",
		"ajax":         "1",
		"phase":        "2",
	}
	for param, want := range checks {
		if got := rs.query.Get(param); got != want {
			t.Errorf("%s: expected %q, got %q", param, want, got)
		}
	}
	if rs.ajax != "XMLHttpRequest" || rs.cookie != "s1" {
		t.Errorf("report requested without ajax header or session (%q, %q)", rs.ajax, rs.cookie)
	}
}

func TestListFallsBackToUserID(t *testing.T) {
	rs := newReportServer(t)
	svc, _ := newTestService(t, rs)

	if _, err := svc.List(context.Background(), "alice", testSession); err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := rs.query.Get("creatormatch"); got != "alice" {
		t.Fatalf("expected creatormatch alice, got %q", got)
	}
}

func TestListDistinguishesEmptyFromFailure(t *testing.T) {
	rs := newReportServer(t)
	svc, _ := newTestService(t, rs)

	rs.body = `{"aaData":[]}`
	records, err := svc.List(context.Background(), "42", testSession)
	if err != nil {
		t.Fatalf("empty report must not fail: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected an empty, non-nil list, got %#v", records)
	}

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"aaData":[]}`},
		{name: "forbidden", status: http.StatusForbidden, body: ""},
		{name: "login page instead of json", status: http.StatusOK, body: "<html>Anmelden</html>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs.status, rs.body = tt.status, tt.body
			records, err := svc.List(context.Background(), "42", testSession)
			if !errors.Is(err, ErrUpstreamData) {
				t.Fatalf("expected ErrUpstreamData, got %v", err)
			}
			if records != nil {
				t.Fatalf("failure returned records %+v", records)
			}
		})
	}
}

type stubSessions struct{}

func (stubSessions) Login(_ context.Context, req *session.LoginRequest) (*portal.Session, error) {
	return &portal.Session{UserID: req.UserID, Cookies: testSession.Cookies}, nil
}

func (stubSessions) Captcha(context.Context) ([]byte, *portal.Session, error) { return nil, nil, nil }
func (stubSessions) Logout(context.Context, string) error                     { return nil }

func TestListReservationsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rs := newReportServer(t)
	svc, _ := newTestService(t, rs)

	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret"}}
	engine := gin.New()
	SetupReservationRoutes(engine.Group("/api/v1"), NewController(svc),
		middleware.JWTAuthWithConfig(cfg), session.RequireSession(stubSessions{}))

	token, err := middleware.NewAccessToken("42", cfg.JWT.Secret, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Data struct {
			Reservations []ReservationRecord `json:"reservations"`
			Total        int                 `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Total != 3 || body.Data.Reservations[0].ID != "901" {
		t.Fatalf("unexpected payload %s", w.Body.String())
	}

	rs.status = http.StatusInternalServerError
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for an unreadable report, got %d", w.Code)
	}

	unauth := httptest.NewRequest(http.MethodGet, "/api/v1/reservations", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, unauth)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}
