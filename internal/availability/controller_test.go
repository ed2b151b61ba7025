package availability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"seatwatch/internal/portal"
	"seatwatch/internal/shared/config"
	"seatwatch/internal/shared/middleware"
	"seatwatch/pkg/cache"
)

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestEngine(t *testing.T, resolver SessionResolver) (*gin.Engine, *dayServer, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := newDayServer(t, dayFixture)
	svc := newTestService(t, srv, cache.NewMemoryStoreWithClock(fixedClock))

	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret"}}
	engine := gin.New()
	SetupAvailabilityRoutes(engine.Group("/api/v1"), NewController(svc, resolver, berlin), middleware.OptionalAuthWithConfig(cfg))
	return engine, srv, cfg
}

func get(engine *gin.Engine, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(env.Data, data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestAreasEndpoint(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	w := get(engine, "/api/v1/areas", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var areas []Area
	decode(t, w, &areas)
	if len(areas) != 2 || areas[1].DisplayName != "Galerie Nord" {
		t.Fatalf("unexpected areas %+v", areas)
	}
}

func TestRoomEntriesEndpoint(t *testing.T) {
	engine, srv, _ := newTestEngine(t, nil)

	var payload struct {
		Grid      DayGrid `json:"grid"`
		FromCache bool    `json:"from_cache"`
		Free      int     `json:"free"`
		Total     int     `json:"total"`
	}

	w := get(engine, "/api/v1/availability?date=2026-03-04&area=3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &payload)
	if payload.FromCache || payload.Free != 5 || payload.Total != 6 || payload.Grid.Date != "2026-03-04" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	w = get(engine, "/api/v1/availability?date=2026-03-04&area=3", "")
	decode(t, w, &payload)
	if !payload.FromCache || srv.count() != 1 {
		t.Fatalf("second lookup should be served from the store (requests=%d)", srv.count())
	}

	for _, target := range []string{
		"/api/v1/availability?date=04.03.2026&area=3",
		"/api/v1/availability?date=2026-03-04",
	} {
		if w := get(engine, target, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestPersonalizedRoomEntries(t *testing.T) {
	var resolved string
	resolver := func(_ *gin.Context, userID string) (*portal.Session, error) {
		resolved = userID
		return &portal.Session{UserID: userID, Cookies: portal.Cookies{{Name: "PHPSESSID", Value: "s1"}}}, nil
	}
	engine, srv, cfg := newTestEngine(t, resolver)

	if w := get(engine, "/api/v1/availability?date=2026-03-04&area=3&personal=true", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", w.Code)
	}

	token, _ := middleware.NewAccessToken("42", cfg.JWT.Secret, time.Hour)
	for i := 0; i < 2; i++ {
		w := get(engine, "/api/v1/availability?date=2026-03-04&area=3&personal=true", token)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var payload struct {
			FromCache bool `json:"from_cache"`
		}
		decode(t, w, &payload)
		if payload.FromCache {
			t.Fatalf("personalized views are never served from the store")
		}
	}
	if resolved != "42" || srv.count() != 2 {
		t.Fatalf("expected two portal fetches for user 42, got %d for %q", srv.count(), resolved)
	}
}

func TestSearchEndpoint(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	w := get(engine, "/api/v1/availability/search?start=2026-03-04&area=3&state=free&timeslot=0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var payload struct {
		Hits  []BookingHit `json:"hits"`
		Total int          `json:"total"`
	}
	decode(t, w, &payload)
	if payload.Total != 2 {
		t.Fatalf("expected the two free morning seats, got %+v", payload.Hits)
	}
	for _, hit := range payload.Hits {
		if hit.Seat.State != StateFree || hit.Timeslot.Index != 0 || hit.Date != "2026-03-04" {
			t.Fatalf("unexpected hit %+v", hit)
		}
	}

	if w := get(engine, "/api/v1/availability/search?state=gone", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown state, got %d", w.Code)
	}
}
