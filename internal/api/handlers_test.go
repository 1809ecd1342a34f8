package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/allerhed/rythm/internal/domain"
	"github.com/allerhed/rythm/internal/persistence/memory"
	"github.com/allerhed/rythm/pkg/auth"
)

const (
	testUser    = "6f1c2a3b-4d5e-4f60-8a7b-9c0d1e2f3a4b"
	testTenant  = "11111111-2222-4333-8444-555555555555"
	otherTenant = "99999999-8888-4777-8666-555555555555"
)

var testAuth = auth.Config{Secret: "test-secret", Issuer: "rythm.identity"}

type harness struct {
	server *httptest.Server
	store  *memory.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	service := domain.NewService(store)

	mux := http.NewServeMux()
	NewHandler(service).RegisterRoutes(mux)

	skip := func(r *http.Request) bool { return r.URL.Path == "/healthz" }
	server := httptest.NewServer(auth.NewMiddleware(testAuth, skip, Unauthorized).Wrap(mux))
	t.Cleanup(server.Close)
	return &harness{server: server, store: store}
}

func token(t *testing.T, user, tenant string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       user,
		"tenant_id": tenant,
		"iss":       testAuth.Issuer,
		"exp":       time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testAuth.Secret))
	require.NoError(t, err)
	return signed
}

func (h *harness) do(t *testing.T, method, path, bearer, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, h.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := h.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeSession(t *testing.T, body []byte) SessionView {
	t.Helper()
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Session
}

func errorType(t *testing.T, body []byte) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload["type"]
}

const benchPress = `{
  "name": "Push day",
  "category": "strength",
  "exercises": [{
    "name": "Bench Press",
    "sets": [{"value_1_type": "weight_kg", "value_1_numeric": 80, "value_2_type": "reps", "value_2_numeric": 8}]
  }]
}`

func TestCreateBenchPressSession(t *testing.T) {
	h := newHarness(t)
	bearer := token(t, testUser, testTenant)

	resp, body := h.do(t, http.MethodPost, "/sessions", bearer, benchPress)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	session := decodeSession(t, body)
	require.Equal(t, "Push day", session.Name)
	require.Equal(t, 3600, session.DurationSeconds)
	require.Len(t, session.Exercises, 1)
	require.Equal(t, "Bench Press", session.Exercises[0].Name)
	require.Len(t, session.Exercises[0].Sets, 1)

	set := session.Exercises[0].Sets[0]
	require.Equal(t, 1, set.SetIndex)
	require.InDelta(t, 80, *set.Value1Numeric, 1e-9)
	require.InDelta(t, 8, *set.Value2Numeric, 1e-9)
	require.Equal(t, "weight_kg", *set.Value1Type)

	require.Len(t, h.store.Exercises(), 1)

	resp, body = h.do(t, http.MethodGet, "/sessions/"+session.ID, bearer, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, session.ID, decodeSession(t, body).ID)
}

func TestMeasurementFieldSpellings(t *testing.T) {
	h := newHarness(t)
	bearer := token(t, testUser, testTenant)

	payload := `{
	  "name": "Mixed clients",
	  "category": "hybrid",
	  "duration": 45,
	  "exercises": [{
	    "name": "Row",
	    "sets": [
	      {"value_1_type": "weight_kg", "value1": 60, "value_2_type": "reps", "value2": "10"},
	      {"value_1_type": "weight_kg", "value_1_numeric": 70, "value1": 1},
	      {"value_1_type": "weight_kg", "value_1_numeric": null, "value1": 65},
	      {"value_1_type": "weight_kg", "value_1_numeric": 0, "value_2_type": "reps"}
	    ]
	  }]
	}`
	resp, body := h.do(t, http.MethodPost, "/sessions", bearer, payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	session := decodeSession(t, body)
	require.Equal(t, 45*60, session.DurationSeconds)
	sets := session.Exercises[0].Sets
	require.Len(t, sets, 4)

	require.InDelta(t, 60, *sets[0].Value1Numeric, 1e-9)
	require.InDelta(t, 10, *sets[0].Value2Numeric, 1e-9)
	require.InDelta(t, 70, *sets[1].Value1Numeric, 1e-9)
	require.InDelta(t, 65, *sets[2].Value1Numeric, 1e-9)
	require.Nil(t, sets[3].Value1Numeric)
	require.Nil(t, sets[3].Value1Type)
	require.Nil(t, sets[3].Value2Type)
}

func TestRequestsWithoutCredentialsAreRejected(t *testing.T) {
	h := newHarness(t)

	for _, bearer := range []string{"", "not-a-jwt", token(t, "not-a-uuid", testTenant)} {
		resp, body := h.do(t, http.MethodGet, "/sessions", bearer, "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "unauthorized", errorType(t, body))
	}

	resp, body := h.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
}

func TestOtherTenantSeesNotFound(t *testing.T) {
	h := newHarness(t)
	owner := token(t, testUser, testTenant)
	intruder := token(t, testUser, otherTenant)

	resp, body := h.do(t, http.MethodPost, "/sessions", owner, benchPress)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decodeSession(t, body).ID

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		payload := ""
		if method == http.MethodPut {
			payload = benchPress
		}
		resp, body := h.do(t, method, "/sessions/"+id, intruder, payload)
		require.Equal(t, http.StatusNotFound, resp.StatusCode, method)
		require.Equal(t, "not_found", errorType(t, body))
	}

	resp, _ = h.do(t, http.MethodGet, "/sessions/not-a-uuid", owner, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateAndDeleteSession(t *testing.T) {
	h := newHarness(t)
	bearer := token(t, testUser, testTenant)

	resp, body := h.do(t, http.MethodPost, "/sessions", bearer, benchPress)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decodeSession(t, body).ID

	update := `{"name": "Push day v2", "exercises": [{"name": "bench press", "sets": [{"value_1_numeric": 85}, {"value_1_numeric": 87.5}]}]}`
	resp, body = h.do(t, http.MethodPut, "/sessions/"+id, bearer, update)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	updated := decodeSession(t, body)
	require.Equal(t, "Push day v2", updated.Name)
	require.Equal(t, "strength", updated.Category)
	require.Len(t, updated.Exercises, 1)
	require.Len(t, updated.Exercises[0].Sets, 2)
	require.Len(t, h.store.Exercises(), 1)

	resp, body = h.do(t, http.MethodDelete, "/sessions/urn:uuid:"+strings.ToUpper(id), bearer, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var deleted DeleteSessionResponse
	require.NoError(t, json.Unmarshal(body, &deleted))
	require.Equal(t, DeleteSessionResponse{SessionID: id, SessionName: "Push day v2"}, deleted)

	resp, _ = h.do(t, http.MethodGet, "/sessions/"+id, bearer, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBadPayloadsReturn400(t *testing.T) {
	h := newHarness(t)
	bearer := token(t, testUser, testTenant)

	cases := map[string]struct {
		body string
		kind string
	}{
		"malformed json":     {`{"name":`, "invalid_request"},
		"missing name":       {`{"category":"strength"}`, "validation_failed"},
		"bad category":       {`{"name":"x","category":"yoga"}`, "validation_failed"},
		"object measurement": {`{"name":"x","category":"cardio","exercises":[{"name":"Run","sets":[{"value1":{}}]}]}`, "invalid_request"},
		"anonymous exercise": {`{"name":"x","category":"cardio","exercises":[{"sets":[]}]}`, "validation_failed"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp, body := h.do(t, http.MethodPost, "/sessions", bearer, tc.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
			require.Equal(t, tc.kind, errorType(t, body))
		})
	}
}

func TestListSessions(t *testing.T) {
	h := newHarness(t)
	bearer := token(t, testUser, testTenant)

	for _, started := range []string{"2025-05-09T08:00:00Z", "2025-05-10T08:00:00Z", "2025-05-10T18:00:00Z"} {
		payload := `{"name":"s","category":"cardio","started_at":"` + started + `"}`
		resp, _ := h.do(t, http.MethodPost, "/sessions", bearer, payload)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := h.do(t, http.MethodGet, "/sessions?date=2025-05-10", bearer, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var day ListSessionsResponse
	require.NoError(t, json.Unmarshal(body, &day))
	require.Len(t, day.Sessions, 2)

	resp, body = h.do(t, http.MethodGet, "/sessions?limit=2", bearer, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page ListSessionsResponse
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Sessions, 2)
	require.NotEmpty(t, page.NextCursor)

	resp, body = h.do(t, http.MethodGet, "/sessions?limit=2&cursor="+page.NextCursor, bearer, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rest ListSessionsResponse
	require.NoError(t, json.Unmarshal(body, &rest))
	require.Len(t, rest.Sessions, 1)
	require.Empty(t, rest.NextCursor)

	for _, query := range []string{"date=yesterday", "limit=-1", "cursor=!!"} {
		resp, _ := h.do(t, http.MethodGet, "/sessions?"+query, bearer, "")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
	}
}
