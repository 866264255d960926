package controller_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/pta-newsletter/internal/ai"
	"github.com/unclebandit/pta-newsletter/internal/auth"
	"github.com/unclebandit/pta-newsletter/internal/controller"
	"github.com/unclebandit/pta-newsletter/internal/llm/llmtest"
	"github.com/unclebandit/pta-newsletter/internal/lock"
	"github.com/unclebandit/pta-newsletter/internal/metrics"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/queue"
	"github.com/unclebandit/pta-newsletter/internal/repository/memory"
	"github.com/unclebandit/pta-newsletter/internal/service"
	"github.com/unclebandit/pta-newsletter/internal/validation"
)

const secret = "test-secret"

type env struct {
	t      *testing.T
	srv    *httptest.Server
	store  *memory.Store
	llm    *llmtest.Provider
	school model.School
	board  string
	member string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	school := store.AddSchool(model.School{Name: "Maple"})
	v := validation.New()
	m := metrics.New(prometheus.NewRegistry())
	fake := llmtest.New()
	gen := ai.NewGenerator(fake, v, 0, nil)
	q := queue.NewInMemoryQueue(nil)
	t.Cleanup(func() { q.Close() })

	campaigns := service.NewCampaignService(store, service.NewCompiler(), q, v, m, nil)
	router := controller.NewRouter(controller.Deps{
		Campaigns:  campaigns,
		Generation: service.NewGenerationService(store, service.NewCollector(store, nil), gen, lock.NewLocalLocker(), m, nil),
		Sections:   service.NewSectionService(store, v),
		Content:    service.NewContentService(store, v, m),
		Assistant:  service.NewAssistantService(store, gen, m),
		Metrics:    m,
		JWTSecret:  secret,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	token := func(roles ...string) string {
		tok, err := auth.GenerateJWT(auth.Actor{UserID: 7, SchoolID: school.ID, Roles: roles}, secret, time.Hour)
		require.NoError(t, err)
		return tok
	}
	return &env{t: t, srv: srv, store: store, llm: fake, school: school, board: token(auth.RoleBoard), member: token(auth.RoleMember)}
}

func (e *env) do(method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(e.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (e *env) createCampaign() int {
	e.t.Helper()
	resp, body := e.do(http.MethodPost, "/campaigns", e.board, map[string]string{"week_start": "2026-04-13", "week_end": "2026-04-19"})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode, body)
	return int(body["id"].(float64))
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(http.MethodGet, "/campaigns", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, _ = e.do(http.MethodGet, "/campaigns", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = e.do(http.MethodPost, "/campaigns", e.member, map[string]string{"week_start": "2026-04-13", "week_end": "2026-04-19"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = e.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpdateCampaignRoute(t *testing.T) {
	e := newEnv(t)
	id := e.createCampaign()
	path := fmt.Sprintf("/campaigns/%d", id)

	resp, _ := e.do(http.MethodPatch, path, e.member, map[string]string{"title": "Nope"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := e.do(http.MethodPatch, path, e.board, map[string]string{"title": "Spirit Week", "week_start": "2026-04-14"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Spirit Week", body["title"])
	assert.True(t, strings.HasPrefix(body["week_start"].(string), "2026-04-14"))

	resp, body = e.do(http.MethodPatch, path, e.board, map[string]string{"week_end": "2026-04-01"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, _ = e.do(http.MethodPost, path+"/send", e.board, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = e.do(http.MethodPatch, path, e.board, map[string]string{"title": "Too late"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, body)
}

func TestCampaignFlow(t *testing.T) {
	e := newEnv(t)
	id := e.createCampaign()

	resp, body := e.do(http.MethodPost, "/campaigns", e.board, map[string]string{"week_start": "2026-04-13", "week_end": "2026-04-19"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, body)

	resp, body = e.do(http.MethodGet, "/campaigns?page=1&page_size=10", e.member, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, float64(1), body["pagination"].(map[string]interface{})["total_count"])

	for _, title := range []string{"Alpha", "Bravo"} {
		resp, body = e.do(http.MethodPost, fmt.Sprintf("/campaigns/%d/sections", id), e.board, map[string]string{"title": title, "body": "<p>" + title + "</p>"})
		require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	}

	resp, body = e.do(http.MethodGet, fmt.Sprintf("/campaigns/%d", id), e.member, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sections := body["sections"].([]interface{})
	require.Len(t, sections, 2)
	first := int(sections[0].(map[string]interface{})["id"].(float64))
	second := int(sections[1].(map[string]interface{})["id"].(float64))

	resp, body = e.do(http.MethodPut, fmt.Sprintf("/campaigns/%d/sections/order", id), e.board, map[string][]int{"section_ids": {second, first}})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Bravo", body["data"].([]interface{})[0].(map[string]interface{})["title"])

	resp, body = e.do(http.MethodPut, fmt.Sprintf("/campaigns/%d/sections/order", id), e.board, map[string][]int{"section_ids": {first}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["fields"])

	resp, body = e.do(http.MethodPatch, fmt.Sprintf("/campaigns/%d/status", id), e.board, map[string]string{"status": "review"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "review", body["status"])

	resp, body = e.do(http.MethodPost, fmt.Sprintf("/campaigns/%d/send", id), e.board, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "sent", body["status"])

	resp, _ = e.do(http.MethodPatch, fmt.Sprintf("/sections/%d", first), e.board, map[string]string{"title": "Too late"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = e.do(http.MethodPost, fmt.Sprintf("/campaigns/%d/send", id), e.board, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGenerateEndpoint(t *testing.T) {
	e := newEnv(t)
	id := e.createCampaign()
	e.store.AddEvent(model.CalendarEvent{SchoolID: e.school.ID, Title: "Science Fair", StartTime: time.Date(2026, 4, 15, 18, 0, 0, 0, time.UTC)})

	e.llm.Replies = []string{`{"sections":[{"title":"This Week","body":"<p>Science Fair</p>","audience":"all","sectionType":"calendar_summary"}],"suggestions":[{"title":"Judges","reason":"fair","source":"calendar","priority":"high"}]}`}
	resp, body := e.do(http.MethodPost, fmt.Sprintf("/campaigns/%d/generate", id), e.board, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Len(t, body["sections"], 1)
	assert.Len(t, body["suggestions"], 1)

	e.llm.Replies = []string{"not json"}
	resp, body = e.do(http.MethodPost, fmt.Sprintf("/campaigns/%d/generate", id), e.board, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode, body)
}

func TestInboxEndpoints(t *testing.T) {
	e := newEnv(t)
	id := e.createCampaign()

	resp, body := e.do(http.MethodPost, "/inbox", e.member, map[string]string{"title": "Bake Sale", "description": "Friday"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	itemID := int(body["id"].(float64))

	resp, body = e.do(http.MethodGet, "/inbox", e.member, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)

	resp, _ = e.do(http.MethodPost, fmt.Sprintf("/inbox/%d/include", itemID), e.member, map[string]int{"campaign_id": id})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = e.do(http.MethodPost, fmt.Sprintf("/inbox/%d/include", itemID), e.board, map[string]int{"campaign_id": id})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "Bake Sale", body["title"])

	resp, _ = e.do(http.MethodPost, fmt.Sprintf("/inbox/%d/include", itemID), e.board, map[string]int{"campaign_id": id})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = e.do(http.MethodPost, fmt.Sprintf("/inbox/%d/skip", itemID), e.board, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = e.do(http.MethodPost, "/inbox/9999/skip", e.board, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPreviewAndExport(t *testing.T) {
	e := newEnv(t)
	id := e.createCampaign()
	resp, _ := e.do(http.MethodPost, fmt.Sprintf("/campaigns/%d/sections", id), e.board, map[string]string{"title": "Board Vote", "body": "<p>Budget</p>", "audience": "pta_only"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	get := func(path, accept string) (int, string, string) {
		req, _ := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
		req.Header.Set("Authorization", "Bearer "+e.member)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var b bytes.Buffer
		_, _ = b.ReadFrom(resp.Body)
		return resp.StatusCode, resp.Header.Get("Content-Type"), b.String()
	}

	status, ctype, doc := get(fmt.Sprintf("/campaigns/%d/preview", id), "")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.HasPrefix(ctype, "text/html"))
	assert.Contains(t, doc, "Hi Maple PTA Members,")
	assert.Contains(t, doc, "Board Vote")

	_, _, doc = get(fmt.Sprintf("/campaigns/%d/preview?audience=school", id), "")
	assert.Contains(t, doc, "Hi Maple Families,")
	assert.NotContains(t, doc, "Board Vote")

	status, ctype, doc = get(fmt.Sprintf("/campaigns/%d/export", id), "text/plain")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.HasPrefix(ctype, "text/plain"))
	assert.Equal(t, "Hi Maple PTA Members,\n\nBoard Vote\n\nBudget", doc)

	status, ctype, doc = get(fmt.Sprintf("/campaigns/%d/export?audience=school", id), "")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.HasPrefix(ctype, "application/json"))
	assert.Contains(t, doc, `"text":"Hi Maple Families,"`)

	status, _, _ = get("/campaigns/abc/preview", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)
	e.do(http.MethodGet, "/healthz", "", nil)

	resp, err := http.Get(e.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var b bytes.Buffer
	_, _ = b.ReadFrom(resp.Body)
	assert.Contains(t, b.String(), `http_requests_total{method="GET",path="/healthz",status="200"}`)
}
