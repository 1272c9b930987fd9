package echoapi_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/admissions/apps/api/echo"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
	"github.com/trezcool/admissions/tests"
)

func TestAdminAPI_Bulk(t *testing.T) {
	adminToken := getToken(t, 1, true)
	a1 := testutil.CreateApplication(t, env.Repo, admission.Application{AccountID: 301})
	a2 := testutil.CreateApplication(t, env.Repo, admission.Application{AccountID: 302})
	a3 := testutil.CreateApplication(t, env.Repo, admission.Application{AccountID: 303})

	runHTTPTests(t, []httpTest{
		{
			name:     "unknown action",
			method:   http.MethodPost,
			path:     "/v1/admin/applications/bulk",
			body:     []byte(`{"action": "approve", "ids": [1]}`),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "no ids",
			method:   http.MethodPost,
			path:     "/v1/admin/applications/bulk",
			body:     []byte(`{"action": "verify", "ids": []}`),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "not admin",
			method:   http.MethodPost,
			path:     "/v1/admin/applications/bulk",
			body:     []byte(`{"action": "verify", "ids": [1]}`),
			token:    getToken(t, 301, false),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	})

	// verify: results follow the order of ids
	body := marchallObj(t, BulkRequest{Action: "verify", IDs: []int{a1.ID, 999999, a2.ID}})
	rec := serve(newAuthRequest(http.MethodPost, "/v1/admin/applications/bulk", adminToken, body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp BulkResponse
	unmarchallObj(t, rec, &resp)
	require.Len(t, resp.Results, 3)

	assert.Equal(t, a1.ID, resp.Results[0].ID)
	assert.True(t, resp.Results[0].OK)
	assert.True(t, strings.HasPrefix(resp.Results[0].RollNumber, "8-"), resp.Results[0].RollNumber)
	assert.Equal(t, admission.BulkResult{ID: 999999, Error: "application not found"}, resp.Results[1])
	assert.Equal(t, a2.ID, resp.Results[2].ID)
	assert.True(t, resp.Results[2].OK)
	assert.NotEqual(t, resp.Results[0].RollNumber, resp.Results[2].RollNumber)

	// reject: a verified application stays verified
	body = marchallObj(t, BulkRequest{Action: "reject", IDs: []int{a3.ID, a1.ID}})
	rec = serve(newAuthRequest(http.MethodPost, "/v1/admin/applications/bulk", adminToken, body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = BulkResponse{}
	unmarchallObj(t, rec, &resp)
	assert.Equal(t, []admission.BulkResult{
		{ID: a3.ID, OK: true},
		{ID: a1.ID, Error: "invalid status transition"},
	}, resp.Results)

	// listing
	rec = serve(newAuthRequest(http.MethodGet, "/v1/admin/applications?class=VIII&status=verified&ordering=-id", adminToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var apps []admission.Application
	unmarchallObj(t, rec, &apps)
	var ids []int
	for _, app := range apps {
		assert.Equal(t, admission.ClassVIII, app.Class)
		assert.Equal(t, admission.StatusVerified, app.Status)
		ids = append(ids, app.ID)
	}
	assert.Contains(t, ids, a1.ID)
	assert.Contains(t, ids, a2.ID)
	assert.NotContains(t, ids, a3.ID)

	rec = serve(newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/admin/applications/%d", a3.ID), adminToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rejected admission.Application
	unmarchallObj(t, rec, &rejected)
	assert.Equal(t, admission.StatusRejected, rejected.Status)
	assert.Equal(t, admission.PaymentRejected, rejected.PaymentStatus)

	runHTTPTests(t, []httpTest{
		{
			name:     "non numeric id",
			method:   http.MethodGet,
			path:     "/v1/admin/applications/abc",
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:     "unknown id",
			method:   http.MethodPost,
			path:     "/v1/admin/applications/999999/verify",
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
	})
}

func TestAdminAPI_Broadcast(t *testing.T) {
	adminToken := getToken(t, 1, true)
	target := testutil.CreateApplication(t, env.Repo, admission.Application{AccountID: 311, Name: "Sana"})

	rec := serve(newAuthRequest(http.MethodPost, "/v1/admin/templates", adminToken, []byte(`{
		"title": "Reminder",
		"subject": "Test day",
		"body": "Dear {name}, report at {test_center}."
	}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tmpl admission.MessageTemplate
	unmarchallObj(t, rec, &tmpl)
	assert.Equal(t, admission.TemplateGeneral, tmpl.Category)
	assert.Equal(t, 1, tmpl.CreatedBy)

	rec = serve(newAuthRequest(http.MethodGet, "/v1/admin/templates", adminToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tmpls []admission.MessageTemplate
	unmarchallObj(t, rec, &tmpls)
	assert.Contains(t, tmpls, tmpl)

	env.Notifier.Reset()
	body := marchallObj(t, admission.Broadcast{IDs: []int{target.ID}, TemplateID: tmpl.ID})
	rec = serve(newAuthRequest(http.MethodPost, "/v1/admin/broadcast", adminToken, body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"queued": 1}`, rec.Body.String())

	events := env.Notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, admission.EventBroadcast, events[0].Kind)
	assert.Equal(t, "Test day", events[0].Subject)
	assert.Equal(t, "Dear Sana, report at Murree.", events[0].Body)

	runHTTPTests(t, []httpTest{
		{
			name:     "template without body",
			method:   http.MethodPost,
			path:     "/v1/admin/templates",
			body:     []byte(`{"title": "Empty"}`),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"body":"this field is required"}`),
		},
		{
			name:     "unknown template",
			method:   http.MethodPost,
			path:     "/v1/admin/broadcast",
			body:     marchallObj(t, admission.Broadcast{IDs: []int{target.ID}, TemplateID: 999999}),
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:     "no recipients",
			method:   http.MethodPost,
			path:     "/v1/admin/broadcast",
			body:     []byte(`{"ids": [], "subject": "Hi", "body": "Hello"}`),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
		},
	})
}

func TestAdminAPI_Analytics(t *testing.T) {
	adminToken := getToken(t, 1, true)
	testutil.CreateApplication(t, env.Repo, admission.Application{AccountID: 321})

	rec := serve(newAuthRequest(http.MethodGet, "/v1/admin/analytics?days=7", adminToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats admission.Analytics
	unmarchallObj(t, rec, &stats)
	assert.GreaterOrEqual(t, stats.Total, 1)
	assert.NotEmpty(t, stats.ByDay)

	runHTTPTests(t, []httpTest{
		{
			name:     "days out of range",
			method:   http.MethodGet,
			path:     "/v1/admin/analytics?days=0",
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"days":"days must be between 1 and 365"}`),
		},
	})
}

func TestAdminAPI_Fees(t *testing.T) {
	adminToken := getToken(t, 1, true)

	// same values as seeded, so the other tests are not affected
	rec := serve(newAuthRequest(http.MethodPut, "/v1/admin/fees/VIII", adminToken, marchallObj(t, fee.ScheduleInput{
		NormalDeadline: "2026-01-31",
		LateDeadline:   "2026-02-15",
		FinalDeadline:  "2026-02-28",
		StopAfterFinal: true,
		Fees:           flatVIII,
	})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sched fee.Schedule
	unmarchallObj(t, rec, &sched)
	assert.Equal(t, "VIII", sched.Class)
	assert.Equal(t, flatVIII, sched.Fees)

	rec = serve(newAuthRequest(http.MethodPut, "/v1/admin/fees/VIII/categories/civilian", adminToken, marchallObj(t, civilianVIII)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ovr fee.CategoryOverride
	unmarchallObj(t, rec, &ovr)
	assert.Equal(t, sched.ID, ovr.ScheduleID)
	assert.Equal(t, civilianVIII, ovr.Fees)

	rec = serve(newAuthRequest(http.MethodGet, "/v1/admin/fees", adminToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var scheds []fee.Schedule
	unmarchallObj(t, rec, &scheds)
	assert.Len(t, scheds, 2)

	rec = serve(newAuthRequest(http.MethodGet, "/v1/admin/fees/VIII/categories", adminToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ovrs []fee.CategoryOverride
	unmarchallObj(t, rec, &ovrs)
	require.Len(t, ovrs, 1)
	assert.Equal(t, "civilian", ovrs[0].Category)

	runHTTPTests(t, []httpTest{
		{
			name:     "unknown class",
			method:   http.MethodPut,
			path:     "/v1/admin/fees/IX",
			body:     []byte(`{}`),
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:   "deadlines out of order",
			method: http.MethodPut,
			path:   "/v1/admin/fees/VIII",
			body: marchallObj(t, fee.ScheduleInput{
				NormalDeadline: "2026-02-15",
				LateDeadline:   "2026-01-31",
				FinalDeadline:  "2026-02-28",
			}),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"late_deadline":"must be after the normal deadline"}`),
		},
		{
			name:     "unknown category",
			method:   http.MethodPut,
			path:     "/v1/admin/fees/VIII/categories/nobody",
			body:     marchallObj(t, civilianVIII),
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:     "negative fee",
			method:   http.MethodPut,
			path:     "/v1/admin/fees/VIII/categories/caf",
			body:     []byte(`{"normal": -1, "late": 0, "final": 0}`),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "category fees without schedule",
			method:   http.MethodGet,
			path:     "/v1/admin/fees/X/categories",
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "fee schedule not configured"}),
		},
	})
}
