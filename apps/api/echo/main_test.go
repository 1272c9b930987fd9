package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	. "github.com/trezcool/admissions/apps/api/echo"
	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
	"github.com/trezcool/admissions/services/metrics"
	"github.com/trezcool/admissions/tests"
)

var (
	conf *core.Config
	env  *testutil.Env
	app  Server

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errNotFound     = httpErr{Error: "not found"}
	errForbidden    = httpErr{Error: "permission denied"}
)

func TestMain(m *testing.M) {
	conf = core.NewTestConfig()
	env = testutil.NewEnv(conf.Admission.BulkWorkers)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	admission.InitValidators(validate, translator)

	if err := seedFees(); err != nil {
		fmt.Printf("seedFees(): %v\n", err)
		os.Exit(1)
	}

	// set up server
	app = NewServer(
		"",  /* addr */
		nil, /* shutdown */
		&Deps{
			Conf:            conf,
			AdmissionSvc:    env.Admissions,
			FeeSvc:          env.Fees,
			NotificationSvc: env.Notifications,
			Validate:        validate,
			Translator:      translator,
			Metrics:         metrics.New(prometheus.NewRegistry()),
		},
	)

	// run tests
	os.Exit(m.Run())
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte // not compared when nil
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, accountID int, isAdmin bool) string {
	claims := NewClaims(conf, accountID, fmt.Sprintf("account %d", accountID), "", isAdmin)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarchallObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarchallObj(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v (body %s)", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestHome(t *testing.T) {
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d; want 200", rec.Code)
	}
	if got, want := rec.Body.String(), "Welcome to "+conf.AppName+" API!"; got != want {
		t.Errorf("body = %q; want %q", got, want)
	}
}

// fee schedules shared by the tests of this package
var (
	flatVIII     = fee.Fees{Normal: 4000, Late: 6000, Final: 8000}
	civilianVIII = fee.Fees{Normal: 5000, Late: 7000, Final: 9000}
	flatXI       = fee.Fees{Normal: 3000, Late: 4000, Final: 5000}
)

func seedFees() error {
	ctx := context.Background()
	date := func(s string) time.Time {
		d, _ := core.ParseDate(s)
		return d
	}

	_, err := env.Fees.Configure(ctx, fee.Schedule{
		Class:          "VIII",
		NormalDeadline: date("2026-01-31"),
		LateDeadline:   date("2026-02-15"),
		FinalDeadline:  date("2026-02-28"),
		StopAfterFinal: true,
		Fees:           flatVIII,
	})
	if err != nil {
		return err
	}
	if _, err = env.Fees.SetCategoryFees(ctx, "VIII", admission.CategoryCivilian, civilianVIII); err != nil {
		return err
	}
	_, err = env.Fees.Configure(ctx, fee.Schedule{
		Class:          "XI",
		NormalDeadline: date("2099-01-31"),
		LateDeadline:   date("2099-02-15"),
		FinalDeadline:  date("2099-02-28"),
		Fees:           flatXI,
	})
	return err
}
