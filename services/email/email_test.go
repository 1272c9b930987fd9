package emailsvc

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
)

type slipData struct {
	Name         string
	AppName      string
	ContactEmail string
	ContactPhone string
	RollNumber   string
	TestCenter   string
	DownloadURL  string
}

func newSlipMessage() *core.EmailMessage {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "Ali Khan", Address: "ali@test.pk"}},
		Subject:      "Roll Number Slip",
		TemplateName: "roll_slip_issued",
		TemplateData: slipData{
			Name:         "Ali Khan",
			AppName:      "MCM Admissions",
			ContactEmail: "admissions@test.pk",
			ContactPhone: "000-0000000",
			RollNumber:   "8-0001",
			TestCenter:   "Lahore",
			DownloadURL:  "http://testserver/admissions/download-roll-slip/abc/",
		},
	}
	msg.Attach([]byte("%PDF-1.3"), "RollSlip_8-0001.pdf", "application/pdf")
	return msg
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	ResetSentMessages()
	svc := NewConsoleServiceMock(core.NewTestConfig())

	tests := []struct {
		name     string
		msg      *core.EmailMessage
		wantSent int
		wantErr  bool
	}{
		{name: "templated with attachment", msg: newSlipMessage(), wantSent: 1},
		{name: "plain body", msg: &core.EmailMessage{To: []mail.Address{{Address: "a@test.pk"}}, BodyStr: "hello"}, wantSent: 2},
		{name: "no recipient", msg: &core.EmailMessage{BodyStr: "hello"}, wantSent: 2},
		{name: "unknown template", msg: &core.EmailMessage{To: []mail.Address{{Address: "a@test.pk"}}, TemplateName: "nope"}, wantSent: 2, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.SendMessages(tc.msg)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, Sent(), tc.wantSent)
		})
	}

	sent := Sent()[0]
	assert.Contains(t, sent.TextContent, "Dear Ali Khan")
	assert.Contains(t, sent.TextContent, "Roll Number: 8-0001")
	assert.Contains(t, sent.HTMLContent, "8-0001")
	assert.Equal(t, "application/pdf", sent.Attachments[0].ContentType)
}

func TestSendgridService_SendMessages(t *testing.T) {
	var got map[string]interface{}
	status := http.StatusAccepted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, endpoint, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	defer func(orig string) { host = orig }(host)
	host = srv.URL

	conf := core.NewTestConfig()
	conf.SendgridAPIKey = "test-key"
	svc := NewSendgridService(conf)

	require.NoError(t, svc.SendMessages(newSlipMessage()))
	if assert.NotNil(t, got) {
		assert.Len(t, got["attachments"], 1)
		assert.Len(t, got["content"], 2)
	}

	status = http.StatusBadRequest
	err := svc.SendMessages(newSlipMessage())
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "status: 400")
	}
}
