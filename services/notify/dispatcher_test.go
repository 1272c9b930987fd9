package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/notification"
	emailsvc "github.com/trezcool/admissions/services/email"
	inmemdb "github.com/trezcool/admissions/storage/database/inmem"
)

type flakyMail struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (m *flakyMail) SendMessages(messages ...*core.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return errors.New("smtp unavailable")
	}
	return nil
}

type countingObserver struct {
	mu        sync.Mutex
	queued    int
	dropped   int
	delivered map[string]int
	failed    map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{delivered: make(map[string]int), failed: make(map[string]int)}
}

func (o *countingObserver) NotificationQueued(admission.EventKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queued++
}

func (o *countingObserver) NotificationDropped(admission.EventKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped++
}

func (o *countingObserver) NotificationDelivered(channel string, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ok {
		o.delivered[channel]++
	} else {
		o.failed[channel]++
	}
}

func newTestDispatcher(mailSvc core.EmailService, queueSize, maxRetries int) (*Dispatcher, *notification.Service, *countingObserver) {
	conf := core.NewTestConfig()
	conf.Admission.NotifyQueueSize = queueSize
	conf.Admission.NotifyMaxRetries = maxRetries
	conf.Admission.NotifyRetryDelay = time.Millisecond

	inbox := notification.NewService(inmemdb.NewNotificationRepository(inmemdb.NewDB()))
	obs := newCountingObserver()
	d := NewDispatcher(Deps{Conf: conf, Mail: mailSvc, Inbox: inbox, Observer: obs})
	return d, inbox, obs
}

func verifiedEvent() admission.Event {
	return admission.Event{
		Kind: admission.EventVerified,
		Application: admission.Application{
			ID: 1, AccountID: 10, Name: "Ali Khan", Email: "ali@test.pk", TestCenter: "Lahore", RollNumber: "8-0001",
		},
		Link: "http://testserver/admissions/download-roll-slip/abc/",
		Slip: &admission.Artifact{Filename: "RollSlip_8-0001.pdf", ContentType: "application/pdf", Content: []byte("%PDF")},
	}
}

func TestDispatcher_Deliver(t *testing.T) {
	emailsvc.ResetSentMessages()
	d, inbox, obs := newTestDispatcher(emailsvc.NewConsoleServiceMock(core.NewTestConfig()), 8, 0)
	d.Start(2)

	assert.True(t, d.Notify(verifiedEvent()))
	rejected := verifiedEvent()
	rejected.Kind = admission.EventRejected
	rejected.Application.AccountID = 11
	assert.True(t, d.Notify(rejected))
	require.NoError(t, d.Stop(context.Background()))

	ns, err := inbox.List(context.Background(), 10, false)
	require.NoError(t, err)
	if assert.Len(t, ns, 1) {
		assert.Equal(t, "Challan Verified", ns[0].Title)
		assert.Contains(t, ns[0].Message, "8-0001")
		assert.Equal(t, "http://testserver/admissions/download-roll-slip/abc/", ns[0].Link)
	}
	ns, err = inbox.List(context.Background(), 11, false)
	require.NoError(t, err)
	if assert.Len(t, ns, 1) {
		assert.Equal(t, "Challan Rejected", ns[0].Title)
	}

	sent := emailsvc.Sent()
	if assert.Len(t, sent, 2) {
		var slipMail core.EmailMessage
		for _, m := range sent {
			if m.TemplateName == "roll_slip_issued" {
				slipMail = m
			}
		}
		assert.Contains(t, slipMail.TextContent, "http://testserver/admissions/download-roll-slip/abc/")
		if assert.Len(t, slipMail.Attachments, 1) {
			assert.Equal(t, "RollSlip_8-0001.pdf", slipMail.Attachments[0].Filename)
		}
	}
	assert.Equal(t, 2, obs.queued)
	assert.Equal(t, 2, obs.delivered[ChannelEmail])
	assert.Equal(t, 2, obs.delivered[ChannelInApp])
}

func TestDispatcher_Retry(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		maxRetries int
		wantCalls  int
		wantOK     bool
	}{
		{name: "first attempt", failures: 0, maxRetries: 2, wantCalls: 1, wantOK: true},
		{name: "after retries", failures: 2, maxRetries: 2, wantCalls: 3, wantOK: true},
		{name: "gives up", failures: 5, maxRetries: 2, wantCalls: 3, wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mailSvc := &flakyMail{failures: tc.failures}
			d, _, obs := newTestDispatcher(mailSvc, 4, tc.maxRetries)
			d.Start(1)
			assert.True(t, d.Notify(verifiedEvent()))
			require.NoError(t, d.Stop(context.Background()))

			assert.Equal(t, tc.wantCalls, mailSvc.calls)
			if tc.wantOK {
				assert.Equal(t, 1, obs.delivered[ChannelEmail])
			} else {
				assert.Equal(t, 1, obs.failed[ChannelEmail])
			}
			// the in-app notification does not depend on email delivery
			assert.Equal(t, 1, obs.delivered[ChannelInApp])
		})
	}
}

func TestDispatcher_NotifyNeverBlocks(t *testing.T) {
	d, _, obs := newTestDispatcher(&flakyMail{}, 1, 0)

	// no workers yet: the queue fills up
	assert.True(t, d.Notify(verifiedEvent()))
	assert.False(t, d.Notify(verifiedEvent()))
	assert.Equal(t, 1, obs.dropped)

	d.Start(1)
	require.NoError(t, d.Stop(context.Background()))
	assert.False(t, d.Notify(verifiedEvent()))
	assert.Equal(t, 2, obs.dropped)
	// stopping twice is fine
	assert.NoError(t, d.Stop(context.Background()))
}

func TestDispatcher_BroadcastWithoutAccount(t *testing.T) {
	emailsvc.ResetSentMessages()
	d, _, obs := newTestDispatcher(emailsvc.NewConsoleServiceMock(core.NewTestConfig()), 4, 0)
	d.Start(1)

	assert.True(t, d.Notify(admission.Event{
		Kind:        admission.EventBroadcast,
		Application: admission.Application{ID: 3, Name: "Sara", Email: "sara@test.pk"},
		Subject:     "  Test Schedule ",
		Body:        "Dear Sara, report at 0800 hrs.",
	}))
	require.NoError(t, d.Stop(context.Background()))

	sent := emailsvc.Sent()
	if assert.Len(t, sent, 1) {
		assert.Equal(t, "Test Schedule", sent[0].Subject)
		assert.Contains(t, sent[0].TextContent, "report at 0800 hrs.")
	}
	assert.Equal(t, 0, obs.delivered[ChannelInApp])
}
