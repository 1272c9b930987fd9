// Package notify delivers application events to applicants, by email and in-app notification,
// from a bounded queue drained by background workers.
package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/notification"
)

const (
	ChannelEmail = "email"
	ChannelInApp = "in_app"
)

var ErrStopped = errors.New("dispatcher stopped")

type (
	// Observer is told about queue and delivery outcomes, e.g. for metrics.
	Observer interface {
		NotificationQueued(kind admission.EventKind)
		NotificationDropped(kind admission.EventKind)
		NotificationDelivered(channel string, ok bool)
	}

	Deps struct {
		Conf   *core.Config
		Mail   core.EmailService
		Inbox  *notification.Service
		Logger core.Logger
		// optional
		Observer Observer
	}

	// TemplateData feeds the email templates.
	TemplateData struct {
		Name         string
		AppName      string
		ContactEmail string
		ContactPhone string
		RollNumber   string
		TestCenter   string
		DownloadURL  string
		Body         string
	}

	Dispatcher struct {
		conf       *core.Config
		mail       core.EmailService
		inbox      *notification.Service
		logger     core.Logger
		observer   Observer
		maxRetries int
		retryDelay time.Duration

		mu      sync.RWMutex
		stopped bool
		queue   chan admission.Event
		wg      sync.WaitGroup
	}
)

var _ admission.Notifier = (*Dispatcher)(nil)

func NewDispatcher(deps Deps) *Dispatcher {
	size := deps.Conf.Admission.NotifyQueueSize
	if size < 1 {
		size = 1
	}
	d := &Dispatcher{
		conf:       deps.Conf,
		mail:       deps.Mail,
		inbox:      deps.Inbox,
		logger:     deps.Logger,
		observer:   deps.Observer,
		maxRetries: deps.Conf.Admission.NotifyMaxRetries,
		retryDelay: deps.Conf.Admission.NotifyRetryDelay,
		queue:      make(chan admission.Event, size),
	}
	if d.logger == nil {
		d.logger = core.NopLogger
	}
	if d.observer == nil {
		d.observer = nopObserver{}
	}
	return d
}

// Start runs workers goroutines draining the queue until Stop.
func (d *Dispatcher) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for ev := range d.queue {
				d.deliver(ev)
			}
		}()
	}
}

// Notify queues ev without blocking. It returns false when the queue is full or the dispatcher stopped.
func (d *Dispatcher) Notify(ev admission.Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.observer.NotificationDropped(ev.Kind)
		return false
	}
	select {
	case d.queue <- ev:
		d.observer.NotificationQueued(ev.Kind)
		return true
	default:
		d.observer.NotificationDropped(ev.Kind)
		return false
	}
}

// Stop refuses new events and waits for the queued ones to be delivered, or for ctx to be done.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "draining notifications")
	}
}

func (d *Dispatcher) deliver(ev admission.Event) {
	app := ev.Application

	if title, message := d.inAppContent(ev); d.inbox != nil && title != "" && app.AccountID != 0 {
		err := d.retry(func() error {
			_, err := d.inbox.Send(context.Background(), app.AccountID, title, message, ev.Link)
			return err
		})
		d.observer.NotificationDelivered(ChannelInApp, err == nil)
		if err != nil {
			d.logger.Error(fmt.Sprintf("in-app %s notification of application %d: %v", ev.Kind, app.ID, err), err)
		}
	}

	if d.mail == nil || app.Email == "" {
		return
	}
	msg, err := d.emailMessage(ev)
	if err != nil {
		d.logger.Error(fmt.Sprintf("preparing %s email of application %d: %v", ev.Kind, app.ID, err), err)
		return
	}
	err = d.retry(func() error {
		// each attempt renders a fresh copy
		m := *msg
		return d.mail.SendMessages(&m)
	})
	d.observer.NotificationDelivered(ChannelEmail, err == nil)
	if err != nil {
		d.logger.Error(fmt.Sprintf("%s email of application %d: %v", ev.Kind, app.ID, err), err)
	}
}

// retry runs fn up to maxRetries+1 times, waiting retryDelay longer between each attempt.
func (d *Dispatcher) retry(fn func() error) error {
	var err error
	attempts := d.maxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt < attempts {
			time.Sleep(time.Duration(attempt) * d.retryDelay)
		}
	}
	return errors.Wrapf(err, "failed after %d attempts", attempts)
}

func (d *Dispatcher) inAppContent(ev admission.Event) (title, message string) {
	switch ev.Kind {
	case admission.EventVerified:
		return "Challan Verified", "Your challan has been verified. Roll Number: " + ev.Application.RollNumber
	case admission.EventRejected:
		return "Challan Rejected", "Your challan has been rejected. Please contact the admission office for further assistance."
	case admission.EventBroadcast:
		return ev.Subject, ev.Body
	}
	return "", ""
}

func (d *Dispatcher) emailMessage(ev admission.Event) (*core.EmailMessage, error) {
	app := ev.Application
	data := TemplateData{
		Name:         app.Name,
		AppName:      d.conf.AppName,
		ContactEmail: d.conf.Admission.ContactEmail,
		ContactPhone: d.conf.Admission.ContactPhone,
		RollNumber:   app.RollNumber,
		TestCenter:   app.TestCenter,
		DownloadURL:  ev.Link,
		Body:         ev.Body,
	}
	if data.Name == "" {
		data.Name = "Candidate"
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: app.Name, Address: app.Email}},
		TemplateData: data,
	}
	switch ev.Kind {
	case admission.EventVerified:
		msg.Subject = "Roll Number Slip"
		msg.TemplateName = "roll_slip_issued"
		if ev.Slip != nil {
			msg.Attach(ev.Slip.Content, ev.Slip.Filename, ev.Slip.ContentType)
		}
	case admission.EventRejected:
		msg.Subject = "Challan Rejected"
		msg.TemplateName = "payment_rejected"
	case admission.EventBroadcast:
		msg.Subject = strings.TrimSpace(ev.Subject)
		msg.TemplateName = "broadcast"
	default:
		return nil, errors.Errorf("unknown event kind %q", ev.Kind)
	}
	return msg, nil
}

type nopObserver struct{}

func (nopObserver) NotificationQueued(admission.EventKind)  {}
func (nopObserver) NotificationDropped(admission.EventKind) {}
func (nopObserver) NotificationDelivered(string, bool)      {}
