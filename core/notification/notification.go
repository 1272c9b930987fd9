package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("notification not found")

// Notification is an in-app message shown to an account.
type Notification struct {
	ID        int       `json:"id"`
	AccountID int       `json:"-"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type (
	Repository interface {
		Create(ctx context.Context, n Notification) (Notification, error)
		// QueryByAccount returns the account's notifications, newest first.
		QueryByAccount(ctx context.Context, accountID int, unreadOnly bool) ([]Notification, error)
		CountUnread(ctx context.Context, accountID int) (int, error)
		// MarkRead fails with ErrNotFound unless the notification belongs to accountID.
		MarkRead(ctx context.Context, accountID, id int) error
		MarkAllRead(ctx context.Context, accountID int) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Send(ctx context.Context, accountID int, title, message, link string) (Notification, error) {
	return svc.repo.Create(ctx, Notification{
		AccountID: accountID,
		Title:     title,
		Message:   message,
		Link:      link,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *Service) List(ctx context.Context, accountID int, unreadOnly bool) ([]Notification, error) {
	return svc.repo.QueryByAccount(ctx, accountID, unreadOnly)
}

func (svc *Service) UnreadCount(ctx context.Context, accountID int) (int, error) {
	return svc.repo.CountUnread(ctx, accountID)
}

func (svc *Service) MarkRead(ctx context.Context, accountID, id int) error {
	return svc.repo.MarkRead(ctx, accountID, id)
}

func (svc *Service) MarkAllRead(ctx context.Context, accountID int) (int, error) {
	return svc.repo.MarkAllRead(ctx, accountID)
}
