package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/admissions/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) Create(_ context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	n.ID = repo.db.nextPK("notifications")
	repo.db.notifications[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) QueryByAccount(_ context.Context, accountID int, unreadOnly bool) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ns := make([]notification.Notification, 0)
	for _, n := range repo.db.notifications {
		if n.AccountID == accountID && !(unreadOnly && n.IsRead) {
			ns = append(ns, *n)
		}
	}
	// newest first
	sort.Slice(ns, func(i, j int) bool { return ns[i].ID > ns[j].ID })
	return ns, nil
}

func (repo *notificationRepository) CountUnread(ctx context.Context, accountID int) (int, error) {
	ns, err := repo.QueryByAccount(ctx, accountID, true)
	return len(ns), err
}

func (repo *notificationRepository) MarkRead(_ context.Context, accountID, id int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	n, ok := repo.db.notifications[id]
	if !ok || n.AccountID != accountID {
		return notification.ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (repo *notificationRepository) MarkAllRead(_ context.Context, accountID int) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var marked int
	for _, n := range repo.db.notifications {
		if n.AccountID == accountID && !n.IsRead {
			n.IsRead = true
			marked++
		}
	}
	return marked, nil
}
