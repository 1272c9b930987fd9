package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/notification"
)

const notificationColumns = `id, account_id, title, message, link, is_read, created_at`

type notificationRepository struct {
	repository
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db core.DBExecutor) notification.Repository {
	return &notificationRepository{repository{db: db}}
}

func (repo notificationRepository) Create(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	var created notification.Notification
	q := `INSERT INTO notifications (account_id, title, message, link, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + notificationColumns
	if err := repo.db.QueryRowxContext(ctx, q, n.AccountID, n.Title, n.Message, n.Link, n.IsRead, n.CreatedAt).Scan(
		&created.ID, &created.AccountID, &created.Title, &created.Message, &created.Link, &created.IsRead, &created.CreatedAt,
	); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return created, nil
}

func (repo notificationRepository) QueryByAccount(ctx context.Context, accountID int, unreadOnly bool) ([]notification.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE account_id = $1`
	if unreadOnly {
		q += ` AND NOT is_read`
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := repo.db.QueryxContext(ctx, q, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting notifications")
	}
	defer rows.Close()

	ns := make([]notification.Notification, 0)
	for rows.Next() {
		var n notification.Notification
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Title, &n.Message, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning notification")
		}
		ns = append(ns, n)
	}
	return ns, errors.Wrap(rows.Err(), "iterating notifications")
}

func (repo notificationRepository) CountUnread(ctx context.Context, accountID int) (int, error) {
	var count int
	q := `SELECT COUNT(*) FROM notifications WHERE account_id = $1 AND NOT is_read`
	if err := repo.db.GetContext(ctx, &count, q, accountID); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}

func (repo notificationRepository) MarkRead(ctx context.Context, accountID, id int) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "marking notification read")
	} else if n == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (repo notificationRepository) MarkAllRead(ctx context.Context, accountID int) (int, error) {
	res, err := repo.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE account_id = $1 AND NOT is_read`, accountID)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	return int(n), nil
}
