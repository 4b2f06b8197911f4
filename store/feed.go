package store

import (
	"context"

	"github.com/cppla/carbontrack/models"
	"github.com/cppla/carbontrack/notify"
)

func (s *Store) LoadFeed(ctx context.Context, userID string) ([]notify.Notification, error) {
	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]notify.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, notify.Notification{
			ID:        r.ID,
			Category:  notify.Category(r.Category),
			Title:     r.Title,
			Message:   r.Message,
			Read:      r.Read,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) SaveNotification(ctx context.Context, userID string, n notify.Notification) error {
	row := models.Notification{
		ID:        n.ID,
		UserID:    userID,
		Category:  string(n.Category),
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) MarkRead(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("is_read", true).Error
}
