package data

import (
	"errors"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/gofrs/uuid"
)

// MaxNotifications is how many notifications are kept per owner.
const MaxNotifications = 50

var ErrNotificationNotFound = errors.New("notification not found")

type Notification struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	IsRead      bool      `json:"isRead"`
}

type notifications struct {
	ByOwner map[string][]Notification `json:"notifications"`
}

// NotificationStore keeps each owner's notifications newest first.
type NotificationStore struct {
	filePath string
	clock    clock.Clock
}

func NewNotificationStore(filePath string) *NotificationStore {
	return &NotificationStore{filePath: filePath, clock: clock.NewClock()}
}

func (s *NotificationStore) Add(owner, notificationType, message, description string) (*Notification, error) {
	n, _, err := s.add(owner, notificationType, message, description, false)
	return n, err
}

// AddUnlessLatest is Add, except that when the owner's newest notification
// already carries the same type, message and description that one is returned
// and nothing is stored.
func (s *NotificationStore) AddUnlessLatest(owner, notificationType, message, description string) (*Notification, bool, error) {
	return s.add(owner, notificationType, message, description, true)
}

func (s *NotificationStore) add(owner, notificationType, message, description string, skipRepeat bool) (*Notification, bool, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, false, err
	}
	n := Notification{
		ID:          id.String(),
		Type:        notificationType,
		Message:     message,
		Description: description,
		Timestamp:   s.clock.Now().UTC(),
	}
	added := true
	err = JsonUpdateExclusiveLock(s.filePath, func(all *notifications) error {
		if all.ByOwner == nil {
			all.ByOwner = map[string][]Notification{}
		}
		existing := all.ByOwner[owner]
		if skipRepeat && len(existing) > 0 && existing[0].sameContent(n) {
			n = existing[0]
			added = false
			return nil
		}
		list := append([]Notification{n}, existing...)
		if len(list) > MaxNotifications {
			list = list[:MaxNotifications]
		}
		all.ByOwner[owner] = list
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &n, added, nil
}

func (n Notification) sameContent(other Notification) bool {
	return n.Type == other.Type && n.Message == other.Message && n.Description == other.Description
}

func (s *NotificationStore) List(owner string) ([]Notification, error) {
	all, err := JsonReadSharedLock[notifications](s.filePath)
	if err != nil {
		return nil, err
	}
	list := all.ByOwner[owner]
	if list == nil {
		list = []Notification{}
	}
	return list, nil
}

func (s *NotificationStore) UnreadCount(owner string) (int, error) {
	list, err := s.List(owner)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range list {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *NotificationStore) MarkRead(owner, id string) error {
	return JsonUpdateExclusiveLock(s.filePath, func(all *notifications) error {
		list := all.ByOwner[owner]
		for i := range list {
			if list[i].ID == id {
				list[i].IsRead = true
				return nil
			}
		}
		return ErrNotificationNotFound
	})
}

func (s *NotificationStore) MarkAllRead(owner string) error {
	return JsonUpdateExclusiveLock(s.filePath, func(all *notifications) error {
		for i := range all.ByOwner[owner] {
			all.ByOwner[owner][i].IsRead = true
		}
		return nil
	})
}
