// Package avatar stores profile pictures in object storage.
package avatar

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

// MaxUploadSize is the largest accepted avatar.
const MaxUploadSize = 5 << 20

// Users is implemented by *user.UserService.
type Users interface {
	Get(ctx context.Context, id string) (*entity.User, error)
	SetAvatarURL(ctx context.Context, id string, url *string) (*entity.User, error)
}

// File is an uploaded image.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type Service struct {
	users   Users
	storage Storage
	logger  *zap.SugaredLogger
	newID   func() string
}

func NewService(users Users, storage Storage, logger *zap.SugaredLogger) *Service {
	return &Service{users: users, storage: storage, logger: logger, newID: utilities.NewSnowflakeID}
}

// ObjectKey is avatars/<userID>/<id><ext>, with ext lower-cased.
func ObjectKey(userID, id, filename string) string {
	ext := ".jpg"
	if filename != "" {
		ext = strings.ToLower(filepath.Ext(filename))
	}
	return fmt.Sprintf("avatars/%s/%s%s", userID, id, ext)
}

// Upload stores f as the user's avatar and removes the previous object when
// it lives under a different key.
func (s *Service) Upload(ctx context.Context, userID string, f File) (*entity.User, string, error) {
	cur, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	key := ObjectKey(userID, s.newID(), f.Name)
	url, err := s.storage.Put(ctx, key, f.Data, f.ContentType, map[string]string{
		"originalname": f.Name,
		"uploadedby":   userID,
	})
	if err != nil {
		return nil, "", err
	}
	updated, err := s.users.SetAvatarURL(ctx, userID, &url)
	if err != nil {
		return nil, "", err
	}

	if prev := cur.AvatarURL; prev != nil && *prev != "" && *prev != url {
		if prevKey := s.storage.KeyFromURL(*prev); prevKey != "" && prevKey != key {
			if err := s.storage.Delete(ctx, prevKey); err != nil {
				s.logger.Warnw("delete previous avatar failed", "user_id", userID, "key", prevKey, "err", err)
			}
		}
	}
	return updated, url, nil
}

// Remove deletes the user's avatar. deleted is false when there was none.
func (s *Service) Remove(ctx context.Context, userID string) (*entity.User, bool, error) {
	cur, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if cur.AvatarURL == nil || *cur.AvatarURL == "" {
		return cur, false, nil
	}
	if key := s.storage.KeyFromURL(*cur.AvatarURL); key != "" {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warnw("delete avatar object failed", "user_id", userID, "key", key, "err", err)
		}
	}
	updated, err := s.users.SetAvatarURL(ctx, userID, nil)
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}
