package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/testaustime/testaustime-auth/internal/models"
)

const (
	maxUsernameLength = 32
	// maxCreateAttempts bounds retries when a concurrently created account
	// takes the username picked for this one
	maxCreateAttempts = 5
)

// Store resolves TestausID identities to testaustime accounts
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates an identity store on top of db
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// LoginOrCreate returns the session token of the account linked to externalID.
// The first login creates the account. The insert is a no-op when another
// request created the same external id concurrently, so every caller ends
// up reading the single surviving row.
func (s *Store) LoginOrCreate(ctx context.Context, externalID, displayName, platformID string) (string, error) {
	if externalID == "" {
		return "", errors.New("external id is required")
	}

	db := s.db.WithContext(ctx)

	if user, err := s.findByExternalID(db, externalID); err == nil {
		return user.AuthToken, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		username, err := s.availableUsername(db, displayName)
		if err != nil {
			return "", err
		}
		token, err := generateToken()
		if err != nil {
			return "", err
		}

		user := models.User{
			Username:   username,
			ExternalID: &externalID,
			PlatformID: &platformID,
			AuthToken:  token,
			CreatedAt:  time.Now().UTC(),
		}

		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).Create(&user)
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			// Lost a race for the username or token; pick again
			continue
		}
		if result.Error != nil {
			return "", fmt.Errorf("failed to create user: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			s.logger.Info("Identity: Created account from TestausID",
				zap.String("external_id", externalID),
				zap.String("username", username),
			)
		}

		existing, err := s.findByExternalID(db, externalID)
		if err != nil {
			return "", err
		}
		return existing.AuthToken, nil
	}

	return "", fmt.Errorf("failed to create user for external id %s after %d attempts", externalID, maxCreateAttempts)
}

// FindByToken returns the account owning a session token
func (s *Store) FindByToken(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("auth_token = ?", token).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) findByExternalID(db *gorm.DB, externalID string) (*models.User, error) {
	var user models.User
	err := db.Where("external_id = ?", externalID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &user, nil
}

// availableUsername derives a free username from the display name
func (s *Store) availableUsername(db *gorm.DB, displayName string) (string, error) {
	base := sanitizeUsername(displayName)

	username := base
	for counter := 2; ; counter++ {
		var count int64
		if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if count == 0 {
			return username, nil
		}

		suffix := fmt.Sprintf("%d", counter)
		username = truncate(base, maxUsernameLength-len(suffix)) + suffix
	}
}

func sanitizeUsername(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Join(strings.Fields(name), "_")
	if name == "" {
		name = "user"
	}
	return truncate(name, maxUsernameLength)
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// generateToken returns a new opaque session token
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
