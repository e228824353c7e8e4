package services

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/abricot-app/abricot/internal/models"
	"github.com/abricot-app/abricot/internal/types"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// unusablePasswordHash is not a bcrypt digest, so no password ever matches it.
const unusablePasswordHash = "!"

// SystemIdentity lazily provisions the reserved user credited with AI-generated tasks.
type SystemIdentity struct {
	db    *gorm.DB
	group singleflight.Group
	id    atomic.Uint64
}

func NewSystemIdentity(db *gorm.DB) *SystemIdentity {
	return &SystemIdentity{db: db}
}

// EnsureID inserts the system user if needed and returns its id. The insert
// is an upsert on the unique email, so concurrent first calls, even from other
// processes, converge on a single row.
func (s *SystemIdentity) EnsureID(ctx context.Context) (uint, error) {
	if id := s.id.Load(); id != 0 {
		return uint(id), nil
	}

	v, err, _ := s.group.Do("system-user", func() (any, error) {
		// Coalesced waiters share this call, so it must outlive the first caller.
		ctx := context.WithoutCancel(ctx)

		user := models.User{
			Name:         types.SystemUserName,
			Email:        types.SystemUserEmail,
			PasswordHash: unusablePasswordHash,
		}

		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
			Create(&user).Error
		if err != nil {
			return uint(0), fmt.Errorf("upsert system user: %w", err)
		}

		var existing models.User
		if err := s.db.WithContext(ctx).Where("email = ?", types.SystemUserEmail).First(&existing).Error; err != nil {
			return uint(0), fmt.Errorf("load system user: %w", err)
		}

		s.id.Store(uint64(existing.ID))
		return existing.ID, nil
	})
	if err != nil {
		return 0, err
	}

	return v.(uint), nil
}
