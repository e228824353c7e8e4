package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/auth"
	"github.com/abricot-app/abricot/internal/logger"
	"github.com/abricot-app/abricot/internal/models"
	"github.com/abricot-app/abricot/internal/types"
	"github.com/abricot-app/abricot/internal/validation"
	"gorm.io/gorm"
)

const searchLimit = 10

type RegisterInput struct {
	Name     string `json:"name" validate:"notblank,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileInput struct {
	Name  *string `json:"name" validate:"omitempty,notblank,min=2,max=100"`
	Email *string `json:"email" validate:"omitempty,email,max=254"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,maxbytes=72"`
}

// Session is a freshly issued token and the user it belongs to.
type Session struct {
	User  types.UserResponse `json:"user"`
	Token string             `json:"token"`
}

type UserService struct {
	db     *gorm.DB
	issuer *auth.Issuer
	logger *slog.Logger
}

func NewUserService(db *gorm.DB, issuer *auth.Issuer) *UserService {
	return &UserService{db: db, issuer: issuer, logger: logger.Component("users")}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	input.Email = normalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if input.Email == types.SystemUserEmail {
		return nil, apperr.Conflict("Email is already registered")
	}

	if taken, err := s.emailTaken(ctx, input.Email, 0); err != nil {
		return nil, apperr.Internal(err)
	} else if taken {
		return nil, apperr.Conflict("Email is already registered")
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := models.User{Name: input.Name, Email: input.Email, PasswordHash: hash}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("Email is already registered")
		}
		return nil, apperr.Internal(err)
	}

	s.logger.InfoContext(ctx, "User registered", "user_id", user.ID)
	return s.session(user)
}

// Login checks credentials. Unknown email and wrong password fail identically.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	input.Email = normalizeEmail(input.Email)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Internal(err)
	}
	if err != nil {
		auth.RejectPassword(input.Password)
		return nil, apperr.Unauthenticated("Invalid email or password")
	}
	if !auth.CheckPassword(user.PasswordHash, input.Password) {
		return nil, apperr.Unauthenticated("Invalid email or password")
	}

	return s.session(user)
}

func (s *UserService) session(user models.User) (*Session, error) {
	token, err := s.issuer.GenerateJWT(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Session{User: userResponse(user), Token: token}, nil
}

// Get loads a user by id; a deleted account reads as unauthenticated.
func (s *UserService) Get(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthenticated("User no longer exists")
		}
		return nil, apperr.Internal(err)
	}
	return &user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, input UpdateProfileInput) (*types.UserResponse, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		input.Email = &email
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		input.Name = &name
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Email != nil && *input.Email != user.Email {
		if *input.Email == types.SystemUserEmail {
			return nil, apperr.Conflict("Email is already registered")
		}
		taken, err := s.emailTaken(ctx, *input.Email, user.ID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if taken {
			return nil, apperr.Conflict("Email is already registered")
		}
		updates["email"] = *input.Email
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, apperr.Internal(err)
		}
		if input.Name != nil {
			user.Name = *input.Name
		}
		if email, ok := updates["email"].(string); ok {
			user.Email = email
		}
	}

	resp := userResponse(*user)
	return &resp, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID uint, input ChangePasswordInput) error {
	if err := validation.Struct(input); err != nil {
		return err
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, input.CurrentPassword) {
		return apperr.InvalidField("current_password", "is incorrect")
	}

	hash, err := auth.HashPassword(input.NewPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return apperr.Internal(err)
	}

	s.logger.InfoContext(ctx, "Password changed", "user_id", userID)
	return nil
}

// Search matches name or email substrings, excluding the caller and the system user.
func (s *UserService) Search(ctx context.Context, userID uint, query string) ([]types.UserResponse, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if len(query) < 2 {
		return []types.UserResponse{}, nil
	}

	pattern := "%" + escapeLike(query) + "%"
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("(LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(email) LIKE ? ESCAPE '\\')", pattern, pattern).
		Where("id <> ? AND email <> ?", userID, types.SystemUserEmail).
		Order("name").
		Limit(searchLimit).
		Find(&users).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}

	out := make([]types.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse(u))
	}
	return out, nil
}

func (s *UserService) emailTaken(ctx context.Context, email string, exceptID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? AND id <> ?", email, exceptID).
		Count(&count).Error
	return count > 0, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
