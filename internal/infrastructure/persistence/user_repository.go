package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/pkg/constants"
	"github.com/nexuscrm/salescrm/pkg/query"
)

var profileColumns = []string{
	"id", "email", "full_name", "role", "avatar_url", "password_hash", "created_at", "updated_at",
}

// UserRepository persists user_profiles.
type UserRepository struct {
	*RecordRepository
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(base *RecordRepository) *UserRepository {
	return &UserRepository{RecordRepository: base}
}

func scanProfile(s rowScanner) (*models.UserProfile, error) {
	var p models.UserProfile
	var fullName, avatar sql.NullString
	if err := s.Scan(&p.ID, &p.Email, &fullName, &p.Role, &avatar, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.FullName = nullableString(fullName)
	p.AvatarURL = nullableString(avatar)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (r *UserRepository) findOne(ctx context.Context, column string, value interface{}) (*models.UserProfile, error) {
	q := query.From(constants.TableUserProfiles).
		Select(profileColumns...).
		Where(constants.TableUserProfiles+"."+column+" = ?", value).
		Limit(1).
		Build()
	p, err := scanProfile(r.GetExecutor(ctx).QueryRowContext(ctx, q.SQL, q.Params...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// GetUserByID fetches a profile by id.
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.UserProfile, error) {
	return r.findOne(ctx, constants.FieldID, userID)
}

// FindUserByEmail fetches a profile, including its password hash, by email.
func (r *UserRepository) FindUserByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	return r.findOne(ctx, constants.FieldEmail, strings.ToLower(strings.TrimSpace(email)))
}

// CheckUserExistsByEmail reports whether any profile uses email.
func (r *UserRepository) CheckUserExistsByEmail(ctx context.Context, email string) (bool, error) {
	q := query.From(constants.TableUserProfiles).
		SelectRaw("COUNT(*)").
		Where("user_profiles.email = ?", strings.ToLower(strings.TrimSpace(email))).
		Build()
	var n int
	if err := r.GetExecutor(ctx).QueryRowContext(ctx, q.SQL, q.Params...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateUser inserts p. ID and timestamps must already be set.
func (r *UserRepository) CreateUser(ctx context.Context, p *models.UserProfile) error {
	return r.Insert(ctx, constants.TableUserProfiles, map[string]interface{}{
		"id":            p.ID,
		"email":         strings.ToLower(strings.TrimSpace(p.Email)),
		"full_name":     nullable(p.FullName),
		"role":          p.Role,
		"avatar_url":    nullable(p.AvatarURL),
		"password_hash": p.PasswordHash,
		"created_at":    p.CreatedAt,
		"updated_at":    p.UpdatedAt,
	})
}

// UpdateUser applies a partial update to a profile.
func (r *UserRepository) UpdateUser(ctx context.Context, userID string, updates map[string]interface{}) error {
	return r.Update(ctx, constants.TableUserProfiles, "", userID, updates, true)
}

// FindAll retrieves all profiles, newest first.
func (r *UserRepository) FindAll(ctx context.Context) ([]*models.UserProfile, error) {
	q := query.From(constants.TableUserProfiles).
		Select(profileColumns...).
		OrderBy(constants.FieldCreatedAt, constants.SortDESC).
		Build()

	rows, err := r.GetExecutor(ctx).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	users := make([]*models.UserProfile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		users = append(users, p)
	}
	return users, rows.Err()
}
