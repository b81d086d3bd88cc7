package store

import (
	"context"
	"fmt"

	"github.com/capitalize-ai/proconnect/internal/model"
)

// CreateProfile provisions a profile. An empty id is assigned.
func (s *Store) CreateProfile(ctx context.Context, p *model.Profile) error {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.UserType == "" {
		p.UserType = model.UserTypeProfessional
	}
	if !p.UserType.Valid() {
		return fmt.Errorf("%w: user type %q", ErrInvalidArgument, p.UserType)
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetProfile loads one profile.
func (s *Store) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", id, notFound(err))
	}
	return &p, nil
}

// CreateCompany inserts a company page.
func (s *Store) CreateCompany(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Name == "" {
		return fmt.Errorf("%w: company name is required", ErrInvalidArgument)
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}
