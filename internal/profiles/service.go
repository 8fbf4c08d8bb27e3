package profiles

import (
	"context"
	"errors"

	"github.com/freshcut/chickenshop/internal/address"
)

// Contact is the customer snapshot copied onto a sale record.
type Contact struct {
	Name  *string
	Phone *string
}

// Service wraps profile reads. It is the only place the stored address
// column is decoded.
type Service struct {
	repo Repository
}

func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, errors.New("profile repository required")
	}
	return &Service{repo: repo}, nil
}

// Contact returns the user's display name (falling back to the username) and phone.
func (s *Service) Contact(ctx context.Context, userID string) (Contact, error) {
	p, err := s.repo.Find(ctx, userID)
	if err != nil {
		return Contact{}, err
	}
	name := p.DisplayName
	if name == nil || *name == "" {
		username := p.Username
		name = &username
	}
	return Contact{Name: name, Phone: p.Phone}, nil
}

// Address decodes the stored profile address.
func (s *Service) Address(ctx context.Context, userID string) (address.Draft, address.Variant, error) {
	p, err := s.repo.Find(ctx, userID)
	if err != nil {
		return address.Draft{}, address.VariantEmpty, err
	}
	d, variant := address.ParsePtr(p.Address)
	return d, variant, nil
}

// UpdateAddress satisfies address.ProfileWriter.
func (s *Service) UpdateAddress(ctx context.Context, userID, encoded string) error {
	return s.repo.UpdateAddress(ctx, userID, encoded)
}
