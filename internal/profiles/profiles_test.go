package profiles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshcut/chickenshop/internal/address"
	"github.com/freshcut/chickenshop/pkg/db/dbtest"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/enums"
	pkgerrors "github.com/freshcut/chickenshop/pkg/errors"
)

func TestContactPrefersDisplayName(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	p := dbtest.MustCreateProfile(t, db, "asha", enums.RoleCustomer)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	contact, err := svc.Contact(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, contact.Name)
	assert.Equal(t, "Asha", *contact.Name)
	require.NotNil(t, contact.Phone)
}

func TestContactFallsBackToUsername(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	p := dbtest.MustCreateProfile(t, db, "vikram", enums.RoleCustomer)
	require.NoError(t, db.Model(&models.UserProfile{}).Where("id = ?", p.ID).Update("display_name", nil).Error)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	contact, err := svc.Contact(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "vikram", *contact.Name)

	_, err = svc.Contact(ctx, "missing")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestAddressReadsBothEncodings(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	p := dbtest.MustCreateProfile(t, db, "meera", enums.RoleCustomer)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	_, variant, err := svc.Address(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, address.VariantEmpty, variant)

	require.NoError(t, db.Model(&models.UserProfile{}).Where("id = ?", p.ID).Update("address", "Old bus stand road").Error)
	d, variant, err := svc.Address(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, address.VariantLegacy, variant)
	assert.Equal(t, "Old bus stand road", d.Format())

	encoded, err := address.Encode(address.Draft{House: "5", Location: "Hill Road"})
	require.NoError(t, err)
	require.NoError(t, svc.UpdateAddress(ctx, p.ID, encoded))
	d, variant, err = svc.Address(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, address.VariantStructured, variant)
	assert.Equal(t, "5, Hill Road", d.Format())

	err = svc.UpdateAddress(ctx, "missing", encoded)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
