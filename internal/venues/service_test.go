package venues

import (
	"context"
	"testing"

	"github.com/angelmondragon/marketprep-backend/internal/dbtest"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCreateAndListVenues(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, client)
	require.NoError(t, err)
	ctx := context.Background()
	vendorID := uuid.New()

	loc := " L1 "
	created, err := svc.CreateVenue(ctx, vendorID, CreateVenueInput{Name: "Ferry Plaza", Latitude: 37.79, Longitude: -122.39, SquareLocationID: &loc})
	require.NoError(t, err)
	require.Equal(t, "L1", *created.SquareLocationID)

	_, err = svc.CreateVenue(ctx, vendorID, CreateVenueInput{Name: "Alemany", Latitude: 37.73, Longitude: -122.41})
	require.NoError(t, err)
	_, err = svc.CreateVenue(ctx, uuid.New(), CreateVenueInput{Name: "Other", Latitude: 1, Longitude: 1})
	require.NoError(t, err)

	list, err := svc.ListVenues(ctx, vendorID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Alemany", list[0].Name)

	byLocation, err := repo.MapBySquareLocation(ctx, vendorID)
	require.NoError(t, err)
	require.Equal(t, map[string]uuid.UUID{"L1": created.ID}, byLocation)
}

func TestCreateVenueValidation(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()), client)
	require.NoError(t, err)

	_, err = svc.CreateVenue(context.Background(), uuid.New(), CreateVenueInput{Name: "x", Latitude: 91})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.CreateVenue(context.Background(), uuid.New(), CreateVenueInput{Name: " "})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestFindByIDRejectsForeignVenue(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, client)
	require.NoError(t, err)
	ctx := context.Background()

	created, err := svc.CreateVenue(ctx, uuid.New(), CreateVenueInput{Name: "Mine", Latitude: 1, Longitude: 1})
	require.NoError(t, err)

	_, err = repo.FindByID(ctx, uuid.New(), created.ID)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
