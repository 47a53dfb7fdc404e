package predictions

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdtarifa/internal/testutil/fakeapi"
)

func TestSeeder_Seed(t *testing.T) {
	t.Parallel()

	server := fakeapi.New(t)
	client := server.Client(t)
	search := NewSearch(client, nil)
	seeder := NewSeeder(client, nil)

	inserted, err := seeder.Seed(t.Context())
	require.NoError(t, err)
	assert.Equal(t, fakeapi.DefaultSeedCount, inserted)
	assert.Equal(t, SeedMessage(fakeapi.DefaultSeedCount), seeder.Message())
	assert.Empty(t, seeder.Err())
	assert.False(t, seeder.Busy())

	inserted, err = seeder.Seed(t.Context())
	require.NoError(t, err)
	assert.Zero(t, inserted, "rules already present")
	assert.Equal(t, "Demo rules loaded: 0 inserted.", seeder.Message())

	assert.Empty(t, search.Results(), "seeding never touches query results")
	assert.Zero(t, server.Count(http.MethodGet, "/predictions"))
}

func TestSeeder_Failure(t *testing.T) {
	t.Parallel()

	server := fakeapi.New(t)
	seeder := NewSeeder(server.Client(t), nil)

	_, err := seeder.Seed(t.Context())
	require.NoError(t, err)

	server.Fail(http.MethodPost, "/prediction-rules/seed", fakeapi.Failure{Status: http.StatusForbidden, Detail: "Seeding disabled"})
	_, err = seeder.Seed(t.Context())
	require.Error(t, err)
	assert.Equal(t, "Seeding disabled", seeder.Err())
	assert.Empty(t, seeder.Message(), "stale success message cleared")
}

func TestSeedMessage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Demo rules loaded: 12 inserted.", SeedMessage(12))
}
