package patients

import (
	"context"
	"testing"

	"ng12-risk-assessor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping mongo container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	endpoint, err := container.Endpoint(ctx, "mongodb")
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(endpoint))
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	rows := []models.Patient{
		{PatientID: "PT-101", Age: 55, Symptoms: []string{"unexplained hemoptysis"}},
		{PatientID: "PT-102", Age: 25, Symptoms: []string{"persistent cough"}},
	}
	require.NoError(t, Seed(ctx, client, "ng12_test", rows))
	// seeding twice must not duplicate
	require.NoError(t, Seed(ctx, client, "ng12_test", rows))

	store := NewMongoStore(client, "ng12_test")

	p, err := store.Get(ctx, "PT-102")
	require.NoError(t, err)
	assert.Equal(t, 25, p.Age)
	assert.Equal(t, []string{"persistent cough"}, p.Symptoms)

	_, err = store.Get(ctx, "PT-404")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := client.Database("ng12_test").Collection("patients").CountDocuments(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
