package patients

import (
	"context"
	"errors"
	"fmt"

	"ng12-risk-assessor/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore reads patients from the "patients" collection of database
func NewMongoStore(client *mongo.Client, database string) Repository {
	return &mongoStore{
		collection: client.Database(database).Collection("patients"),
	}
}

func (r *mongoStore) Get(ctx context.Context, patientID string) (*models.Patient, error) {
	var patient models.Patient
	err := r.collection.FindOne(ctx, bson.M{"patient_id": patientID}).Decode(&patient)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, patientID)
		}
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	return &patient, nil
}

// Seed upserts patients by patient_id, e.g. from a JSONStore
func Seed(ctx context.Context, client *mongo.Client, database string, rows []models.Patient) error {
	collection := client.Database(database).Collection("patients")
	for _, p := range rows {
		_, err := collection.ReplaceOne(ctx,
			bson.M{"patient_id": p.PatientID},
			p,
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("failed to seed patient %s: %w", p.PatientID, err)
		}
	}
	return nil
}
