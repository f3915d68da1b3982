package main

import (
	"context"
	"flag"
	"log"
	"time"

	"ng12-risk-assessor/internal/config"
	"ng12-risk-assessor/internal/patients"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// seed copies the patients JSON file into MongoDB
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	path := flag.String("patients", cfg.PatientsPath, "Patients JSON file")
	mongoURI := flag.String("mongo", cfg.MongoURI, "MongoDB connection string")
	database := flag.String("db", cfg.MongoDatabase, "MongoDB database")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := patients.NewJSONStore(*path).All(ctx)
	if err != nil {
		log.Fatalf("Failed to read patients: %v", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(*mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	if err := patients.Seed(ctx, client, *database, rows); err != nil {
		log.Fatalf("Failed to seed patients: %v", err)
	}
	log.Printf("Seeded %d patients into %s.patients", len(rows), *database)
}
