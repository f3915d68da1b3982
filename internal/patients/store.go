package patients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"ng12-risk-assessor/internal/models"
)

// ErrNotFound is returned when no patient has the requested id
var ErrNotFound = errors.New("patient not found")

// Repository looks up patient records by id
type Repository interface {
	Get(ctx context.Context, patientID string) (*models.Patient, error)
}

// JSONStore serves patients from a JSON array file, loaded once on first use
type JSONStore struct {
	Path string

	once     sync.Once
	patients map[string]models.Patient
	loadErr  error
}

// NewJSONStore creates a store backed by the file at path
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{Path: path}
}

func (s *JSONStore) load() {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		s.loadErr = fmt.Errorf("failed to read patients file: %w", err)
		return
	}

	var rows []models.Patient
	if err := json.Unmarshal(data, &rows); err != nil {
		s.loadErr = fmt.Errorf("failed to decode patients file: %w", err)
		return
	}

	s.patients = make(map[string]models.Patient, len(rows))
	for _, p := range rows {
		if _, exists := s.patients[p.PatientID]; !exists {
			s.patients[p.PatientID] = p
		}
	}
}

// Get returns the first patient with a matching id
func (s *JSONStore) Get(_ context.Context, patientID string) (*models.Patient, error) {
	s.once.Do(s.load)
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	p, ok := s.patients[patientID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, patientID)
	}
	return &p, nil
}

// All returns every loaded patient, in no particular order
func (s *JSONStore) All(_ context.Context) ([]models.Patient, error) {
	s.once.Do(s.load)
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make([]models.Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, p)
	}
	return out, nil
}
