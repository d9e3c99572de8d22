package data

import (
	"errors"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/gofrs/uuid"

	"github.com/shekor/harvest-api/prediction"
)

var ErrBatchNotFound = errors.New("batch not found")

// BatchForm is what a farmer enters when registering a harvested lot.
type BatchForm struct {
	CropType           string  `json:"cropType" validate:"required"`
	EstimatedWeight    float64 `json:"estimatedWeight" validate:"gte=1"`
	HarvestDate        Date    `json:"harvestDate"`
	StorageLocation    string  `json:"storageLocation" validate:"required"`
	StorageMethod      string  `json:"storageMethod" validate:"required"`
	StorageTemperature float64 `json:"storageTemperature" validate:"gte=0"`
	MoistureLevel      float64 `json:"moistureLevel" validate:"gte=0,lte=100"`
}

func (f BatchForm) Validate() error {
	if err := validateStruct(f); err != nil {
		return err
	}
	if f.HarvestDate.IsZero() {
		return fmt.Errorf("%w: HarvestDate failed required", ErrInvalidInput)
	}
	return nil
}

func (f BatchForm) Conditions() prediction.Conditions {
	return prediction.Conditions{
		MoistureLevel:      f.MoistureLevel,
		StorageTemperature: f.StorageTemperature,
	}
}

type StoredBatch struct {
	ID         string            `json:"id"`
	Owner      string            `json:"owner"`
	Data       BatchForm         `json:"data"`
	Prediction prediction.Result `json:"prediction"`
	CreatedAt  time.Time         `json:"createdAt"`
}

type batches struct {
	Batches []StoredBatch `json:"batches"`
}

// BatchStore holds registered batches in registration order. Every
// operation is scoped to an owner (the session's mobile number).
type BatchStore struct {
	filePath string
	clock    clock.Clock
}

func NewBatchStore(filePath string) *BatchStore {
	return &BatchStore{filePath: filePath, clock: clock.NewClock()}
}

func (s *BatchStore) Add(owner string, form BatchForm) (*StoredBatch, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	batch := StoredBatch{
		ID:         id.String(),
		Owner:      owner,
		Data:       form,
		Prediction: prediction.Predict(form.Conditions()),
		CreatedAt:  s.clock.Now().UTC(),
	}
	err = JsonUpdateExclusiveLock(s.filePath, func(b *batches) error {
		b.Batches = append(b.Batches, batch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (s *BatchStore) List(owner string) ([]StoredBatch, error) {
	b, err := JsonReadSharedLock[batches](s.filePath)
	if err != nil {
		return nil, err
	}
	result := []StoredBatch{}
	for _, batch := range b.Batches {
		if batch.Owner == owner {
			result = append(result, batch)
		}
	}
	return result, nil
}

func (s *BatchStore) Get(owner, id string) (*StoredBatch, error) {
	b, err := JsonReadSharedLock[batches](s.filePath)
	if err != nil {
		return nil, err
	}
	for _, batch := range b.Batches {
		if batch.ID == id && batch.Owner == owner {
			return &batch, nil
		}
	}
	return nil, ErrBatchNotFound
}

func (s *BatchStore) Delete(owner, id string) error {
	return JsonUpdateExclusiveLock(s.filePath, func(b *batches) error {
		for i, batch := range b.Batches {
			if batch.ID == id && batch.Owner == owner {
				b.Batches = append(b.Batches[:i], b.Batches[i+1:]...)
				return nil
			}
		}
		return ErrBatchNotFound
	})
}
