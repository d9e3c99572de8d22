package data

import (
	"errors"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrProfileExists      = errors.New("user with this mobile number already exists")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrInvalidCredentials = errors.New("invalid mobile number or password")
)

const RoleFarmer = "farmer"

type Profile struct {
	ID        string    `json:"id"`
	NID       string    `json:"nid"`
	Mobile    string    `json:"mobile"`
	Name      string    `json:"name"`
	District  string    `json:"district"`
	FarmSize  float64   `json:"farmSize"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// storedProfile is the on-disk record; the hash never leaves this package.
type storedProfile struct {
	Profile
	PasswordHash string `json:"password_hash"`
}

type NewProfile struct {
	NID      string  `json:"nid" validate:"required"`
	Mobile   string  `json:"mobile" validate:"required,numeric,min=6,max=15"`
	Name     string  `json:"name" validate:"required"`
	District string  `json:"district" validate:"required"`
	FarmSize float64 `json:"farmSize" validate:"gt=0"`
	Password string  `json:"password" validate:"min=4"`
}

type profiles struct {
	Users map[string]storedProfile `json:"users"`
}

// ProfileStore keeps user records keyed by mobile number.
type ProfileStore struct {
	filePath   string
	bcryptCost int
	clock      clock.Clock
}

func NewProfileStore(filePath string) *ProfileStore {
	return &ProfileStore{
		filePath:   filePath,
		bcryptCost: bcrypt.DefaultCost,
		clock:      clock.NewClock(),
	}
}

func (s *ProfileStore) Add(newProfile NewProfile) (*Profile, error) {
	if err := validateStruct(newProfile); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newProfile.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	profile := Profile{
		ID:        "user_" + id.String(),
		NID:       newProfile.NID,
		Mobile:    newProfile.Mobile,
		Name:      newProfile.Name,
		District:  newProfile.District,
		FarmSize:  newProfile.FarmSize,
		Role:      RoleFarmer,
		CreatedAt: s.clock.Now().UTC(),
	}

	err = JsonUpdateExclusiveLock(s.filePath, func(p *profiles) error {
		if p.Users == nil {
			p.Users = map[string]storedProfile{}
		}
		if _, exists := p.Users[profile.Mobile]; exists {
			return ErrProfileExists
		}
		p.Users[profile.Mobile] = storedProfile{Profile: profile, PasswordHash: string(hash)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *ProfileStore) GetByMobile(mobile string) (*Profile, error) {
	stored, err := s.get(mobile)
	if err != nil {
		return nil, err
	}
	return &stored.Profile, nil
}

// Authenticate returns the profile for mobile if password matches its stored hash.
func (s *ProfileStore) Authenticate(mobile, password string) (*Profile, error) {
	stored, err := s.get(mobile)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &stored.Profile, nil
}

func (s *ProfileStore) get(mobile string) (*storedProfile, error) {
	p, err := JsonReadSharedLock[profiles](s.filePath)
	if err != nil {
		return nil, err
	}
	stored, ok := p.Users[mobile]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &stored, nil
}
