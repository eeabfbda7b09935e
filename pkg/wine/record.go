package wine

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for the given ID.
	ErrNotFound = errors.New("wine: record not found")

	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = errors.New("wine: invalid record")
)

// Record is one catalogued wine.
type Record struct {
	ID              string    `json:"id" bson:"_id,omitempty"`
	Nome            string    `json:"nome" bson:"nome"`
	Produtor        string    `json:"produtor,omitempty" bson:"produtor,omitempty"`
	Tipo            string    `json:"tipo" bson:"tipo"`
	Safra           int       `json:"safra,omitempty" bson:"safra,omitempty"`
	Pais            string    `json:"pais,omitempty" bson:"pais,omitempty"`
	Regiao          string    `json:"regiao,omitempty" bson:"regiao,omitempty"`
	TeorAlcoolico   float64   `json:"teorAlcoolico,omitempty" bson:"teor_alcoolico,omitempty"`
	VolumeML        int       `json:"volumeMl,omitempty" bson:"volume_ml,omitempty"`
	Preco           float64   `json:"preco,omitempty" bson:"preco,omitempty"`
	Avaliacao       int       `json:"avaliacao,omitempty" bson:"avaliacao,omitempty"`
	Caracteristicas []string  `json:"caracteristicas,omitempty" bson:"caracteristicas,omitempty"`
	Observacoes     string    `json:"observacoes,omitempty" bson:"observacoes,omitempty"`
	ImagemURL       string    `json:"imagemUrl,omitempty" bson:"imagem_url,omitempty"`
	CreatedAt       time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" bson:"updated_at"`
}

// Validate checks the fields a record cannot do without.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Nome) == "" {
		return errInvalid("nome is required")
	}
	if strings.TrimSpace(r.Tipo) == "" {
		return errInvalid("tipo is required")
	}
	if r.Safra != 0 && (r.Safra < 1800 || r.Safra > time.Now().Year()+1) {
		return errInvalid("safra out of range")
	}
	if r.Avaliacao < 0 || r.Avaliacao > 5 {
		return errInvalid("avaliacao must be between 0 and 5")
	}
	return nil
}

func errInvalid(reason string) error {
	return errors.Join(ErrInvalidRecord, errors.New(reason))
}

// Store persists wine records. List returns records newest first, by
// creation time.
type Store interface {
	Create(ctx context.Context, record Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	Update(ctx context.Context, record Record) (Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Record, error)
}
