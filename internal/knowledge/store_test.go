package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spark-health/sparkai/internal/log"
)

func TestInsert_RejectsEmptyVector(t *testing.T) {
	s := New(nil, log.NewNop())

	err := s.Insert(context.Background(), "content", nil, "nomic-embed-text")
	assert.ErrorIs(t, err, ErrEmptyVector)

	err = s.Insert(context.Background(), "content", []float32{}, "nomic-embed-text")
	assert.ErrorIs(t, err, ErrEmptyVector)
}

func TestNearestK_RejectsInvalidArguments(t *testing.T) {
	s := New(nil, log.NewNop())

	_, err := s.NearestK(context.Background(), nil, "nomic-embed-text", 2)
	assert.ErrorIs(t, err, ErrEmptyVector)

	_, err = s.NearestK(context.Background(), []float32{0.1}, "nomic-embed-text", 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = s.NearestK(context.Background(), []float32{0.1}, "nomic-embed-text", -3)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestListContentByModel_RejectsInvalidLimit(t *testing.T) {
	s := New(nil, log.NewNop())

	_, err := s.ListContentByModel(context.Background(), "nomic-embed-text", 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}
