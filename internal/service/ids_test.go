package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockUUIDGenerator hands out the given ids in order, then "default-uuid".
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		id := m.uuids[m.callCount]
		m.callCount++
		return id
	}
	return "default-uuid"
}

func TestDefaultUUIDGenerator(t *testing.T) {
	gen := &DefaultUUIDGenerator{}

	a := gen.NewString()
	b := gen.NewString()

	_, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestMockUUIDGenerator(t *testing.T) {
	gen := NewMockUUIDGenerator("run-1")

	assert.Equal(t, "run-1", gen.NewString())
	assert.Equal(t, "default-uuid", gen.NewString())
}
