package memcall

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockCleaner struct {
	mock.Mock
}

func (m *MockCleaner) Unlock(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockCleaner) Free(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func TestClean(t *testing.T) {
	m := new(MockCleaner)

	m.On("Unlock", mock.Anything).Return(nil)
	m.On("Free", mock.Anything).Return(nil)

	assert.NoError(t, Clean(m, []byte("testing")))
	m.AssertExpectations(t)
}

func TestClean_GroupsErrors(t *testing.T) {
	errUnlock := errors.New("error from unlock")
	errFree := errors.New("error from free")

	tests := []struct {
		Name      string
		UnlockErr error
		FreeErr   error
		Expected  string
		Cause     error
	}{
		{
			Name:      "unlock only",
			UnlockErr: errUnlock,
			Expected:  "error from unlock",
			Cause:     errUnlock,
		},
		{
			Name:     "free only",
			FreeErr:  errFree,
			Expected: "error from free",
			Cause:    errFree,
		},
		{
			Name:      "both",
			UnlockErr: errUnlock,
			FreeErr:   errFree,
			Expected:  "error from free: error from unlock",
			Cause:     errUnlock,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.Name, func(t *testing.T) {
			m := new(MockCleaner)

			m.On("Unlock", mock.Anything).Return(tt.UnlockErr)
			m.On("Free", mock.Anything).Return(tt.FreeErr)

			err := Clean(m, []byte("testing"))
			if assert.Error(t, err) {
				assert.EqualError(t, err, tt.Expected)
				assert.True(t, errors.Is(err, tt.Cause))
			}
		})
	}
}

func TestRoundToPageSize(t *testing.T) {
	pageSize := roundToPageSize(1)

	assert.Equal(t, pageSize, roundToPageSize(pageSize))
	assert.Equal(t, pageSize*2, roundToPageSize(pageSize+1))
}
