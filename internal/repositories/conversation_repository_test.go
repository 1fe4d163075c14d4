package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectKeyCanonicalOrder(t *testing.T) {
	assert.Equal(t, "1:2", directKey(1, 2))
	assert.Equal(t, "1:2", directKey(2, 1))
	assert.Equal(t, "7:7", directKey(7, 7))
}

func TestDirectKeyDistinguishesPairs(t *testing.T) {
	assert.NotEqual(t, directKey(1, 23), directKey(12, 3))
}
