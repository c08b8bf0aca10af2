package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	got := Sanitize([]string{
		`"renewable energy"`,
		"  solar   panels ",
		"Renewable Energy",
		"title 42 public health",
		"'net metering',",
		"",
		"Title 7",
		"“smart grid”",
	})

	assert.Equal(t, []string{"renewable energy", "solar panels", "public health", "net metering", "smart grid"}, got)
}

func TestSanitize_KeepsPossessivesWhole(t *testing.T) {
	got := Sanitize([]string{"children's health", "workers’ compensation", "'farmers' markets'"})

	assert.Equal(t, []string{"childrens health", "workers compensation", "farmers markets"}, got)
}

func TestBatches(t *testing.T) {
	b := Batches([]string{"a", "b", "c", "d", "e", "f", "g"}, 5)

	assert.Len(t, b, 2)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, b[0])
	assert.Equal(t, []string{"f", "g"}, b[1])
	assert.Empty(t, Batches(nil, 5))
}
