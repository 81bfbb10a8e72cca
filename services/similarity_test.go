package services

import (
	"sonata/types"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSimilarity tests the normalized edit-distance ratio
func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{"identical", "Imagine Dragons", "Imagine Dragons", 1.0},
		{"case insensitive", "LEVITATING", "levitating", 1.0},
		{"disjoint equal length", "abcde", "vwxyz", 0.0},
		{"both empty", "", "", 1.0},
		{"feat credit ignored", "Levitating", "Levitating (feat. DaBaby)", 1.0},
		{"bracketed remix tag ignored", "Levitating", "Levitating [Radio Edit]", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Similarity(tt.a, tt.b), 0.001)
		})
	}
}

// TestSimilarityRange tests that scores stay within [0,1]
func TestSimilarityRange(t *testing.T) {
	pairs := [][2]string{
		{"a", "completely different string"},
		{"Blinding Lights", "Levitating"},
		{"", "something"},
	}

	for _, pair := range pairs {
		score := Similarity(pair[0], pair[1])
		assert.GreaterOrEqual(t, score, 0.0, "%q vs %q", pair[0], pair[1])
		assert.LessOrEqual(t, score, 1.0, "%q vs %q", pair[0], pair[1])
	}
}

// TestAcceptMatch tests catalog match validation against the thresholds
func TestAcceptMatch(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		artist   string
		record   *types.MetadataRecord
		expected bool
	}{
		{
			name:     "exact match",
			title:    "Levitating",
			artist:   "Dua Lipa",
			record:   &types.MetadataRecord{Title: "Levitating", Artist: "Dua Lipa"},
			expected: true,
		},
		{
			name:     "feat variant accepted",
			title:    "Levitating",
			artist:   "Dua Lipa",
			record:   &types.MetadataRecord{Title: "Levitating (feat. DaBaby)", Artist: "Dua Lipa, DaBaby"},
			expected: true,
		},
		{
			name:     "wrong song rejected",
			title:    "Levitating",
			artist:   "Dua Lipa",
			record:   &types.MetadataRecord{Title: "Blinding Lights", Artist: "The Weeknd"},
			expected: false,
		},
		{
			name:     "title match without search artist",
			title:    "Levitating",
			artist:   "",
			record:   &types.MetadataRecord{Title: "Levitating", Artist: "Someone Else"},
			expected: true,
		},
		{
			name:     "title match but wrong artist",
			title:    "Levitating",
			artist:   "Dua Lipa",
			record:   &types.MetadataRecord{Title: "Levitating", Artist: "Zzzzzzzzzz"},
			expected: false,
		},
		{
			name:     "nil record",
			title:    "Levitating",
			artist:   "Dua Lipa",
			record:   nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AcceptMatch(tt.title, tt.artist, tt.record))
		})
	}
}
