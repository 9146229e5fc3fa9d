package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchName(t *testing.T) {
	matchers := []string{"amazonvisa", "americanexpress"}

	testCases := []struct {
		name     string
		expected bool
	}{
		{name: "Amazon Visa Signature", expected: true},
		{name: "american  express gold", expected: true},
		{name: "Echo Dot (5th Gen)", expected: false},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, MatchName(test.name, matchers), test.name)
	}
}

func TestEqualFold(t *testing.T) {
	require.True(t, EqualFold(" Next Page ", "next page"))
	require.False(t, EqualFold("Previous Page", "Next Page"))
}
