package utils

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID("bid")
	require.True(t, strings.HasPrefix(id, "bid-"))
	_, err := uuid.Parse(strings.TrimPrefix(id, "bid-"))
	require.NoError(t, err)

	bare := GenerateID("")
	_, err = uuid.Parse(bare)
	require.NoError(t, err)

	require.NotEqual(t, GenerateID("bid"), GenerateID("bid"))
}
