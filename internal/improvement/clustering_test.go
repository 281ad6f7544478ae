package improvement

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClusterMessages_GroupsSimilarMessages(t *testing.T) {
	clusters := clusterMessages([]string{
		"please transfer funds to alice",
		"transfer money to the alice wallet",
		"what is the weather today",
	})
	require.Len(t, clusters, 2)
}

func TestClusterMessages_EmptyInput(t *testing.T) {
	require.Empty(t, clusterMessages(nil))
}

func TestClusterMessages_ShortMessageJoinsOnSingleOverlap(t *testing.T) {
	clusters := clusterMessages([]string{"deploy now", "deploy later please"})
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Examples, 2)
}

func TestSuggestedPattern_OrdersRepresentativeTokensFirst(t *testing.T) {
	c := clusterMessages([]string{"transfer funds please", "transfer more funds"})[0]
	pattern := suggestedPattern(c)
	require.Contains(t, pattern, "transfer")
	require.Contains(t, pattern, "funds")
	require.Equal(t, "transfer.*funds.*please.*more", pattern)
}
