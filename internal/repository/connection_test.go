package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealersight/credential-server-go/internal/model"
)

func strPtr(s string) *string {
	return &s
}

func TestGroupConnections(t *testing.T) {
	t.Run("groups by user and dealership", func(t *testing.T) {
		conns := []model.Connection{
			{ID: "c1", UserID: "u1", DealershipID: strPtr("d1")},
			{ID: "c2", UserID: "u1", DealershipID: strPtr("d1")},
			{ID: "c3", UserID: "u1", DealershipID: strPtr("d2")},
			{ID: "c4", UserID: "u2", DealershipID: strPtr("d1")},
		}

		groups := GroupConnections(conns)

		require.Len(t, groups, 3)
		assert.Len(t, groups[0].Connections, 2)
		assert.Equal(t, "u1", groups[0].UserID)
		assert.Len(t, groups[1].Connections, 1)
		assert.Len(t, groups[2].Connections, 1)
		assert.Equal(t, "u2", groups[2].UserID)
	})

	t.Run("nil dealership is its own group", func(t *testing.T) {
		conns := []model.Connection{
			{ID: "c1", UserID: "u1", DealershipID: nil},
			{ID: "c2", UserID: "u1", DealershipID: strPtr("d1")},
			{ID: "c3", UserID: "u1", DealershipID: nil},
		}

		groups := GroupConnections(conns)

		require.Len(t, groups, 2)
		assert.Len(t, groups[0].Connections, 2)
		assert.Nil(t, groups[0].DealershipID)
	})

	t.Run("empty input yields no groups", func(t *testing.T) {
		assert.Empty(t, GroupConnections(nil))
	})
}
