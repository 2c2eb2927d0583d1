package memory

import (
	"context"
	"testing"

	"github.com/ecofridge/server/internal/infrastructure/persistence/gatewaytest"
	"github.com/ecofridge/server/internal/ports/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayContract(t *testing.T) {
	gatewaytest.Run(t, func(t *testing.T) outbound.Gateway { return NewGateway() })
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway()
	require.NoError(t, gw.AddExperience(ctx, "t1", 3))

	p, err := gw.GetProfile(ctx, "t1")
	require.NoError(t, err)
	p.Exp = 100

	again, err := gw.GetProfile(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, again.Exp)
}
