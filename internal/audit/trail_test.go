package audit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/scout/internal/bus"
	"github.com/nexus-trading/scout/internal/scan"
)

func alert(i int, token string) scan.Alert {
	return scan.Alert{ID: fmt.Sprintf("a-%d", i), RunID: "run-1", Token: token, ModelID: "degen"}
}

func TestTrail_FIFOEviction(t *testing.T) {
	tr := NewTrail(nil, 3)
	for i := 0; i < 5; i++ {
		require.NoError(t, tr.Emit(context.Background(), alert(i, "mint")))
	}

	assert.Equal(t, 3, tr.Len())
	recent := tr.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "a-4", recent[0].ID)
	assert.Equal(t, "a-2", recent[2].ID)

	assert.Len(t, tr.Recent(2), 2)
	assert.Len(t, tr.Recent(10), 3)
}

func TestTrail_Query(t *testing.T) {
	tr := NewTrail(nil, 10)
	ctx := context.Background()
	require.NoError(t, tr.Emit(ctx, alert(1, "A")))
	require.NoError(t, tr.Emit(ctx, alert(2, "B")))
	require.NoError(t, tr.Emit(ctx, alert(3, "A")))

	got := tr.Query("A")
	require.Len(t, got, 2)
	assert.Equal(t, "a-1", got[0].ID)
	assert.Empty(t, tr.Query("C"))
}

func TestTrail_Publishes(t *testing.T) {
	p := bus.NewMemoryProducer()
	tr := NewTrail(p, 0)
	require.NoError(t, tr.Emit(context.Background(), alert(1, "A")))

	assert.Equal(t, 0, tr.Len())
	msgs := p.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, bus.TopicAudit, msgs[0].Topic)
	assert.Equal(t, "run-1", msgs[0].Key)
}
