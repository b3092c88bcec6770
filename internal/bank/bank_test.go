package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBankIsClosed(t *testing.T) {
	b := New()
	assert.Equal(t, Closed, b.State)
	assert.Equal(t, NoRow, b.OpenRow)
	assert.True(t, b.IsOpenInvariantOK())
}

func TestActivateOpensRowAndResetsHitCount(t *testing.T) {
	b := New()
	b.RowHitCount = 3
	b.Activate(42)

	assert.Equal(t, Open, b.State)
	assert.Equal(t, 42, b.OpenRow)
	assert.Equal(t, 0, b.RowHitCount)
	assert.True(t, b.IsOpenInvariantOK())
}

func TestPrechargeClosesBank(t *testing.T) {
	b := New()
	b.Activate(1)
	b.Precharge()

	assert.Equal(t, Closed, b.State)
	assert.Equal(t, NoRow, b.OpenRow)
	assert.True(t, b.IsOpenInvariantOK())
}

func TestAccessRowIncrementsHitCount(t *testing.T) {
	b := New()
	b.Activate(1)
	b.AccessRow()
	b.AccessRow()
	assert.Equal(t, 2, b.RowHitCount)
}

func TestRefreshCycleReturnsToClosed(t *testing.T) {
	b := New()
	b.BeginRefresh()
	assert.Equal(t, Refreshing, b.State)

	b.EndRefresh()
	assert.Equal(t, Closed, b.State)
	assert.Equal(t, NoRow, b.OpenRow)
}
