package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaybeNoneIsNotOk(t *testing.T) {
	assert.False(t, None.Ok)
	assert.Equal(t, Command{}, None.Command)
}

func TestSomeWrapsCommand(t *testing.T) {
	c := Command{Type: ACTIVATE, Rank: 1, Row: 7}
	m := Some(c)
	assert.True(t, m.Ok)
	assert.Equal(t, c, m.Command)
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, READ.IsRead())
	assert.True(t, READ_PRECHARGE.IsRead())
	assert.False(t, WRITE.IsRead())

	assert.True(t, WRITE.IsWrite())
	assert.True(t, WRITE_PRECHARGE.IsWrite())

	assert.True(t, READ.IsRW())
	assert.True(t, WRITE.IsRW())
	assert.False(t, ACTIVATE.IsRW())

	assert.True(t, PRECHARGE.ClosesRow())
	assert.True(t, READ_PRECHARGE.ClosesRow())
	assert.False(t, READ.ClosesRow())
}

func TestSameBank(t *testing.T) {
	a := Command{Rank: 0, Bankgroup: 1, Bank: 2}
	b := Command{Rank: 0, Bankgroup: 1, Bank: 2, Row: 99}
	c := Command{Rank: 0, Bankgroup: 1, Bank: 3}

	assert.True(t, a.SameBank(b))
	assert.False(t, a.SameBank(c))
}
