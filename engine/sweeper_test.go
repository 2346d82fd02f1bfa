package engine

import (
	"context"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/dynauction/core"
)

func TestSweeperRunOnce(t *testing.T) {
	env := newTestEnv(t)
	a := env.create(t, englishConfig())
	env.bid(t, a.ID, "alice", "110")
	saver := &memorySaver{}
	sweeper := NewSweeper(env.engine, saver, nil)

	env.clock.Advance(time.Hour + time.Second)
	sweeper.RunOnce(context.Background())

	check.Equal(t, 1, len(env.settler.Requests()))
	saved, ok := saver.saved[a.ID]
	assert.True(t, ok)
	check.Equal(t, core.StatusSettled, saved.Auction.Status)

	sweeper.RunOnce(context.Background())
	check.Equal(t, 1, saver.calls)
}

func TestSweeperSchedule(t *testing.T) {
	env := newTestEnv(t)
	sweeper := NewSweeper(env.engine, nil, nil)

	assert.NoError(t, sweeper.Schedule("@every 1s"))
	check.Error(t, sweeper.Schedule("not a schedule"))

	sweeper.Start()
	sweeper.Stop()
}
