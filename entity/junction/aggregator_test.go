package junction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity/junction"
	"github.com/tsinghua-fib-lab/mp-signal-lab/simulator/simtest"
)

func newAggregator(t *testing.T) (*simtest.Fake, *junction.Aggregator) {
	topo := defaultTopology(t)
	sim := simtest.New(topo.Links(), 1)
	return sim, junction.NewAggregator(sim, topo, sim.JunctionID)
}

func TestSubscribe(t *testing.T) {
	sim, a := newAggregator(t)
	require.NoError(t, a.Subscribe())
	for _, id := range []entity.LinkID{"NI", "EI", "SI", "WI", "NO", "EO", "SO", "WO"} {
		assert.True(t, sim.Subscribed(id))
	}
}

func TestSampleBeforeSubscribe(t *testing.T) {
	_, a := newAggregator(t)
	_, err := a.SampleDensities()
	assert.ErrorIs(t, err, entity.ErrMissingLinkData)
}

func TestSampleDensities(t *testing.T) {
	sim, a := newAggregator(t)
	require.NoError(t, a.Subscribe())
	sim.Vehicles["NI"] = 4
	sim.Vehicles["WO"] = 2

	d, err := a.SampleDensities()
	require.NoError(t, err)
	assert.Len(t, d, 8)
	assert.InDelta(t, 4/172.8, d["NI"], 1e-12)
	assert.InDelta(t, 2/42.8, d["WO"], 1e-12)
	assert.Zero(t, d["EI"])
	for id, v := range d {
		assert.GreaterOrEqual(t, v, 0., id)
	}
}

func TestObserve(t *testing.T) {
	sim, a := newAggregator(t)
	sim.Halting["NI"] = 10
	sim.Halting["EI"] = 2
	sim.Halting["SO"] = 3

	obs, err := a.Observe()
	require.NoError(t, err)
	assert.Equal(t, map[entity.Movement]int{entity.North: 10, entity.East: 2, entity.South: 0, entity.West: 0}, obs.Queues)
	assert.Equal(t, map[entity.Movement]int{entity.North: 0, entity.East: 0, entity.South: 3, entity.West: 0}, obs.Downstream)
}

func TestMissingLinkData(t *testing.T) {
	sim, a := newAggregator(t)
	require.NoError(t, a.Subscribe())
	sim.Missing["SO"] = true
	_, err := a.Observe()
	assert.ErrorIs(t, err, entity.ErrMissingLinkData)
	_, err = a.Record(3, false)
	assert.ErrorIs(t, err, entity.ErrMissingLinkData)

	// 负值同样视为无数据
	sim.Missing["SO"] = false
	sim.Halting["EI"] = -1
	_, err = a.SampleQueues([]entity.LinkID{"EI"})
	assert.ErrorIs(t, err, entity.ErrMissingLinkData)
}

func TestRecord(t *testing.T) {
	sim, a := newAggregator(t)
	require.NoError(t, a.Subscribe())
	sim.Vehicles["SI"] = 3
	sim.Vehicles["EO"] = 1
	sim.State = junction.Encode(entity.West)

	r, err := a.Record(201, true)
	require.NoError(t, err)
	assert.Equal(t, 201., r.Timestamp)
	assert.True(t, r.Change)
	assert.Equal(t, entity.West, r.Active)
	assert.InDelta(t, 3/172.8, r.Density[entity.South].In, 1e-12)
	assert.InDelta(t, 1/42.8, r.Density[entity.East].Out, 1e-12)
	assert.Equal(t, [4]int{0, 0, 0, 1}, r.OneHot())

	sim.State = "rrrrrrrrrrrr"
	_, err = a.Record(204, false)
	assert.ErrorIs(t, err, entity.ErrInvalidSignalState)
}

func TestApply(t *testing.T) {
	sim, _ := newAggregator(t)
	state, err := junction.Apply(sim, sim.JunctionID, entity.South)
	require.NoError(t, err)
	assert.Equal(t, "rrrrrrGGGrrr", state)
	assert.Equal(t, state, sim.State)
	require.Len(t, sim.SetCalls, 1)

	_, err = junction.Apply(sim, "J1", entity.South)
	assert.Error(t, err)
}
