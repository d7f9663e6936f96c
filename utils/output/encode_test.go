package output

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
)

func TestKafkaMessages(t *testing.T) {
	r := entity.Record{Timestamp: 204, Change: true, Active: entity.East}
	r.Density[entity.East] = entity.LinkDensity{In: 0.5, Out: 0.25}
	msgs, err := messages(entity.Run{Experiment: "exp", Seed: 3}, []entity.Record{r, {Timestamp: 207}})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("exp/3"), msgs[0].Key)
	assert.Equal(t, msgs[0].Key, msgs[1].Key)

	var m recordMessage
	require.NoError(t, json.Unmarshal(msgs[0].Value, &m))
	assert.Equal(t, recordMessage{
		Experiment: "exp",
		Seed:       3,
		Timestamp:  204,
		Change:     1,
		Approach:   []float64{0, 0.5, 0, 0},
		Exit:       []float64{0, 0.25, 0, 0},
		Active:     "E",
	}, m)
}

func TestMongoRecordDoc(t *testing.T) {
	links := []string{"NI", "EI", "SI", "WI", "NO", "EO", "SO", "WO"}
	r := entity.Record{Timestamp: 201, Active: entity.West}
	r.Density[entity.West] = entity.LinkDensity{In: 0.1, Out: 0.2}
	d := newRecordDoc(r, links)
	assert.Equal(t, 201., d.T)
	assert.Equal(t, 0, d.Change)
	assert.Equal(t, "W", d.Active)
	assert.Len(t, d.Density, 8)
	assert.Equal(t, 0.1, d.Density["WI"])
	assert.Equal(t, 0.2, d.Density["WO"])
	assert.Zero(t, d.Density["NI"])
}
