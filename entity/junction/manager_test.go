package junction_test

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/mp-signal-lab/clock"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity/junction"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/config"
	"google.golang.org/protobuf/proto"
)

func TestMonitor(t *testing.T) {
	clk := clock.New(config.Control{SampleInterval: 3, ControlInterval: 12}, 0)
	clk.Init(0, 100)
	m := junction.NewMonitor(7, clk)
	ctx := context.Background()

	// 尚未决策
	resp, err := m.GetTrafficLight(ctx, connect.NewRequest(&mapv2.GetTrafficLightRequest{JunctionId: 7}))
	require.NoError(t, err)
	assert.Nil(t, resp.Msg.TrafficLight)

	clk.Sync(12)
	m.Decided(entity.South, clk.NextDecision())
	clk.Sync(15)
	assert.Equal(t, int64(1), m.Decisions())

	resp, err = m.GetTrafficLight(ctx, connect.NewRequest(&mapv2.GetTrafficLightRequest{JunctionId: 7}))
	require.NoError(t, err)
	tl := resp.Msg.TrafficLight
	require.NotNil(t, tl)
	assert.Equal(t, int32(7), tl.JunctionId)
	require.Len(t, tl.Phases, 4)
	assert.Equal(t, 12., tl.Phases[0].Duration)
	red, green := mapv2.LightState_LIGHT_STATE_RED, mapv2.LightState_LIGHT_STATE_GREEN
	assert.True(t, proto.Equal(&mapv2.Phase{
		Duration: 12,
		States:   []mapv2.LightState{red, red, red, red, red, red, green, green, green, red, red, red},
	}, tl.Phases[2]))
	assert.Equal(t, int32(entity.South), resp.Msg.PhaseIndex)
	assert.InDelta(t, 9., resp.Msg.TimeRemaining, 1e-9)

	_, err = m.GetTrafficLight(ctx, connect.NewRequest(&mapv2.GetTrafficLightRequest{JunctionId: 8}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = m.SetTrafficLightPhase(ctx, connect.NewRequest(&mapv2.SetTrafficLightPhaseRequest{}))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	m.Reset()
	assert.Zero(t, m.Decisions())
	resp, err = m.GetTrafficLight(ctx, connect.NewRequest(&mapv2.GetTrafficLightRequest{JunctionId: 7}))
	require.NoError(t, err)
	assert.Nil(t, resp.Msg.TrafficLight)
}
