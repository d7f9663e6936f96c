package config_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/config"
)

const minimal = `
simulator:
  socket: /tmp/bridge.sock
  config: data/cross.sumocfg
control:
  sample_interval: 3
  control_interval: 12
experiment:
  seeds: 5
output:
  dir: out
`

func TestDefaults(t *testing.T) {
	c, err := config.Load([]byte(minimal))
	require.NoError(t, err)
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)

	assert.Equal(t, "J0", rc.All.Junction.ID)
	assert.Equal(t, "data/cross.sumocfg", rc.All.Simulator.Config)
	assert.Equal(t, config.PolicyMaxPressure, rc.C.Policy)
	assert.InDelta(t, 1400./3600., rc.C.SaturationFlow, 1e-12)
	assert.Equal(t, 200., rc.WarmUp)
	assert.True(t, rc.ContinueOnError)
	assert.Equal(t, config.NamingSequential, rc.All.Output.Naming)
	assert.Equal(t, 5, rc.All.Experiment.Seeds)

	require.Len(t, rc.All.Topology, 4)
	assert.Equal(t, config.MovementLinks{
		Movement: "W", Approach: "WI", ApproachLength: 172.8, Exit: "WO", ExitLength: 42.8,
	}, rc.All.Topology[3])
}

func TestExplicitZeroWarmUp(t *testing.T) {
	c, err := config.Load([]byte(minimal + "  naming: seed\n"))
	require.NoError(t, err)
	zero, no := 0., false
	c.Control.WarmUp = &zero
	c.Experiment.ContinueOnError = &no
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	assert.Equal(t, 0., rc.WarmUp)
	assert.False(t, rc.ContinueOnError)
	assert.Equal(t, config.NamingSeed, rc.All.Output.Naming)
}

func TestDefaultSimulatorConfig(t *testing.T) {
	c, err := config.Load([]byte(minimal))
	require.NoError(t, err)
	c.Simulator.Config = ""
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	assert.Equal(t, "network/single.sumocfg", rc.All.Simulator.Config)
}

func TestUnknownField(t *testing.T) {
	_, err := config.Load([]byte(minimal + "unknown: 1\n"))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestInvalid(t *testing.T) {
	base, err := config.Load([]byte(minimal))
	require.NoError(t, err)

	cases := map[string]func(c *config.Config){
		"socket":   func(c *config.Config) { c.Simulator.Socket = "" },
		"timeout":  func(c *config.Config) { c.Simulator.TimeoutSec = -1 },
		"policy":   func(c *config.Config) { c.Control.Policy = "webster" },
		"naming":   func(c *config.Config) { c.Output.Naming = "random" },
		"mongo":    func(c *config.Config) { c.Output.Mongo = &config.Mongo{URI: "mongodb://localhost"} },
		"kafka":    func(c *config.Config) { c.Output.Kafka = &config.Kafka{Topic: "records"} },
		"interval": func(c *config.Config) { c.Control.SampleInterval = -3 },
		"topology": func(c *config.Config) { c.Topology = config.DefaultTopology()[:3] },
		"movement": func(c *config.Config) {
			c.Topology = config.DefaultTopology()
			c.Topology[1].Movement = "N"
		},
		"link": func(c *config.Config) {
			c.Topology = config.DefaultTopology()
			c.Topology[1].Exit = "NO"
		},
		"length": func(c *config.Config) {
			c.Topology = config.DefaultTopology()
			c.Topology[2].ExitLength = 0
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			_, err := config.NewRuntimeConfig(c)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestSummaryHidesCredentials(t *testing.T) {
	c, err := config.Load([]byte(minimal + `  mongo:
    uri: mongodb://admin:secret@db:27017
    db: lab
    col: runs
  kafka:
    brokers: [kafka:9092]
    topic: records
`))
	require.NoError(t, err)
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)

	s := rc.Summary()
	assert.NotContains(t, s, "secret")
	assert.NotContains(t, s, "0x")
	assert.Contains(t, s, "mongo:lab.runs")
	assert.Contains(t, s, "kafka:records")
	assert.Contains(t, s, "seeds=0..4")
	assert.False(t, strings.Contains(s, "mongodb://"))
}
