package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v2"
)

const (
	PolicyMaxPressure = "max_pressure"
	PolicyFixedCycle  = "fixed_cycle"

	NamingSequential = "sequential"
	NamingSeed       = "seed"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
)

// 参考实验的默认取值
const (
	defaultJunctionID      = "J0"
	defaultApproachLength  = 172.8
	defaultExitLength      = 42.8
	defaultSaturationFlow  = 1400. / 3600.
	defaultSampleInterval  = 3
	defaultControlInterval = 12
	defaultWarmUp          = 200
	defaultSeeds           = 100
	defaultOutputDir       = "output"
	defaultSimulatorConfig = "network/single.sumocfg"
)

// DefaultTopology 默认的四转向拓扑：NI/EI/SI/WI为进口道，NO/EO/SO/WO为出口道
func DefaultTopology() []MovementLinks {
	return lo.Map([]string{"N", "E", "S", "W"}, func(m string, _ int) MovementLinks {
		return MovementLinks{
			Movement:       m,
			Approach:       m + "I",
			ApproachLength: defaultApproachLength,
			Exit:           m + "O",
			ExitLength:     defaultExitLength,
		}
	})
}

// RuntimeConfig 运行时配置
// 功能：存储填充默认值并校验后的配置
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 控制循环配置

	WarmUp          float64 // 预热时长（秒）
	ContinueOnError bool    // 运行失败后是否继续下一个种子
}

// Load 解析YAML配置
// 功能：严格模式解析，未知字段报错
func Load(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return c, nil
}

// NewRuntimeConfig 根据配置生成运行时配置
// 功能：填充默认值并校验配置
// 参数：config-原始配置对象
// 返回：运行时配置指针，配置非法时返回ErrInvalidConfig
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	c := config
	if c.Simulator.Config == "" {
		c.Simulator.Config = defaultSimulatorConfig
	}
	if c.Junction.ID == "" {
		c.Junction.ID = defaultJunctionID
	}
	if len(c.Topology) == 0 {
		c.Topology = DefaultTopology()
	}
	if c.Control.Policy == "" {
		c.Control.Policy = PolicyMaxPressure
	}
	if c.Control.SaturationFlow == 0 {
		c.Control.SaturationFlow = defaultSaturationFlow
	}
	if c.Control.SampleInterval == 0 {
		c.Control.SampleInterval = defaultSampleInterval
	}
	if c.Control.ControlInterval == 0 {
		c.Control.ControlInterval = defaultControlInterval
	}
	if c.Experiment.Seeds == 0 {
		c.Experiment.Seeds = defaultSeeds
	}
	if c.Output.Dir == "" {
		c.Output.Dir = defaultOutputDir
	}
	if c.Output.Naming == "" {
		c.Output.Naming = NamingSequential
	}

	rc := &RuntimeConfig{
		All:             c,
		C:               c.Control,
		WarmUp:          defaultWarmUp,
		ContinueOnError: true,
	}
	if c.Control.WarmUp != nil {
		rc.WarmUp = *c.Control.WarmUp
	}
	if c.Experiment.ContinueOnError != nil {
		rc.ContinueOnError = *c.Experiment.ContinueOnError
	}
	if err := rc.validate(); err != nil {
		return nil, err
	}
	return rc, nil
}

// Summary 启动日志使用的配置摘要
// 说明：只列出影响实验结果的字段与输出目标，不包含MongoDB URI等可能带凭据的连接串
func (rc *RuntimeConfig) Summary() string {
	c := rc.All
	outputs := []string{"csv:" + c.Output.Dir + "(" + c.Output.Naming + ")"}
	if c.Output.Mongo != nil {
		outputs = append(outputs, "mongo:"+c.Output.Mongo.DB+"."+c.Output.Mongo.Col)
	}
	if c.Output.Kafka != nil {
		outputs = append(outputs, "kafka:"+c.Output.Kafka.Topic)
	}
	return fmt.Sprintf(
		"simulator=%s config=%s junction=%s policy=%s saturation_flow=%.4f sample=%vs control=%vs warm_up=%vs seeds=%d..%d parallel=%d continue_on_error=%v output=%s",
		c.Simulator.Socket, c.Simulator.Config, c.Junction.ID,
		rc.C.Policy, rc.C.SaturationFlow, rc.C.SampleInterval, rc.C.ControlInterval, rc.WarmUp,
		c.Experiment.SeedStart, c.Experiment.SeedStart+int64(c.Experiment.Seeds)-1,
		c.Experiment.Parallel, rc.ContinueOnError,
		strings.Join(outputs, ","),
	)
}

func (rc *RuntimeConfig) validate() error {
	c := rc.All
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if c.Simulator.Socket == "" {
		return invalid("simulator socket is empty")
	}
	if c.Simulator.TimeoutSec < 0 {
		return invalid("simulator timeout %v < 0", c.Simulator.TimeoutSec)
	}
	switch c.Control.Policy {
	case PolicyMaxPressure, PolicyFixedCycle:
	default:
		return invalid("unknown policy %q", c.Control.Policy)
	}
	if c.Control.SaturationFlow < 0 {
		return invalid("saturation flow %v < 0", c.Control.SaturationFlow)
	}
	if c.Control.SampleInterval < 0 || c.Control.ControlInterval < 0 {
		return invalid("intervals must be positive")
	}
	if rc.WarmUp < 0 {
		return invalid("warm up %v < 0", rc.WarmUp)
	}
	if c.Experiment.Seeds < 0 {
		return invalid("seeds %d < 0", c.Experiment.Seeds)
	}
	switch c.Output.Naming {
	case NamingSequential, NamingSeed:
	default:
		return invalid("unknown output naming %q", c.Output.Naming)
	}
	if c.Output.Mongo != nil && (c.Output.Mongo.URI == "" || c.Output.Mongo.DB == "" || c.Output.Mongo.Col == "") {
		return invalid("mongo output needs uri, db and col")
	}
	if c.Output.Kafka != nil && (len(c.Output.Kafka.Brokers) == 0 || c.Output.Kafka.Topic == "") {
		return invalid("kafka output needs brokers and topic")
	}
	// 拓扑：必须恰好覆盖4个转向，link ID不重复，长度为正
	if len(c.Topology) != 4 {
		return invalid("topology must list 4 movements, got %d", len(c.Topology))
	}
	movements := lo.Map(c.Topology, func(l MovementLinks, _ int) string { return l.Movement })
	if len(lo.Uniq(movements)) != len(movements) {
		return invalid("duplicated movement in topology %v", movements)
	}
	links := make([]string, 0, 2*len(c.Topology))
	for _, l := range c.Topology {
		if l.Approach == "" || l.Exit == "" {
			return invalid("movement %s has empty link id", l.Movement)
		}
		if l.ApproachLength <= 0 || l.ExitLength <= 0 {
			return invalid("movement %s has non-positive link length", l.Movement)
		}
		links = append(links, l.Approach, l.Exit)
	}
	if len(lo.Uniq(links)) != len(links) {
		return invalid("duplicated link id in topology %v", links)
	}
	return nil
}
