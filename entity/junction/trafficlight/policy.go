package trafficlight

import (
	"fmt"

	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/config"
)

// New 根据配置创建一次运行使用的信控策略
func New(c config.Control) (entity.IPolicy, error) {
	switch c.Policy {
	case config.PolicyMaxPressure, "":
		return NewMaxPressure(c.SaturationFlow), nil
	case config.PolicyFixedCycle:
		return NewFixedCycle(entity.North), nil
	default:
		return nil, fmt.Errorf("unknown signal policy %q", c.Policy)
	}
}
