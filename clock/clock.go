package clock

import (
	"fmt"
	"math"
	"sync"

	"git.fiblab.net/sim/protos/v2/go/city/clock/v1/clockv1connect"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/config"
)

// 仿真时间是浮点数，判断整倍数时允许的误差
const eps = 1e-6

// Clock 仿真时钟
// 功能：跟随外部仿真器的时间，判断决策周期与采样周期是否到达
// 说明：时间由仿真器推进，Clock只做同步与周期判定；可被RPC并发读取
type Clock struct {
	clockv1connect.UnimplementedClockServiceHandler

	SAMPLE_INTERVAL  float64 // 采样周期（秒）
	CONTROL_INTERVAL float64 // 决策周期（秒）
	WARM_UP          float64 // 预热时长（秒）

	mtx  sync.RWMutex
	t    float64 // 当前时间（秒）
	end  float64 // 结束时间（秒）
	step int64   // 已推进的步数
}

// New 根据配置创建新的时钟实例
// 参数：c-控制配置，warmUp-预热时长
func New(c config.Control, warmUp float64) *Clock {
	return &Clock{
		SAMPLE_INTERVAL:  c.SampleInterval,
		CONTROL_INTERVAL: c.ControlInterval,
		WARM_UP:          warmUp,
	}
}

// Init 在一次运行开始时重置时钟
// 参数：t-仿真器当前时间，end-仿真器结束时间
func (c *Clock) Init(t, end float64) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.t = t
	c.end = end
	c.step = 0
}

// Sync 推进一步后同步仿真器时间
func (c *Clock) Sync(t float64) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.t = t
	c.step++
}

// T 当前仿真时间
func (c *Clock) T() float64 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.t
}

// Step 当前运行已推进的步数
func (c *Clock) Step() int64 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.step
}

// Running 是否尚未到达结束时间
func (c *Clock) Running() bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.t < c.end
}

// DecisionDue 当前时刻是否需要做信控决策
// 说明：决策在预热期间同样执行
func (c *Clock) DecisionDue() bool {
	return IsMultiple(c.T(), c.CONTROL_INTERVAL)
}

// SampleDue 当前时刻是否需要记录采样
// 说明：时间为采样周期整倍数且不早于预热结束时刻
func (c *Clock) SampleDue() bool {
	t := c.T()
	return t >= c.WARM_UP && IsMultiple(t, c.SAMPLE_INTERVAL)
}

// NextDecision 下一个决策时刻
func (c *Clock) NextDecision() float64 {
	t := c.T()
	n := math.Floor(t/c.CONTROL_INTERVAL+eps) + 1
	return n * c.CONTROL_INTERVAL
}

// IsMultiple t是否为interval的整数倍（非负）
func IsMultiple(t, interval float64) bool {
	if interval <= 0 || t < 0 {
		return false
	}
	q := t / interval
	return math.Abs(q-math.Round(q)) < eps
}

// String 获取时钟的字符串表示
// 返回：格式化的时间字符串（HH:MM:SS）
func (c *Clock) String() string {
	h, m, s := c.GetHourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, int(s))
}

// GetHourMinuteSecond 获取当前时间的小时、分钟、秒
// 返回：小时、分钟、秒（秒为浮点数，支持亚秒级精度）
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	t := c.T()
	hour := int(t) / 3600
	minute := int(t) % 3600 / 60
	second := t - float64(hour*3600+minute*60)
	return hour, minute, second
}
