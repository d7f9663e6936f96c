package junction

import (
	"fmt"
	"strings"

	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
)

const (
	Green = 'G'
	Red   = 'r'

	// 信号灯状态字符串长度：4个转向×每转向3个车道灯
	SignalLength = entity.NumMovements * LanesPerMovement
)

// Encode 将转向编码为信号灯状态字符串
// 功能：状态字符串按N、E、S、W分为4组，每组3个字符；选中转向的组为绿灯，其余为红灯
// 说明：不建模黄灯与全红过渡，相位在决策时刻瞬时切换
func Encode(m entity.Movement) string {
	var b strings.Builder
	b.Grow(SignalLength)
	for _, other := range entity.Movements {
		c := Red
		if other == m {
			c = Green
		}
		for range LanesPerMovement {
			b.WriteByte(byte(c))
		}
	}
	return b.String()
}

// ParsePhase 从信号灯状态字符串解析当前激活的转向
// 功能：找到第一个绿灯（G或g）的位置，按每组3个字符映射到转向
// 返回：转向，长度不符或没有绿灯时返回ErrInvalidSignalState
func ParsePhase(state string) (entity.Movement, error) {
	if len(state) != SignalLength {
		return 0, fmt.Errorf("%w: %q has length %d, want %d", entity.ErrInvalidSignalState, state, len(state), SignalLength)
	}
	i := strings.IndexAny(state, "Gg")
	if i < 0 {
		return 0, fmt.Errorf("%w: no green light in %q", entity.ErrInvalidSignalState, state)
	}
	return entity.Movement(i / LanesPerMovement), nil
}

// Apply 将转向编码后写入仿真器
func Apply(sim entity.ISimulator, junctionID string, m entity.Movement) (string, error) {
	state := Encode(m)
	if err := sim.SetSignalState(junctionID, state); err != nil {
		return "", fmt.Errorf("set signal state of junction %s: %w", junctionID, err)
	}
	return state, nil
}
