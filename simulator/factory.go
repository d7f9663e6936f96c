package simulator

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/config"
)

var log = logrus.WithField("module", "simulator")

// Factory 仿真会话工厂
// 功能：每次Start新建一条到桥接进程的连接，会话之间互不共享状态
type Factory struct {
	timeout time.Duration
	dial    func() (net.Conn, error)
}

// NewFactory 根据配置创建会话工厂
func NewFactory(c config.Simulator) *Factory {
	timeout := time.Duration(c.TimeoutSec * float64(time.Second))
	return &Factory{
		timeout: timeout,
		dial: func() (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			return d.Dial("unix", c.Socket)
		},
	}
}

// Start 启动一次仿真会话
func (f *Factory) Start(configPath string, seed int64) (entity.ISimulator, error) {
	conn, err := f.dial()
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", ErrBridge, err)
	}
	s, err := NewSession(conn, f.timeout, configPath, seed)
	if err != nil {
		return nil, err
	}
	return s, nil
}
