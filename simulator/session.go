package simulator

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
)

// 响应体
type (
	countResponse struct {
		Edge  string `msgpack:"edge"`
		Count *int   `msgpack:"count"` // 没有订阅数据时为nil
	}
	tlsResponse struct {
		Junction string `msgpack:"junction"`
		State    string `msgpack:"state"`
	}
	timeResponse struct {
		Time float64 `msgpack:"time"`
	}
)

// Session 一次仿真会话
// 功能：实现entity.ISimulator，每个方法对应桥接进程的一个接口
type Session struct {
	b      bridge
	seed   int64
	closed bool
}

// NewSession 在已建立的连接上启动一次仿真
// 参数：conn-到桥接进程的连接，timeout-单次请求超时，configPath-仿真器配置，seed-随机种子
// 说明：启动失败时连接会被关闭
func NewSession(conn net.Conn, timeout time.Duration, configPath string, seed int64) (*Session, error) {
	s := &Session{b: bridge{conn: conn, timeout: timeout}, seed: seed}
	if err := s.b.call("start", map[string]any{"config": configPath, "seed": seed}, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("start simulation (seed %d): %w", seed, err)
	}
	log.Debugf("simulation started with config %s seed %d", configPath, seed)
	return s, nil
}

func (s *Session) SubscribeLinkCounts(link entity.LinkID) error {
	return s.b.call("subscribe", map[string]any{"edge": string(link)}, nil)
}

func (s *Session) LinkVehicleCount(link entity.LinkID) (int, error) {
	return s.count("edge_vehicle_number", link)
}

func (s *Session) LinkHaltingCount(link entity.LinkID) (int, error) {
	return s.count("edge_halting_number", link)
}

func (s *Session) count(endpoint string, link entity.LinkID) (int, error) {
	var resp countResponse
	if err := s.b.call(endpoint, map[string]any{"edge": string(link)}, &resp); err != nil {
		return 0, err
	}
	if resp.Count == nil {
		return 0, fmt.Errorf("%w: no %s for link %s", entity.ErrMissingLinkData, endpoint, link)
	}
	return *resp.Count, nil
}

func (s *Session) SignalState(junctionID string) (string, error) {
	var resp tlsResponse
	if err := s.b.call("tls_state", map[string]any{"junction": junctionID}, &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

func (s *Session) SetSignalState(junctionID, state string) error {
	return s.b.call("set_tls_state", map[string]any{"junction": junctionID, "state": state}, nil)
}

func (s *Session) Step() error {
	return s.b.call("step", nil, nil)
}

func (s *Session) Time() (float64, error) {
	var resp timeResponse
	err := s.b.call("time", nil, &resp)
	return resp.Time, err
}

func (s *Session) EndTime() (float64, error) {
	var resp timeResponse
	err := s.b.call("end_time", nil, &resp)
	return resp.Time, err
}

// Close 结束仿真并关闭连接，可重复调用
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.b.call("close", nil, nil)
	return errors.Join(err, s.b.conn.Close())
}
