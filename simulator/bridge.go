// 仿真器桥接客户端
// 桥接进程持有真实仿真器（如SUMO/TraCI），通过unix socket提供请求-响应接口
// 帧格式：4字节大端长度 + msgpack消息体
package simulator

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrBridge = errors.New("simulator bridge error")
)

// 单帧最大长度，超过视为协议错误
const maxFrameSize = 16 << 20

// 桥接进程返回的错误码
const (
	codeMissingLink = "missing_link"
	codeInvalidTLS  = "invalid_tls"
)

// request 请求
type request struct {
	Endpoint string         `msgpack:"endpoint"`
	Params   map[string]any `msgpack:"params,omitempty"`
}

// envelope 所有响应共有的错误字段
type envelope struct {
	Error string `msgpack:"error,omitempty"`
	Code  string `msgpack:"code,omitempty"`
}

// sendMsg 发送一帧
func sendMsg(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readMsg 读取一帧，长度为0时返回nil
func readMsg(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length == 0 {
		return nil, nil
	}
	if length > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// bridge 一条到桥接进程的连接，请求严格串行
type bridge struct {
	conn    net.Conn
	timeout time.Duration // 单次请求超时，0表示不设超时
}

// call 发送请求并等待响应
// 参数：endpoint-接口名，params-参数，out-响应体（可为nil）
// 返回：桥接进程报告的错误会转换为ErrMissingLinkData/ErrInvalidSignalState/ErrBridge
func (b *bridge) call(endpoint string, params map[string]any, out any) error {
	if b.timeout > 0 {
		if err := b.conn.SetDeadline(time.Now().Add(b.timeout)); err != nil {
			return fmt.Errorf("%w: %s: set deadline: %v", ErrBridge, endpoint, err)
		}
	}
	payload, err := msgpack.Marshal(&request{Endpoint: endpoint, Params: params})
	if err != nil {
		return fmt.Errorf("%w: %s: encode: %v", ErrBridge, endpoint, err)
	}
	if err := sendMsg(b.conn, payload); err != nil {
		return fmt.Errorf("%w: %s: send: %v", ErrBridge, endpoint, err)
	}
	resp, err := readMsg(b.conn)
	if err != nil {
		return fmt.Errorf("%w: %s: read: %v", ErrBridge, endpoint, err)
	}
	if resp == nil {
		if out != nil {
			return fmt.Errorf("%w: %s: empty response", ErrBridge, endpoint)
		}
		return nil
	}
	var env envelope
	if err := msgpack.Unmarshal(resp, &env); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", ErrBridge, endpoint, err)
	}
	if env.Error != "" {
		switch env.Code {
		case codeMissingLink:
			return fmt.Errorf("%w: %s", entity.ErrMissingLinkData, env.Error)
		case codeInvalidTLS:
			return fmt.Errorf("%w: %s", entity.ErrInvalidSignalState, env.Error)
		default:
			return fmt.Errorf("%w: %s: %s", ErrBridge, endpoint, env.Error)
		}
	}
	if out != nil {
		if err := msgpack.Unmarshal(resp, out); err != nil {
			return fmt.Errorf("%w: %s: decode: %v", ErrBridge, endpoint, err)
		}
	}
	return nil
}
