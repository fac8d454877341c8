package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"macroprox/game"
	"macroprox/logger"
	"macroprox/protocol"
)

var ErrNotConnected = errors.New("not connected")

const (
	writeWait   = 5 * time.Second
	dialTimeout = 10 * time.Second
)

// Options 客户端参数
type Options struct {
	Name            string
	Colour          game.Colour
	ForwardInterval time.Duration // 上报本地位置的周期，与服务端广播间隔一致
	SendBuffer      int
}

// Client 客户端网络上下文：读协程把消息写入 State，转发协程上报本地位置
type Client struct {
	ws   *websocket.Conn
	st   *game.State
	opts Options

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// URL 把 host:port 补全为 websocket 地址
func URL(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "ws://" + addr + "/ws"
}

// Dial 连接服务器；失败时同时把状态切换为 Error
func Dial(ctx context.Context, addr string, st *game.State, opts Options) (*Client, error) {
	if opts.ForwardInterval <= 0 {
		opts.ForwardInterval = 15 * time.Millisecond
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 16
	}
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	ws, _, err := dialer.DialContext(ctx, URL(addr), nil)
	if err != nil {
		err = fmt.Errorf("dial %s: %w", addr, err)
		st.SetError(err.Error())
		return nil, err
	}
	logger.Log.Infof("connected to %s", URL(addr))
	return &Client{
		ws:   ws,
		st:   st,
		opts: opts,
		send: make(chan []byte, opts.SendBuffer),
		done: make(chan struct{}),
	}, nil
}

// Run 注册并运行读写协程，直到连接断开或 ctx 取消。
// 连接意外断开时状态切换为 Error，不重连。
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()

	if err := c.enqueue(protocol.RegisterPlayer{Name: c.opts.Name, Colour: c.opts.Colour}); err != nil {
		c.st.SetError(err.Error())
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writePump()
	}()
	go func() {
		defer wg.Done()
		c.forward()
	}()

	readErr := make(chan error, 1)
	go func() { readErr <- c.readPump() }()

	var err error
	select {
	case <-ctx.Done():
	case err = <-readErr:
		logger.Log.Warnf("connection lost: %v", err)
		c.st.SetError(fmt.Sprintf("connection lost: %v", err))
	}
	c.Close()
	wg.Wait()
	return err
}

// Close 关闭连接，可重复调用
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *Client) readPump() error {
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := protocol.Decode(payload)
		if err != nil {
			logger.Log.Warnf("decode: %v", err)
			continue
		}
		if err := Apply(c.st, msg); err != nil {
			logger.Log.Warnf("%v", err)
		}
	}
}

// writePump 连接上唯一的写者
func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
				logger.Log.Warnf("write: %v", err)
				_ = c.ws.Close()
				return
			}
		}
	}
}

// forward 本地位置变化时上报 Move；未就绪时不发送
func (c *Client) forward() {
	ticker := time.NewTicker(c.opts.ForwardInterval)
	defer ticker.Stop()

	var last game.Position
	var sent bool
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}
		w := c.st.Snapshot()
		if !w.Readiness.IsReady() {
			continue
		}
		me, ok := w.OwnPlayer()
		if !ok || (sent && me.Position == last) {
			continue
		}
		if err := c.enqueue(protocol.Move{Position: me.Position}); err != nil {
			logger.Log.Debugf("move not sent: %v", err)
			continue
		}
		last, sent = me.Position, true
	}
}

// enqueue 非阻塞入队；队列满时由下一次转发重试
func (c *Client) enqueue(m protocol.Message) error {
	b, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return fmt.Errorf("send queue full, dropping %s", m.Kind())
	}
}
