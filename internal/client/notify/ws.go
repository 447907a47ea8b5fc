package notify

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const wsReadLimit = 16 << 20

// WSChannel relays messages through a websocket hub, for contexts that share
// no filesystem. Incoming messages fan out to local subscribers through an
// in-process Bus.
type WSChannel struct {
	conn   *websocket.Conn
	local  *Bus
	cancel context.CancelFunc
	wg     sync.WaitGroup

	writeMu sync.Mutex
}

// DialWS connects to a hub at url (ws:// or wss://) with the given headers.
func DialWS(ctx context.Context, url string, header http.Header) (*WSChannel, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dial notify hub: %w", err)
	}
	conn.SetReadLimit(wsReadLimit)

	readCtx, stop := context.WithCancel(context.Background())
	c := &WSChannel{conn: conn, local: NewBus(16), cancel: stop}

	c.wg.Add(1)
	go c.readLoop(readCtx)

	return c, nil
}

func (c *WSChannel) readLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		var m Message
		if err := wsjson.Read(ctx, c.conn, &m); err != nil {
			return
		}
		_ = c.local.Publish(ctx, m)
	}
}

func (c *WSChannel) Publish(ctx context.Context, m Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, c.conn, m); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (c *WSChannel) Subscribe(ctx context.Context, h Handler) (func(), error) {
	return c.local.Subscribe(ctx, h)
}

func (c *WSChannel) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	c.cancel()
	c.wg.Wait()
	_ = c.local.Close()
	return err
}
