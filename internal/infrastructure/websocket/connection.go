package websocket

import (
	"sync"
	"time"

	"auction-market/pkg/logger"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Connection is one client socket watching an auction. gorilla connections
// allow a single concurrent writer, so Send serialises through writeMu.
type Connection struct {
	conn      *websocket.Conn
	userID    string
	auctionID string
	log       logger.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func NewConnection(conn *websocket.Conn, userID, auctionID string, log logger.Logger) *Connection {
	return &Connection{
		conn:      conn,
		userID:    userID,
		auctionID: auctionID,
		log:       log,
	}
}

// Send writes message as a JSON text frame.
func (c *Connection) Send(message interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(message)
}

func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Connection) UserID() string {
	return c.userID
}

func (c *Connection) AuctionID() string {
	return c.auctionID
}
