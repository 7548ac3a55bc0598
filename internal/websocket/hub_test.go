package websocket

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/models"
	"taskboard/internal/policy"
	"taskboard/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitLoggers()
	defer logger.SyncLoggers()
	os.Exit(m.Run())
}

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("write failed")
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func register(hub *Hub, ident policy.Identity, conn *fakeConn) *Client {
	client := &Client{Conn: conn, Ident: ident}
	hub.Register <- client
	return client
}

func TestBroadcastFiltersByAccess(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	ownerConn := &fakeConn{}
	strangerConn := &fakeConn{}
	adminConn := &fakeConn{}
	register(hub, policy.Identity{UserID: 1, Role: models.RoleUser}, ownerConn)
	register(hub, policy.Identity{UserID: 2, Role: models.RoleUser}, strangerConn)
	register(hub, policy.Identity{UserID: 3, Role: models.RoleAdmin}, adminConn)

	hub.PublishTask("task.created", models.Task{ID: 5, Owner: 1, Title: "Private task"})

	require.Eventually(t, func() bool {
		return ownerConn.frameCount() == 1 && adminConn.frameCount() == 1
	}, time.Second, 10*time.Millisecond, "owner and admin should receive the event")

	// The stranger must never see another user's task contents.
	assert.Equal(t, 0, strangerConn.frameCount())

	var event Event
	ownerConn.mu.Lock()
	require.NoError(t, json.Unmarshal(ownerConn.frames[0], &event))
	ownerConn.mu.Unlock()
	assert.Equal(t, "task.created", event.Event)
	assert.Equal(t, 5, event.Task.ID)
}

func TestPublishTaskNeverBlocks(t *testing.T) {
	// No Run goroutine: nothing drains the queue, so overflowing it must
	// drop events instead of stalling the publisher.
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < eventQueueSize+10; i++ {
			hub.PublishTask("task.updated", models.Task{ID: i, Owner: 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PublishTask blocked on a full event queue")
	}
}

func TestBroadcastDropsFailedClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	stalled := &fakeConn{fail: true}
	healthy := &fakeConn{}
	register(hub, policy.Identity{UserID: 9, Role: models.RoleAdmin}, stalled)
	register(hub, policy.Identity{UserID: 1, Role: models.RoleUser}, healthy)

	hub.PublishTask("task.deleted", models.Task{ID: 7, Owner: 1})

	require.Eventually(t, func() bool {
		return stalled.isClosed() && healthy.frameCount() == 1
	}, time.Second, 10*time.Millisecond, "failed client is closed, healthy client still served")

	// Later events keep flowing to the remaining client.
	hub.PublishTask("task.updated", models.Task{ID: 7, Owner: 1})
	require.Eventually(t, func() bool {
		return healthy.frameCount() == 2
	}, time.Second, 10*time.Millisecond)
}
