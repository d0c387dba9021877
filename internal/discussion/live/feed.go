package live

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"taskdeck/api/internal/realtime"
)

// FeedManager holds at most one websocket connection per task in this
// process. Sessions acquire a subscription against the shared connection;
// the connection is dialed on the first acquire and closed when the last
// subscriber releases it.
type FeedManager struct {
	baseURL string
	token   string
	dialer  *websocket.Dialer

	mu    sync.Mutex
	feeds map[int64]*feed
}

func NewFeedManager(baseURL, token string) *FeedManager {
	return &FeedManager{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		dialer:  websocket.DefaultDialer,
		feeds:   make(map[int64]*feed),
	}
}

type feed struct {
	manager *FeedManager
	taskID  int64
	conn    *websocket.Conn
	subs    map[*FeedSub]struct{}
}

// FeedSub is one subscriber's view of a task feed. Events stops delivering
// when the subscription is closed or the underlying connection dies; the
// channel is closed in both cases.
type FeedSub struct {
	feed *feed
	ch   chan realtime.Event
	once sync.Once
}

func (s *FeedSub) Events() <-chan realtime.Event { return s.ch }

func (s *FeedSub) Close() {
	s.once.Do(func() {
		s.feed.manager.release(s)
	})
}

// Acquire joins the task's feed, dialing the connection if this is the first
// subscriber for that task.
func (m *FeedManager) Acquire(ctx context.Context, taskID int64) (*FeedSub, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.feeds[taskID]
	if !ok {
		conn, _, err := m.dialer.DialContext(ctx, m.wsURL(taskID), nil)
		if err != nil {
			return nil, fmt.Errorf("dial task %d feed: %w", taskID, err)
		}
		f = &feed{manager: m, taskID: taskID, conn: conn, subs: make(map[*FeedSub]struct{})}
		m.feeds[taskID] = f
		go f.readLoop()
	}

	sub := &FeedSub{feed: f, ch: make(chan realtime.Event, 16)}
	f.subs[sub] = struct{}{}
	return sub, nil
}

func (m *FeedManager) release(sub *FeedSub) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := sub.feed
	if _, ok := f.subs[sub]; !ok {
		return
	}
	delete(f.subs, sub)
	close(sub.ch)
	if len(f.subs) == 0 && m.feeds[f.taskID] == f {
		delete(m.feeds, f.taskID)
		_ = f.conn.Close()
	}
}

func (m *FeedManager) wsURL(taskID int64) string {
	u, err := url.Parse(m.baseURL)
	if err != nil {
		return m.baseURL
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + fmt.Sprintf("/api/tasks/%d/events", taskID)
	if m.token != "" {
		q := u.Query()
		q.Set("access_token", m.token)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// readLoop pumps decoded events to every subscriber until the connection
// fails, then tears the feed down. A subscriber that cannot keep up has the
// event dropped; sessions recover state on their next full load.
func (f *feed) readLoop() {
	for {
		var ev realtime.Event
		if err := f.conn.ReadJSON(&ev); err != nil {
			f.manager.dropFeed(f)
			return
		}
		f.manager.fanOut(f, ev)
	}
}

func (m *FeedManager) fanOut(f *feed, ev realtime.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub := range f.subs {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

func (m *FeedManager) dropFeed(f *feed) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.feeds[f.taskID] != f {
		return
	}
	delete(m.feeds, f.taskID)
	for sub := range f.subs {
		delete(f.subs, sub)
		close(sub.ch)
	}
	_ = f.conn.Close()
}

// Close tears down every open feed.
func (m *FeedManager) Close() {
	m.mu.Lock()
	feeds := make([]*feed, 0, len(m.feeds))
	for _, f := range m.feeds {
		feeds = append(feeds, f)
	}
	m.mu.Unlock()
	for _, f := range feeds {
		m.dropFeed(f)
	}
}
