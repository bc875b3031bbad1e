package sse

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// BroadcasterSuite is a test suite for Broadcaster operations.
type BroadcasterSuite struct {
	suite.Suite
	broadcaster *Broadcaster
}

func (s *BroadcasterSuite) SetupTest() {
	s.broadcaster = NewBroadcaster()
}

func TestBroadcasterSuite(t *testing.T) {
	suite.Run(t, new(BroadcasterSuite))
}

// mockResponseWriter implements http.ResponseWriter and http.Flusher for testing.
type mockResponseWriter struct {
	header http.Header
	body   []byte
	err    error
	mu     sync.Mutex
}

func newMockResponseWriter() *mockResponseWriter {
	return &mockResponseWriter{header: make(http.Header)}
}

func (m *mockResponseWriter) Header() http.Header { return m.header }
func (m *mockResponseWriter) WriteHeader(int)     {}
func (m *mockResponseWriter) Flush()              {}

func (m *mockResponseWriter) Write(data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.body = append(m.body, data...)
	return len(data), nil
}

func (m *mockResponseWriter) Body() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.body)
}

// plainWriter cannot flush.
type plainWriter struct{ http.ResponseWriter }

func (s *BroadcasterSuite) TestAddRemoveClient() {
	client, err := s.broadcaster.AddClient(newMockResponseWriter())
	s.Require().NoError(err)
	s.NotEmpty(client.ID)
	s.Equal(1, s.broadcaster.ClientCount())

	s.broadcaster.RemoveClient(client)
	s.broadcaster.RemoveClient(client)
	s.Equal(0, s.broadcaster.ClientCount())

	select {
	case <-client.Done:
	default:
		s.Fail("Done channel should be closed")
	}
}

func (s *BroadcasterSuite) TestAddClient_RequiresFlusher() {
	_, err := s.broadcaster.AddClient(plainWriter{httptest.NewRecorder()})
	s.Error(err)
}

func (s *BroadcasterSuite) TestBroadcast() {
	writers := []*mockResponseWriter{newMockResponseWriter(), newMockResponseWriter()}
	for _, w := range writers {
		_, err := s.broadcaster.AddClient(w)
		s.Require().NoError(err)
	}

	s.broadcaster.Broadcast(EventRecorded, map[string]string{"name": "prompt_copy"})

	for _, w := range writers {
		s.Equal("event: usage\ndata: {\"name\":\"prompt_copy\"}\n\n", w.Body())
	}
}

func (s *BroadcasterSuite) TestBroadcastNoClients() {
	s.NotPanics(func() { s.broadcaster.Broadcast(EventCleared, struct{}{}) })
}

func (s *BroadcasterSuite) TestBroadcastDropsFailedClients() {
	good := newMockResponseWriter()
	bad := newMockResponseWriter()
	bad.err = errors.New("broken pipe")

	_, err := s.broadcaster.AddClient(good)
	s.Require().NoError(err)
	_, err = s.broadcaster.AddClient(bad)
	s.Require().NoError(err)

	s.broadcaster.Broadcast(EventRecorded, 1)
	s.Equal(1, s.broadcaster.ClientCount())
	s.Contains(good.Body(), "data: 1")
}

func (s *BroadcasterSuite) TestBroadcastUnmarshalable() {
	w := newMockResponseWriter()
	_, err := s.broadcaster.AddClient(w)
	s.Require().NoError(err)

	s.broadcaster.Broadcast(EventRecorded, make(chan int))
	s.Empty(w.Body())
}

func TestHandleSSE(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(http.HandlerFunc(b.HandleSSE))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	buf := make([]byte, 256)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(buf[:n]), "event: connected\n"))

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	assert.Eventually(t, func() bool { return b.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBroadcasterConcurrentAddRemove(t *testing.T) {
	b := NewBroadcaster()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c, err := b.AddClient(newMockResponseWriter())
			if err == nil {
				b.RemoveClient(c)
			}
		}()
		go func() {
			defer wg.Done()
			b.Broadcast(EventRecorded, "x")
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, b.ClientCount())
}

// unsyncWriter has no locking of its own, like a real ResponseWriter, and
// counts writes that overlap.
type unsyncWriter struct {
	header   http.Header
	body     bytes.Buffer
	inFlight atomic.Int32
	overlaps atomic.Int32
}

func (u *unsyncWriter) Header() http.Header { return u.header }
func (u *unsyncWriter) WriteHeader(int)     {}
func (u *unsyncWriter) Flush()              {}

func (u *unsyncWriter) Write(data []byte) (int, error) {
	if u.inFlight.Add(1) > 1 {
		u.overlaps.Add(1)
	}
	defer u.inFlight.Add(-1)
	for _, chunk := range bytes.SplitAfter(data, []byte("\n")) {
		u.body.Write(chunk)
		runtime.Gosched()
	}
	return len(data), nil
}

func TestBroadcast_ConcurrentFramesStayWhole(t *testing.T) {
	b := NewBroadcaster()
	w := &unsyncWriter{header: make(http.Header)}
	_, err := b.AddClient(w)
	require.NoError(t, err)

	const senders = 8
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Broadcast(EventRecorded, map[string]int{"n": i})
		}(i)
	}
	wg.Wait()

	assert.Zero(t, w.overlaps.Load())
	frames := strings.Split(strings.TrimSuffix(w.body.String(), "\n\n"), "\n\n")
	require.Len(t, frames, senders)
	for _, f := range frames {
		lines := strings.Split(f, "\n")
		require.Len(t, lines, 2, f)
		assert.Equal(t, "event: usage", lines[0])
		assert.True(t, strings.HasPrefix(lines[1], `data: {"n":`), f)
	}
}
