package api

import (
	"context"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// sessionLock serializes resource reads and tool calls within one protocol
// session. Other methods and other sessions are not blocked.
type sessionLock struct {
	mu    sync.Mutex
	locks map[mcp.Session]*sync.Mutex
}

func newSessionLock() *sessionLock {
	return &sessionLock{locks: make(map[mcp.Session]*sync.Mutex)}
}

func (l *sessionLock) middleware(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		if method != "resources/read" && method != "tools/call" {
			return next(ctx, method, req)
		}
		m := l.lockFor(req.GetSession())
		m.Lock()
		defer m.Unlock()
		return next(ctx, method, req)
	}
}

func (l *sessionLock) lockFor(s mcp.Session) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.locks[s]; ok {
		return m
	}
	m := &sync.Mutex{}
	l.locks[s] = m
	if ss, ok := s.(*mcp.ServerSession); ok {
		go func() {
			_ = ss.Wait()
			l.mu.Lock()
			delete(l.locks, s)
			l.mu.Unlock()
		}()
	}
	return m
}
