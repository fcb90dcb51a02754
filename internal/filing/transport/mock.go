package transport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MockClient is an in-memory drop box. Tests and development use it to
// simulate the regulator: DropResponse places response artifacts in the
// outbound directory for the poller to find.
type MockClient struct {
	mu       sync.RWMutex
	inbound  map[string][]byte
	outbound map[string][]byte

	// FailUploads makes Upload return a transport error, for exercising the
	// bounded-retry path.
	FailUploads bool

	// FailLists makes List return a transport error, simulating a drop box
	// outage on the poll side.
	FailLists bool
}

func NewMock() *MockClient {
	return &MockClient{
		inbound:  make(map[string][]byte),
		outbound: make(map[string][]byte),
	}
}

func (m *MockClient) Name() string {
	return "mock"
}

func (m *MockClient) Upload(_ context.Context, filename string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUploads {
		return NewError("upload", fmt.Errorf("mock upload failure"))
	}
	m.inbound[filename] = append([]byte(nil), payload...)
	return nil
}

func (m *MockClient) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailLists {
		return nil, NewError("list", fmt.Errorf("mock list failure"))
	}

	var names []string
	for name := range m.outbound {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MockClient) Download(_ context.Context, filename string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	payload, ok := m.outbound[filename]
	if !ok {
		return nil, NewError("download", fmt.Errorf("file not found: %s", filename))
	}
	return append([]byte(nil), payload...), nil
}

// DropResponse simulates the regulator writing a response artifact into the
// outbound directory.
func (m *MockClient) DropResponse(filename string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbound[filename] = append([]byte(nil), payload...)
}

// Uploaded returns the bytes received for a filename, for assertions.
func (m *MockClient) Uploaded(filename string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.inbound[filename]
	return payload, ok
}
