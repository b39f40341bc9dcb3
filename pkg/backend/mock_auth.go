package backend

import (
	"context"
	"sync"
)

// MockAuthClient is a scriptable AuthClient for tests. Unset funcs succeed
// with zero values. SignInWithPassword, SignOut and VerifyOneTimeCode publish
// the matching events on success, like a real client.
type MockAuthClient struct {
	Hub *Hub

	GetSessionFunc         func(ctx context.Context) (*Session, error)
	SignInWithPasswordFunc func(ctx context.Context, email, password string) (*Session, error)
	SignOutFunc            func(ctx context.Context) error
	RequestOneTimeCodeFunc func(ctx context.Context, email string, opts OTPOptions) error
	VerifyOneTimeCodeFunc  func(ctx context.Context, email, code string) (*Session, error)
	SignUpFunc             func(ctx context.Context, email, password string) (User, error)

	mu    sync.Mutex
	Calls []string
}

func NewMockAuthClient() *MockAuthClient {
	return &MockAuthClient{Hub: NewHub()}
}

func (m *MockAuthClient) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, name)
}

// CallLog returns a copy of the recorded call names.
func (m *MockAuthClient) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

func (m *MockAuthClient) GetSession(ctx context.Context) (*Session, error) {
	m.record("GetSession")
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx)
	}
	return nil, nil
}

func (m *MockAuthClient) Subscribe(fn func(AuthEvent)) *Subscription {
	return m.Hub.Subscribe(fn)
}

func (m *MockAuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	m.record("SignInWithPassword")
	if m.SignInWithPasswordFunc == nil {
		return nil, nil
	}
	s, err := m.SignInWithPasswordFunc(ctx, email, password)
	if err == nil && s != nil {
		m.Hub.Publish(AuthEvent{Kind: EventSignedIn, Session: s})
	}
	return s, err
}

func (m *MockAuthClient) SignOut(ctx context.Context) error {
	m.record("SignOut")
	var err error
	if m.SignOutFunc != nil {
		err = m.SignOutFunc(ctx)
	}
	if err == nil {
		m.Hub.Publish(AuthEvent{Kind: EventSignedOut})
	}
	return err
}

func (m *MockAuthClient) RequestOneTimeCode(ctx context.Context, email string, opts OTPOptions) error {
	m.record("RequestOneTimeCode")
	if m.RequestOneTimeCodeFunc != nil {
		return m.RequestOneTimeCodeFunc(ctx, email, opts)
	}
	return nil
}

func (m *MockAuthClient) VerifyOneTimeCode(ctx context.Context, email, code string) (*Session, error) {
	m.record("VerifyOneTimeCode")
	if m.VerifyOneTimeCodeFunc == nil {
		return nil, nil
	}
	s, err := m.VerifyOneTimeCodeFunc(ctx, email, code)
	if err == nil && s != nil {
		m.Hub.Publish(AuthEvent{Kind: EventSignedIn, Session: s})
	}
	return s, err
}

func (m *MockAuthClient) SignUp(ctx context.Context, email, password string) (User, error) {
	m.record("SignUp")
	if m.SignUpFunc != nil {
		return m.SignUpFunc(ctx, email, password)
	}
	return User{}, nil
}
