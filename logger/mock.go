package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock implementing Logger. Log calls are recorded
// as (msg, keysAndValues) so expectations can match on the message alone
// with mock.Anything for the attributes.
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// Permissive accepts any call without an explicit expectation. With returns
// m itself, so scoped loggers record into the same mock.
func (m *MockLogger) Permissive() *MockLogger {
	for _, method := range []string{"Debug", "Info", "Warn", "Error", "Fatal"} {
		m.On(method, mock.Anything, mock.Anything).Maybe()
	}
	m.On("SetLevel", mock.Anything).Maybe()
	m.On("Level").Return(DebugLevel).Maybe()
	m.On("With", mock.Anything).Return(m).Maybe()

	return m
}

// Logged reports how many calls to the level method (e.g. "Warn") carried msg.
func (m *MockLogger) Logged(method, msg string) int {
	n := 0
	for _, c := range m.Calls {
		if c.Method == method && len(c.Arguments) > 0 && c.Arguments[0] == msg {
			n++
		}
	}

	return n
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) { m.Called(msg, keysAndValues) }
func (m *MockLogger) Info(msg string, keysAndValues ...any)  { m.Called(msg, keysAndValues) }
func (m *MockLogger) Warn(msg string, keysAndValues ...any)  { m.Called(msg, keysAndValues) }
func (m *MockLogger) Error(msg string, keysAndValues ...any) { m.Called(msg, keysAndValues) }
func (m *MockLogger) Fatal(msg string, keysAndValues ...any) { m.Called(msg, keysAndValues) }

func (m *MockLogger) SetLevel(level LogLevel) {
	m.Called(level)
}

func (m *MockLogger) Level() LogLevel {
	return m.Called().Get(0).(LogLevel)
}

func (m *MockLogger) With(keyValues ...any) Logger {
	return m.Called(keyValues).Get(0).(Logger)
}
