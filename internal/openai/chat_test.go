package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockChatAPI is a mock for the chat completions API
type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) CreateCompletion(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func TestChatClient_Complete_Success(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := &ChatClient{api: mockAPI, timeout: time.Second}

	mockAPI.On("CreateCompletion", mock.Anything, "what is the blood pressure?").
		Return("The recorded blood pressure is 120/80.", nil)

	answer, err := client.Complete(context.Background(), "what is the blood pressure?")

	require.NoError(t, err)
	assert.Equal(t, "The recorded blood pressure is 120/80.", answer)
	mockAPI.AssertExpectations(t)
}

func TestChatClient_Complete_APIError(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := &ChatClient{api: mockAPI, timeout: time.Second}

	mockAPI.On("CreateCompletion", mock.Anything, "q").Return("", errors.New("model overloaded"))

	_, err := client.Complete(context.Background(), "q")

	assert.Error(t, err)
}
