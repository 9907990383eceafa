package mockpublisher

import (
	"github.com/dennisdiepolder/monti/livechat/internal/event"
	"github.com/dennisdiepolder/monti/livechat/internal/stream"
	"github.com/dennisdiepolder/monti/livechat/internal/types"
	"github.com/stretchr/testify/mock"
)

type Publisher struct {
	mock.Mock
}

var _ event.Publisher = &Publisher{}

func (m *Publisher) PublishSession(c types.SessionChange) error {
	return m.Called(c).Error(0)
}

func (m *Publisher) PublishAgent(c types.AgentChange) error {
	return m.Called(c).Error(0)
}

func (m *Publisher) PublishDepartment(c types.DepartmentChange) error {
	return m.Called(c).Error(0)
}

func (m *Publisher) Stats() stream.Stats {
	mockArgs := m.Called()
	if v, ok := mockArgs.Get(0).(stream.Stats); ok {
		return v
	}
	return stream.Stats{}
}
