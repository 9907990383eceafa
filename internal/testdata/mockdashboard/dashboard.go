package mockdashboard

import (
	"github.com/dennisdiepolder/monti/livechat/internal/api"
	"github.com/stretchr/testify/mock"
)

type Dashboard struct {
	mock.Mock
}

var _ api.Resetter = &Dashboard{}
var _ api.VisibilitySource = &Dashboard{}

func (m *Dashboard) ResetCharts() error {
	return m.Called().Error(0)
}

func (m *Dashboard) Mounted() bool {
	return m.Called().Bool(0)
}

func (m *Dashboard) DepartmentChartVisible() bool {
	return m.Called().Bool(0)
}
