package registry

import "github.com/meridiangw/gateway/pkg/models"

// Mock is the concrete contracts.MockAdapter used by registerMock: a
// placeholder whose tool count is an integer, never a real tool list, and
// which can never be executed (Registry.CallTool returns MOCK_ADAPTER for
// any tool ID whose adapter part names a registered mock).
type Mock struct {
	IDValue       string
	Count         int
	AuthTypeValue models.AuthType
	CategoryValue string
}

func (m *Mock) ID() string                  { return m.IDValue }
func (m *Mock) Category() string            { return m.CategoryValue }
func (m *Mock) AuthType() models.AuthType   { return m.AuthTypeValue }
func (m *Mock) ToolCount() int              { return m.Count }
