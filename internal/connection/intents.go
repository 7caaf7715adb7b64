package connection

import (
	"github.com/kou050223/duelclient/internal/models"
	"github.com/kou050223/duelclient/internal/protocol"
)

// Attack declares an attack with card at its printed power.
func (m *Manager) Attack(card models.Card) error {
	return m.Send(protocol.Attack(card.ID, card.Attack))
}

// FindMatch asks the server for an opponent on behalf of the current identity.
func (m *Manager) FindMatch() error {
	return m.Send(protocol.FindMatch(m.uid()))
}

// Echo sends a test frame; the server answers with testResponse.
func (m *Manager) Echo(content string) error {
	return m.Send(protocol.Test(content, m.uid()))
}

func (m *Manager) uid() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return ""
	}
	return m.identity.UID()
}
