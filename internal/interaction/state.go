package interaction

import (
	"fmt"
	"sync"
)

// Mode - состояние композеров одного узла. Ответ и редактирование
// взаимоисключающие.
type Mode int

const (
	Closed Mode = iota
	Replying
	Editing
)

func (m Mode) String() string {
	switch m {
	case Replying:
		return "replying"
	case Editing:
		return "editing"
	default:
		return "closed"
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "replying":
		*m = Replying
	case "editing":
		*m = Editing
	case "closed":
		*m = Closed
	default:
		return fmt.Errorf("unknown mode %q", text)
	}
	return nil
}

// Transition описывает результат переключения. Focus означает, что
// открытый композер нужно сфокусировать после применения состояния.
type Transition struct {
	Node  string `json:"node"`
	Mode  Mode   `json:"mode"`
	Focus bool   `json:"focus"`
}

// State хранит режимы узлов одного представления. Узлы независимы,
// отсутствующий ключ означает Closed.
type State struct {
	modes map[string]Mode
	mu    sync.Mutex
}

func NewState() *State {
	return &State{modes: make(map[string]Mode)}
}

func (s *State) Mode(id string) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modes[id]
}

func (s *State) ToggleReply(id string) Transition {
	return s.toggle(id, Replying)
}

func (s *State) ToggleEdit(id string) Transition {
	return s.toggle(id, Editing)
}

func (s *State) toggle(id string, mode Mode) Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modes[id] == mode {
		delete(s.modes, id)
		return Transition{Node: id, Mode: Closed}
	}
	s.modes[id] = mode
	return Transition{Node: id, Mode: mode, Focus: true}
}

func (s *State) Close(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.modes, id)
}

// Open возвращает копию режимов всех узлов с открытым композером.
func (s *State) Open() map[string]Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Mode, len(s.modes))
	for id, m := range s.modes {
		out[id] = m
	}
	return out
}
