package domain

import "encoding/json"

// AgentProfile - опубликованный профиль агента (ANS/ACDP).
// Ключ уникальности - Name (человекочитаемое имя, например "worker.local").
type AgentProfile struct {
	Name string `json:"name"`
	ID   string `json:"id"`

	// Capabilities - непрозрачные дескрипторы (обычно JSON-схемы инструментов).
	// Оркестратор их не интерпретирует, только хранит и отдает в исходном порядке.
	Capabilities []json.RawMessage `json:"capabilities"`
	Endpoint     string            `json:"endpoint"`
}

// Clone возвращает копию профиля, не разделяющую память с оригиналом
func (p AgentProfile) Clone() AgentProfile {
	out := p
	if p.Capabilities != nil {
		out.Capabilities = make([]json.RawMessage, len(p.Capabilities))
		for i, c := range p.Capabilities {
			out.Capabilities[i] = append(json.RawMessage(nil), c...)
		}
	}
	return out
}
