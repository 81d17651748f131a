package redact

/*
Файл filter.go реализует фильтр чувствительных данных (AGP PII Scrubbing).

- Упорядоченный список независимых шаблонов: каждый применяется к ТЕКУЩЕМУ тексту
  (результату предыдущего шаблона), порядок задается конфигурацией.
- Маркер фиксирован и не должен совпадать ни с одним шаблоном, поэтому
  Redact(Redact(x)) == Redact(x). Проверяется при сборке фильтра.
- Фильтр неизменяем после создания и безопасен для конкурентного вызова.
*/

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMarker - литерал, которым заменяется каждое совпадение
const DefaultMarker = "[REDACTED]"

// Pattern - именованное правило обнаружения
type Pattern struct {
	Name  string `mapstructure:"name"`
	Regex string `mapstructure:"regex"`
}

// DefaultPatterns - минимальный набор: email и номер в формате ddd-dd-dddd
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Name: "email", Regex: `[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`},
		{Name: "national_id", Regex: `\d{3}-\d{2}-\d{4}`},
	}
}

type compiledPattern struct {
	name string
	expr *regexp.Regexp
}

// Filter применяет шаблоны к тексту
type Filter struct {
	marker   string
	patterns []compiledPattern
}

// New компилирует шаблоны. Пустой marker означает DefaultMarker.
func New(marker string, patterns []Pattern) (*Filter, error) {
	if marker == "" {
		marker = DefaultMarker
	}

	f := &Filter{marker: marker, patterns: make([]compiledPattern, 0, len(patterns))}
	for _, p := range patterns {
		if strings.TrimSpace(p.Regex) == "" {
			return nil, fmt.Errorf("redact: pattern %q is empty", p.Name)
		}
		expr, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("redact: compile pattern %q: %w", p.Name, err)
		}
		// Маркер, попадающий под шаблон, ломает идемпотентность
		if expr.MatchString(marker) {
			return nil, fmt.Errorf("redact: marker %q matches pattern %q", marker, p.Name)
		}
		if expr.MatchString("") {
			return nil, fmt.Errorf("redact: pattern %q matches empty string", p.Name)
		}
		f.patterns = append(f.patterns, compiledPattern{name: p.Name, expr: expr})
	}
	return f, nil
}

// MustDefault - фильтр с дефолтными шаблонами (для тестов и bootstrap)
func MustDefault() *Filter {
	f, err := New(DefaultMarker, DefaultPatterns())
	if err != nil {
		panic(err)
	}
	return f
}

// Marker возвращает литерал замены
func (f *Filter) Marker() string { return f.marker }

// Redact заменяет все совпадения всех шаблонов маркером
func (f *Filter) Redact(text string) string {
	out := text
	for _, p := range f.patterns {
		out = p.expr.ReplaceAllLiteralString(out, f.marker)
	}
	return out
}

// RedactArguments применяет Redact к строковым значениям верхнего уровня.
// Остальные значения (числа, объекты, массивы) передаются без изменений.
// Исходная мапа не модифицируется.
func (f *Filter) RedactArguments(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			out[k] = f.Redact(s)
			continue
		}
		out[k] = v
	}
	return out
}
