// Package sanitize очищает пользовательский HTML сообщений.
package sanitize

import (
	"github.com/microcosm-cc/bluemonday"
)

// AllowedTags разрешённое подмножество разметки, атрибуты не допускаются
var AllowedTags = []string{"p", "b", "i", "em", "strong", "code", "pre", "ul", "ol", "li", "br"}

type Policy struct {
	policy *bluemonday.Policy
}

func New() *Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(AllowedTags...)
	return &Policy{policy: p}
}

// Sanitize удаляет запрещённые теги (script и style вместе с содержимым) и все атрибуты
func (p *Policy) Sanitize(raw string) string {
	return p.policy.Sanitize(raw)
}
