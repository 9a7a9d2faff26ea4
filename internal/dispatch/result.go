package dispatch

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Result is an agent's answer before it is turned into display text. It is
// either a TextResult or a StructuredResult.
type Result interface {
	isResult()
}

type TextResult string

type StructuredResult map[string]any

func (TextResult) isResult()       {}
func (StructuredResult) isResult() {}

type contentGetter interface {
	GetContent() string
}

// FromValue classifies a raw agent response. Objects exposing their content
// through GetContent or a string Content field win, then maps, then strings.
// Anything else is formatted with fmt.
func FromValue(v any) Result {
	switch x := v.(type) {
	case nil:
		return TextResult("")
	case Result:
		return x
	case contentGetter:
		return TextResult(x.GetContent())
	case map[string]any:
		return StructuredResult(x)
	case map[string]string:
		m := make(StructuredResult, len(x))
		for k, s := range x {
			m[k] = s
		}
		return m
	case string:
		return TextResult(x)
	case []byte:
		return TextResult(x)
	default:
		if c, ok := contentField(x); ok {
			return TextResult(c)
		}
		return TextResult(fmt.Sprint(x))
	}
}

// contentField reads an exported string field named Content from a struct or
// a non-nil pointer to one.
func contentField(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return "", false
	}
	f := rv.FieldByName("Content")
	if !f.IsValid() || f.Kind() != reflect.String {
		return "", false
	}
	if sf, _ := rv.Type().FieldByName("Content"); !sf.IsExported() {
		return "", false
	}
	return f.String(), true
}

// Normalize returns the display text for r. A structured result shows its
// "content" entry when present and its JSON encoding otherwise.
func Normalize(r Result) string {
	switch x := r.(type) {
	case TextResult:
		return string(x)
	case StructuredResult:
		if c, ok := x["content"]; ok {
			switch s := c.(type) {
			case nil:
				return ""
			case string:
				return s
			default:
				return fmt.Sprint(s)
			}
		}
		b, err := json.Marshal(map[string]any(x))
		if err != nil {
			return fmt.Sprint(map[string]any(x))
		}
		return string(b)
	default:
		return ""
	}
}
