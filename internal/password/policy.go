// Package password содержит политику сложности пароля.
//
// Evaluate считает пять независимых признаков (facets); пароль валиден, только
// если выполнены все пять. Функции чистые и не делают I/O, поэтому их можно
// вызывать на каждое нажатие клавиши в клиенте и обязательно вызывать
// на сервере перед регистрацией.
package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinLength — минимальная длина пароля в символах (rune).
const MinLength = 8

// ErrWeakPassword — пароль не удовлетворяет политике сложности.
var ErrWeakPassword = errors.New("password is too weak")

// Facet — отдельное правило политики.
type Facet int

const (
	FacetLength Facet = iota
	FacetLower
	FacetUpper
	FacetDigit
	FacetSpecial
)

// Facets — все правила в фиксированном порядке.
var Facets = []Facet{FacetLength, FacetLower, FacetUpper, FacetDigit, FacetSpecial}

func (f Facet) String() string {
	switch f {
	case FacetLength:
		return "length"
	case FacetLower:
		return "lower"
	case FacetUpper:
		return "upper"
	case FacetDigit:
		return "number"
	case FacetSpecial:
		return "special"
	default:
		return fmt.Sprintf("facet(%d)", int(f))
	}
}

// Label — подпись правила для UI.
func (f Facet) Label() string {
	switch f {
	case FacetLength:
		return "At least 8 characters"
	case FacetLower:
		return "Contains a lowercase letter"
	case FacetUpper:
		return "Contains an uppercase letter"
	case FacetDigit:
		return "Contains a number"
	case FacetSpecial:
		return "Contains a special character"
	default:
		return f.String()
	}
}

// Result — результат проверки пароля по каждому правилу.
type Result struct {
	Length  bool `json:"length"`
	Lower   bool `json:"lower"`
	Upper   bool `json:"upper"`
	Digit   bool `json:"number"`
	Special bool `json:"special"`
}

// Evaluate проверяет пароль по всем правилам.
// Special — любой символ вне [A-Za-z0-9], включая не-ASCII.
func Evaluate(pw string) Result {
	r := Result{Length: utf8.RuneCountInString(pw) >= MinLength}

	for _, c := range pw {
		switch {
		case c >= 'a' && c <= 'z':
			r.Lower = true
		case c >= 'A' && c <= 'Z':
			r.Upper = true
		case c >= '0' && c <= '9':
			r.Digit = true
		default:
			r.Special = true
		}
	}

	return r
}

// Valid — логическое И всех правил.
func (r Result) Valid() bool {
	return r.Length && r.Lower && r.Upper && r.Digit && r.Special
}

// Met сообщает, выполнено ли правило f.
func (r Result) Met(f Facet) bool {
	switch f {
	case FacetLength:
		return r.Length
	case FacetLower:
		return r.Lower
	case FacetUpper:
		return r.Upper
	case FacetDigit:
		return r.Digit
	case FacetSpecial:
		return r.Special
	default:
		return false
	}
}

// Unmet возвращает невыполненные правила в порядке Facets.
func (r Result) Unmet() []Facet {
	var out []Facet
	for _, f := range Facets {
		if !r.Met(f) {
			out = append(out, f)
		}
	}

	return out
}

// Validate возвращает ErrWeakPassword с перечнем невыполненных правил.
func Validate(pw string) error {
	unmet := Evaluate(pw).Unmet()
	if len(unmet) == 0 {
		return nil
	}

	names := make([]string, len(unmet))
	for i, f := range unmet {
		names[i] = f.String()
	}

	return fmt.Errorf("%w: unmet %s", ErrWeakPassword, strings.Join(names, ","))
}
