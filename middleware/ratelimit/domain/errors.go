package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig é a causa de todo erro de configuração na construção de um admitter.
var ErrInvalidConfig = errors.New("ratelimit: invalid configuration")

// ConfigError descreve qual parâmetro foi rejeitado.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ratelimit: invalid %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }
