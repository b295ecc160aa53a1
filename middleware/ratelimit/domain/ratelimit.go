package domain

// Camada de domínio da admissão.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Key é a identidade opaca sob a qual o volume de requisições é contado
// (usuário, token, IP). Só importa igualdade.
type Key string

// Admitter decide se uma requisição para a chave pode seguir agora.
//
// Allow nunca bloqueia e nunca falha: quando retorna true a aceitação já foi
// registrada internamente. Implementações devem ser seguras para uso concorrente.
type Admitter interface {
	Allow(key Key) bool
}

// WindowInfo é implementado por admitters que conhecem a própria capacidade.
// É opcional: usado para headers e para o Retry-After padrão.
type WindowInfo interface {
	MaxRequests() int
	Window() time.Duration
}

// RetryHinter é implementado por admitters que sabem quando a chave volta a ter vaga.
type RetryHinter interface {
	RetryAfter(key Key) time.Duration
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
