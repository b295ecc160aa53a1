// Package domain define contratos e tipos de domínio para controle de admissão.
//
// Este pacote não depende de net/http nem de implementações concretas.
// Admitter é o contrato central: Allow(key) responde se a requisição pode seguir.
// Erros de construção são ConfigError e satisfazem errors.Is(err, ErrInvalidConfig).
package domain
