// Package ratelimit fornece o adapter HTTP (net/http) do controle de admissão.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: caso de uso (decisão allow/deny + retry-after) sem net/http
//   - infra: implementações concretas (janela deslizante, token bucket, stats)
//   - ratelimit (este pacote): middleware HTTP + extração de chave + tradução para status/headers
//
// Fluxo no serviço hospedeiro:
//
//  1. Extrai a chave do cliente (header/XFF/IP)
//  2. Chama a camada application para obter a decisão
//  3. Se bloqueado, responde 429 com Retry-After e não executa o handler
//  4. Se permitido, chama o próximo handler (ex: reverse proxy)
//
// Um limiter por endpoint é só uma instância por grupo de rotas; não há estado global.
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como RATE_MAX_REQUESTS, RATE_WINDOW e RATE_ALGORITHM.
package ratelimit
