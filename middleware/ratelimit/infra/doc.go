// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - SlidingWindow: janela deslizante exata por chave, registro particionado e
//     limpeza de chaves ociosas
//   - TokenBucket: token bucket por chave usando golang.org/x/time/rate
//   - MemoryStatsStore / RedisStatsStore: contadores de decisões
package infra
