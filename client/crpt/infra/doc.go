// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - WindowGate: gate de janela fixa (N permissões por janela, reset a cada tick)
//   - Registry: um WindowGate por chave, com limpeza de gates ociosos
//   - HTTPTransport / JSONSerializer: colaboradores de envio e serialização
//   - MemoryStatsStore, RedisStatsStore, PrometheusStatsStore: estatísticas das submissões
package infra
