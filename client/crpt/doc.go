// Package crpt é o cliente da API de registro de documentos com limite de
// requisições por janela.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (Document, PermitPool, erros, StatsEvent)
//   - application: casos de uso (admissão com timeout, Submitter) sem net/http
//   - infra: implementações concretas (WindowGate, Registry, HTTPTransport, stats)
//   - crpt (este pacote): wiring das camadas + extração da chave do participante
//
// Fluxo de CreateDocument:
//
//  1. Extrai a chave do gate (gate único ou por participante)
//  2. Espera uma permissão da janela atual (no máximo RequestLimit por TimeUnit)
//  3. Serializa o documento, injeta a assinatura e faz o POST
//  4. Devolve a permissão e o resultado (nil ou erro tipado do domain)
//
// Variáveis de ambiente do binário (cmd/crpt-client) controlam o comportamento,
// como CRPT_REQUEST_LIMIT, CRPT_TIME_UNIT e CRPT_PER_PARTICIPANT.
package crpt
