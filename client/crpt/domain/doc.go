// Package domain define contratos e tipos de domínio do cliente de registro de documentos.
//
// Este pacote não depende de net/http nem de implementações concretas (gate, redis, json).
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura.
package domain
