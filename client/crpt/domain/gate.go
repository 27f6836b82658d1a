package domain

import "context"

// Key identifica um gate (ex: INN do participante). A chave vazia é o gate compartilhado.
type Key string

// PermitPool representa a cota de requisições da janela atual.
//
// A semântica é: Acquire bloqueia até conseguir uma permissão, até o gate ser encerrado
// ou até o ctx encerrar. Ao adquirir, retorna uma função de release que deve ser
// chamada exatamente uma vez (chamadas extras são ignoradas).
type PermitPool interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// GateStore obtém o PermitPool de uma chave.
// A implementação pode ter um gate único ou um gate por participante.
type GateStore interface {
	Get(Key) PermitPool
}
