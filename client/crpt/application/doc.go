// Package application contém os casos de uso do cliente: admissão no gate de
// rate limit e submissão de documentos.
//
// Ele depende apenas do pacote domain e não conhece net/http nem o gate concreto.
// Ex.: Submitter.Submit(ctx, doc, sign) adquire uma permissão, envia e devolve
// nil ou um erro tipado do domain.
package application
