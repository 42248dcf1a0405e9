// Package orchestrator — приём batch-заявок на создание инстансов.
//
// Оркестратор валидирует batch, раскладывает его на job с tasks
// (одна task на инстанс), персистит всё одной транзакцией и публикует
// dispatch-сообщения в очередь. Повторный submit с тем же batch_id
// идемпотентен: возвращается существующий job.
//
// Recovery sweep закрывает окно между commit'ом и publish'ем:
// нетерминальные tasks, не менявшиеся дольше порога — потерянные
// PENDING и осиротевшие IN_PROGRESS — перепубликовываются.
package orchestrator
