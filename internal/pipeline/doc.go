// Package pipeline реализует оркестратор pipeline-выполнений.
//
// Оркестратор загружает включённые stages проекта, упорядочивает их
// (фаза → order → порядок создания), выполняет последовательно через
// runner.CommandRunner и сохраняет исход каждого stage. Stages внутри
// одного run никогда не выполняются параллельно: решение
// continue/abort по stage N открывает дорогу stage N+1.
//
// Отмена кооперативная: CancelPipeline помечает статусы, выполняющий
// цикл замечает флаг на ближайшей безопасной точке (между командами).
//
// Структура:
//   - orchestrator.go — цикл выполнения и отмена
//   - order.go        — сортировка stages
//   - errors.go       — ошибки пакета
package pipeline
