// Package runner отвечает за выполнение shell-команд на серверах.
//
// Структура:
//   - runner.go — интерфейс CommandRunner и общие типы
//   - local.go  — выполнение на локальной машине через os/exec
//   - ssh.go    — выполнение на удалённых серверах через SSH
//
// Ненулевой exit code — это логический результат команды, а не ошибка
// транспорта: Run возвращает его в Result.ExitCode. error возвращается
// только когда команду не удалось выполнить вовсе (нет соединения,
// таймаут, отмена контекста).
package runner
