// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - deployment.pending — новый деплой ожидает выполнения
//
// Exchanges:
//   - devflow.deployments — события деплоев
//   - devflow.dlq         — dead letter queue
package mq
