// Package scheduler реализует auto-deploy планировщик.
//
// Scheduler периодически проверяет проекты с истекшим
// next_auto_deploy_at: сравнивает рабочую копию с origin и при
// наличии новых commits создаёт automatic deployment через
// deploy.Coordinator.
//
// Структура:
//   - scheduler.go — основная логика Scheduler (Tick, processProject)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Projects:    projectRepo,
//	    Coordinator: coordinator,
//	    Logger:      logger,
//	})
//
//	// Вызывается каждый тик (обычно раз в 30 секунд)
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Leader Election:
//
// Scheduler не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock.
// Метод Tick() вызывается только лидером.
package scheduler
