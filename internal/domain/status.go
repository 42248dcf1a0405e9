package domain

// JobStatus — агрегатный статус batch-задания.
//
// Жизненный цикл:
//
//	PENDING → COMPLETED         (все tasks терминальны, все успешны)
//	        → PARTIALLY_FAILED  (все tasks терминальны, есть и успехи, и провалы)
//	        → FAILED            (все tasks терминальны, ни одного успеха)
//
// Статус выводится из счётчиков tasks и меняется только когда
// succeeded + failed == total.
type JobStatus string

const (
	// JobStatusPending — есть незавершённые tasks.
	JobStatusPending JobStatus = "PENDING"

	// JobStatusCompleted — все tasks завершились успешно.
	JobStatusCompleted JobStatus = "COMPLETED"

	// JobStatusPartiallyFailed — часть tasks успешна, часть провалена.
	JobStatusPartiallyFailed JobStatus = "PARTIALLY_FAILED"

	// JobStatusFailed — все tasks провалены.
	JobStatusFailed JobStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusPartiallyFailed, JobStatusFailed:
		return true
	default:
		return false
	}
}

// AggregateStatus вычисляет статус job по счётчикам.
// Пока succeeded + failed < total — job остаётся PENDING.
func AggregateStatus(total, succeeded, failed int) JobStatus {
	if succeeded+failed < total {
		return JobStatusPending
	}
	switch {
	case failed == 0:
		return JobStatusCompleted
	case succeeded == 0:
		return JobStatusFailed
	default:
		return JobStatusPartiallyFailed
	}
}

// TaskStatus — статус отдельной provisioning-задачи.
//
// Жизненный цикл:
//
//	PENDING → IN_PROGRESS → SUCCESS
//	                      ↘ FAILED
//
// При transient-ошибке или отказе admission-контроля task возвращается
// в PENDING и переигрывается через очередь. Терминальные статусы
// (SUCCESS/FAILED) никогда не пересматриваются.
type TaskStatus string

const (
	// TaskStatusPending — task ожидает выполнения (или retry).
	TaskStatusPending TaskStatus = "PENDING"

	// TaskStatusInProgress — task выполняется воркером.
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"

	// TaskStatusSuccess — инстанс создан.
	TaskStatusSuccess TaskStatus = "SUCCESS"

	// TaskStatusFailed — task провален (permanent-ошибка или retry исчерпаны).
	TaskStatusFailed TaskStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSuccess, TaskStatusFailed:
		return true
	default:
		return false
	}
}
