package pipeline

import (
	"sort"

	"github.com/devflow/devflow/internal/domain"
)

// sortStages упорядочивает stages по составному ключу:
// ранг фазы (pre_deploy → deploy → post_deploy), затем order,
// затем стабильно по исходному порядку (порядку создания).
//
// Это требование корректности, а не оптимизация: поздняя фаза не
// должна выполниться раньше ранней даже при конфликтующих order.
func sortStages(stages []domain.PipelineStage) {
	sort.SliceStable(stages, func(i, j int) bool {
		if stages[i].Type.Rank() != stages[j].Type.Rank() {
			return stages[i].Type.Rank() < stages[j].Type.Rank()
		}
		return stages[i].Order < stages[j].Order
	})
}
