package driver

import (
	"sort"

	"klibexport/internal/kotlin"
	"klibexport/internal/linker"
	"klibexport/internal/project"
)

// ComputeModuleHashes вычисляет агрегатный хеш каждого модуля таблицы:
// H(content || dep1 || dep2 ...). Таблица уже упорядочена зависимостями
// вперёд, поэтому хеши зависимостей готовы к моменту использования.
// Незагруженные зависимости не участвуют.
func ComputeModuleHashes(table *linker.Table) []project.Digest {
	mods := table.Modules()
	out := make([]project.Digest, len(mods))
	for i, m := range mods {
		ids := make([]kotlin.ModuleID, 0, len(m.Depends))
		for _, dep := range m.Depends {
			if id, ok := table.ModuleID(dep); ok && int(id) < i {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		deps := make([]project.Digest, 0, len(ids))
		for j, id := range ids {
			if j > 0 && ids[j-1] == id {
				continue
			}
			deps = append(deps, out[id])
		}
		out[i] = project.Combine(m.ContentHash, deps...)
	}
	return out
}
