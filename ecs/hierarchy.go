package ecs

// Name is a built-in component holding an entity's display name.
type Name string

// Parent is a built-in component linking an entity to its parent. The link is
// plain data: despawning the parent leaves children untouched unless the caller
// asks for DespawnRecursive.
type Parent struct {
	Entity Entity
}

// Children returns the live entities whose Parent points at e.
func (w *World) Children(e Entity) []Entity {
	parentID, _ := ComponentIDOf[Parent](w.registry)

	var children []Entity
	for _, archetype := range w.archetypes {
		col := archetype.column(parentID)
		if col == -1 {
			continue
		}
		for slot, child := range archetype.Iter() {
			if archetype.storages[col].Get(slot).(*Parent).Entity == e {
				children = append(children, child)
			}
		}
	}
	return children
}

// DespawnRecursive despawns e and every entity reachable through Parent links.
func (w *World) DespawnRecursive(e Entity) error {
	if err := w.checkStructural(); err != nil {
		return err
	}
	return w.despawnRecursive(e)
}

func (w *World) despawnRecursive(e Entity) error {
	if !w.Contains(e) {
		return ErrEntityNotFound
	}

	visited := map[Entity]bool{e: true}
	order := []Entity{e}
	for i := 0; i < len(order); i++ {
		for _, child := range w.Children(order[i]) {
			if !visited[child] {
				visited[child] = true
				order = append(order, child)
			}
		}
	}

	for i := len(order) - 1; i >= 0; i-- {
		_ = w.despawn(order[i])
	}
	return nil
}
