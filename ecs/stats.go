package ecs

import "github.com/google/uuid"

// WorldStats is a snapshot of a World's storage.
type WorldStats struct {
	WorldID            uuid.UUID
	Tick               Tick
	ArchetypeCount     int
	TotalEntityCount   int
	ResourceCount      int
	EventQueueCount    int
	ArchetypeBreakdown []ArchetypeStats
	ResourceTypes      []string
}

// ArchetypeStats describes one archetype.
type ArchetypeStats struct {
	ID             uint32
	ComponentTypes []string
	EntityCount    int
	// SlotCount includes freed slots not yet reclaimed by Compact.
	SlotCount int
}

// CollectStats gathers statistics about the World's current state.
func (w *World) CollectStats() *WorldStats {
	stats := &WorldStats{
		WorldID:            w.id,
		Tick:               w.Tick(),
		ArchetypeCount:     len(w.archetypes),
		TotalEntityCount:   w.records.Len(),
		ResourceCount:      w.resources.Len(),
		EventQueueCount:    len(w.events),
		ArchetypeBreakdown: make([]ArchetypeStats, 0, len(w.archetypes)),
		ResourceTypes:      w.ResourceTypes(),
	}

	for _, archetype := range w.archetypes {
		types := make([]string, len(archetype.types))
		for i, t := range archetype.types {
			types[i] = t.String()
		}
		stats.ArchetypeBreakdown = append(stats.ArchetypeBreakdown, ArchetypeStats{
			ID:             archetype.id,
			ComponentTypes: types,
			EntityCount:    archetype.count,
			SlotCount:      len(archetype.entities),
		})
	}
	return stats
}
