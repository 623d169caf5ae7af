package world

// Tag is a capability a component declares at construction. The map keeps
// one bucket per tag so queries never inspect runtime types.
type Tag string

// Built-in capability tags. Scenarios may declare their own.
const (
	TagComponent Tag = "component" // every placed entity
	TagObstacle  Tag = "obstacle"  // blocks movement
	TagWall      Tag = "wall"      // circular obstacle
	TagPolygon   Tag = "polygon"   // polygonal obstacle
	TagArea      Tag = "area"      // named region used for beliefs
	TagChair     Tag = "chair"     // reservable seat
	TagDesk      Tag = "desk"      // reservable service point
	TagQueue     Tag = "queue"     // queue line
	TagAgent     Tag = "agent"     // anything updated per tick
	TagHuman     Tag = "human"     // human-like agent
)

// OrderRule forbids adding a component tagged Earlier once any component
// tagged Later is on the map.
type OrderRule struct {
	Earlier Tag
	Later   Tag
}

// DefaultOrderRules requires physical obstacles to be placed before agents.
func DefaultOrderRules() []OrderRule {
	return []OrderRule{{Earlier: TagObstacle, Later: TagAgent}}
}
