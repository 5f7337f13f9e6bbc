package component

import "context"

// StatusInitialized is the value every component reports under StatusKey.
const StatusInitialized = "initialized"

// Keys of the Status record.
const (
	StatusKey    = "status"
	ComponentKey = "component"
)

// Status is the two-field record returned by Component.Status.
type Status map[string]any

// NewStatus returns the status record for the named component.
func NewStatus(name string) Status {
	return Status{
		StatusKey:    StatusInitialized,
		ComponentKey: name,
	}
}

// Component is implemented by every rai-memory component.
type Component interface {
	// Name returns the component's registered name, e.g. "Neo4jConnector".
	Name() string

	// Initialize always reports success and has no side effects.
	Initialize(ctx context.Context) (bool, error)

	// Process returns data unchanged.
	Process(ctx context.Context, data any) (any, error)

	// Status returns the component's fixed status record.
	Status() Status
}

// Lifecycle is implemented by components that own external resources.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds the live health of a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthChecker is implemented by components that can report live health.
type HealthChecker interface {
	Health(ctx context.Context) Health
}

// Base implements Component for a fixed name. Embed it to inherit the contract.
type Base struct {
	name string
}

// NewBase returns a Base reporting the given name.
func NewBase(name string) Base {
	return Base{name: name}
}

func (b Base) Name() string { return b.name }

func (b Base) Initialize(ctx context.Context) (bool, error) {
	return true, nil
}

func (b Base) Process(ctx context.Context, data any) (any, error) {
	return data, nil
}

func (b Base) Status() Status {
	return NewStatus(b.name)
}

// Health reports healthy; components with backends override it.
func (b Base) Health(ctx context.Context) Health {
	return Health{Name: b.name, Status: StatusHealthy}
}
