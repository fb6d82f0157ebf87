package domain

import (
	"errors"
	"time"
)

// Errors
var (
	ErrUnknownContainer  = errors.New("container resolves to no known order")
	ErrPositionOccupied  = errors.New("cart position already in use")
	ErrContainerAttached = errors.New("container already attached to a position")
)

// Container binds a physical tote/order barcode to work. The container id
// doubles as the order id in the common one-order-per-container flow.
type Container struct {
	ContainerID string    `bson:"containerId" json:"containerId"`
	OrderID     string    `bson:"orderId" json:"orderId"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

// NewContainer binds a scanned barcode to the order it names.
func NewContainer(containerID, orderID string) Container {
	return Container{ContainerID: containerID, OrderID: orderID, CreatedAt: time.Now()}
}

// ContainerUse records one container occupying one CHE cart position for the
// duration of a pick run. The position index is also the poscon index on the
// cart.
type ContainerUse struct {
	ContainerID   string    `bson:"containerId" json:"containerId"`
	OrderID       string    `bson:"orderId" json:"orderId"`
	CheName       string    `bson:"cheName" json:"cheName"`
	PositionIndex int       `bson:"positionIndex" json:"positionIndex"`
	AttachedAt    time.Time `bson:"attachedAt" json:"attachedAt"`
}

// NewContainerUse attaches a container to a cart position.
func NewContainerUse(c Container, cheName string, positionIndex int) *ContainerUse {
	return &ContainerUse{
		ContainerID:   c.ContainerID,
		OrderID:       c.OrderID,
		CheName:       cheName,
		PositionIndex: positionIndex,
		AttachedAt:    time.Now(),
	}
}
