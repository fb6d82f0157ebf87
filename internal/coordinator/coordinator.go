// Package coordinator owns every cross-device concern: the registry of live
// CHE machines, remote links between a mobile CHE and a cart, and the
// asynchronous work-changed fan-out that keeps poscon feedback honest when
// one device's action alters another device's run.
package coordinator

import (
	"context"
	"sync"

	"github.com/wms-platform/che-controller/internal/device"
	"github.com/wms-platform/che-controller/pkg/logging"
)

// MachineFactory builds a machine for a device name seen for the first time.
type MachineFactory func(cheName string) *device.Machine

// Coordinator implements device.RemoteControl and engine.Notifier. One
// instance serves the whole controller process.
type Coordinator struct {
	mu       sync.Mutex
	machines map[string]*device.Machine
	links    map[string]string // mobile -> cart
	reverse  map[string]string // cart -> controlling mobile
	factory  MachineFactory
	sink     *mirrorSink
	log      *logging.Logger
}

// New creates a coordinator wrapping the transport sink. Machines must be
// constructed against Sink() so a cart's display can be mirrored to a linked
// mobile.
func New(transport device.DisplaySink, log *logging.Logger) *Coordinator {
	c := &Coordinator{
		machines: make(map[string]*device.Machine),
		links:    make(map[string]string),
		reverse:  make(map[string]string),
		log:      log.WithComponent("coordinator"),
	}
	c.sink = &mirrorSink{transport: transport, coord: c}
	return c
}

// SetFactory installs the machine factory (the engine must exist first).
func (c *Coordinator) SetFactory(f MachineFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factory = f
}

// Sink returns the display sink machines must render through.
func (c *Coordinator) Sink() device.DisplaySink { return c.sink }

// Machine returns the machine for a device, creating it on first contact.
func (c *Coordinator) Machine(cheName string) *device.Machine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machineLocked(cheName)
}

func (c *Coordinator) machineLocked(cheName string) *device.Machine {
	if m, ok := c.machines[cheName]; ok {
		return m
	}
	if c.factory == nil {
		return nil
	}
	m := c.factory(cheName)
	c.machines[cheName] = m
	return m
}

// Names lists the registered devices.
func (c *Coordinator) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.machines))
	for name := range c.machines {
		out = append(out, name)
	}
	return out
}

// Link associates a mobile CHE with a cart. One controller per cart: a prior
// association is overwritten with a warning, never rejected. Linking to
// oneself or to a cart that is itself acting as a controller is accepted but
// yields a no-op link.
func (c *Coordinator) Link(ctx context.Context, mobileChe, cartChe string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cartChe == mobileChe {
		c.log.Info("Remote link to self is a no-op", "che", mobileChe)
		return "", nil
	}
	if _, cartIsController := c.links[cartChe]; cartIsController {
		c.log.Info("Remote link target is itself linked, no-op", "mobile", mobileChe, "cart", cartChe)
		return "", nil
	}
	if c.machineLocked(cartChe) == nil {
		c.log.Warn("Remote link target unknown", "mobile", mobileChe, "cart", cartChe)
		return "", nil
	}
	if prior, ok := c.reverse[cartChe]; ok && prior != mobileChe {
		// The deposed mobile finds out on its next forward, which the link
		// check below rejects.
		c.log.Warn("Cart already controlled, overwriting prior link",
			"cart", cartChe, "priorMobile", prior, "newMobile", mobileChe)
		delete(c.links, prior)
	}
	c.links[mobileChe] = cartChe
	c.reverse[cartChe] = mobileChe
	c.log.Info("Remote link established", "mobile", mobileChe, "cart", cartChe)
	return cartChe, nil
}

// Unlink releases the mobile's link, restoring both devices to independent
// operation.
func (c *Coordinator) Unlink(ctx context.Context, mobileChe string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cart, ok := c.links[mobileChe]
	if !ok {
		return
	}
	delete(c.links, mobileChe)
	if c.reverse[cart] == mobileChe {
		delete(c.reverse, cart)
	}
	c.log.Info("Remote link released", "mobile", mobileChe, "cart", cart)
}

// ForwardScan delivers a mobile's scan to the cart's state machine. A mobile
// that no longer holds the cart's link gets false and nothing is delivered,
// so an overwritten controller cannot keep driving the cart.
func (c *Coordinator) ForwardScan(ctx context.Context, mobileChe, cartChe, raw string) bool {
	m := c.linkedCart(mobileChe, cartChe)
	if m == nil {
		return false
	}
	m.HandleScan(ctx, raw)
	return true
}

// ForwardButton delivers a mobile's button press to the cart, under the same
// link check as ForwardScan.
func (c *Coordinator) ForwardButton(ctx context.Context, mobileChe, cartChe string, position, quantity int) bool {
	m := c.linkedCart(mobileChe, cartChe)
	if m == nil {
		return false
	}
	m.HandleButton(ctx, position, quantity)
	return true
}

func (c *Coordinator) linkedCart(mobileChe, cartChe string) *device.Machine {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.links[mobileChe] != cartChe {
		return nil
	}
	return c.machines[cartChe]
}

// NotifyWorkChanged pokes a CHE whose run was altered by another device. The
// poke is asynchronous so the originating device's event processing never
// blocks on a peer's render.
func (c *Coordinator) NotifyWorkChanged(cheName string) {
	c.mu.Lock()
	m := c.machines[cheName]
	c.mu.Unlock()
	if m == nil {
		return
	}
	go m.WorkChanged(context.Background())
}

// mirrorFor reports the mobile mirroring a cart's display, if any.
func (c *Coordinator) mirrorFor(cartChe string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mobile, ok := c.reverse[cartChe]
	return mobile, ok
}
