package packet

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type route struct {
	flags  Flags
	writer Writer
}

// Router dispatches packets to the first writer whose flags are all set on
// the packet.
type Router struct {
	routes []route
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{}
}

// AddRoute registers writer for packets carrying every flag in flags.
func (r *Router) AddRoute(writer Writer, flags Flags) error {
	for _, rt := range r.routes {
		if rt.flags == flags {
			return fmt.Errorf("%w: flags %#x", ErrDuplicateRoute, flags)
		}
	}
	r.routes = append(r.routes, route{flags: flags, writer: writer})
	return nil
}

// Write implements Writer.
func (r *Router) Write(pkt *Packet) error {
	for _, rt := range r.routes {
		if pkt.Has(rt.flags) {
			return rt.writer.Write(pkt)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Router.Write",
		"flags":    fmt.Sprintf("%#x", pkt.Flags),
	}).Debug("No route for packet")
	return fmt.Errorf("%w: flags %#x", ErrNoRoute, pkt.Flags)
}
