package postgres

import "github.com/tendant/simple-portal/pkg/backend"

// Connector serves table reads and writes from a shared Store while auth and
// files keep coming from the wrapped connector.
type Connector struct {
	backend.Connector
	Store *Store
}

func (c Connector) Connect() backend.Handle {
	h := c.Connector.Connect()
	h.Data = c.Store
	return h
}
