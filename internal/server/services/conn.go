package services

import (
	"context"
	"crypto/tls"

	"github.com/Danz17/txmtc-relay/pkg/models"
	"github.com/go-routeros/routeros/v3"
)

// Conn is a live control-plane session with one remote device. The device
// protocol itself is opaque to the relay: a command is a resource path plus
// attribute words, the answer is zero or more attribute maps.
type Conn interface {
	Run(ctx context.Context, words ...string) ([]map[string]string, error)
	Close()
}

// Dialer opens a new session for a device record. Injected so tests can
// substitute a fake device.
type Dialer func(ctx context.Context, rec models.DeviceRecord) (Conn, error)

// DialRouterOS is the production dialer, backed by the RouterOS API client.
// TLS connections skip certificate verification: these devices ship
// self-signed certificates and are addressed by IP.
func DialRouterOS(ctx context.Context, rec models.DeviceRecord) (Conn, error) {
	var (
		client *routeros.Client
		err    error
	)
	if rec.UseTLS {
		client, err = routeros.DialTLSContext(ctx, rec.Address(), rec.Username, rec.Secret, &tls.Config{InsecureSkipVerify: true})
	} else {
		client, err = routeros.DialContext(ctx, rec.Address(), rec.Username, rec.Secret)
	}
	if err != nil {
		return nil, err
	}
	return &routerosConn{client: client}, nil
}

type routerosConn struct {
	client *routeros.Client
}

func (c *routerosConn) Run(ctx context.Context, words ...string) ([]map[string]string, error) {
	reply, err := c.client.RunContext(ctx, words...)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(reply.Re))
	for _, sentence := range reply.Re {
		rows = append(rows, sentence.Map)
	}
	return rows, nil
}

func (c *routerosConn) Close() {
	c.client.Close()
}
