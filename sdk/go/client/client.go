// Package client is the Go SDK for an orrery server. A Client wraps one
// QUIC connection to the command endpoint plus plain HTTP access to the
// gateway for model files. All methods are safe for concurrent use.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/body"
	"github.com/orrerysim/orrery/internal/core/constraint"
	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/parts"
	"github.com/orrerysim/orrery/internal/core/protocol"
	"github.com/orrerysim/orrery/internal/core/protocol/quic"
	"github.com/orrerysim/orrery/internal/core/template"
)

// Config holds configuration for the client.
type Config struct {
	// Addr is the QUIC command endpoint, host:port.
	Addr string
	// GatewayURL is the HTTP gateway base for file downloads.
	GatewayURL string
	// ConnectTimeout bounds Dial.
	ConnectTimeout time.Duration
	// CallTimeout bounds a single command when the caller's context
	// carries no deadline of its own.
	CallTimeout time.Duration
	// Transport tunes framing and TLS. Message size limits must match the
	// server's.
	Transport protocol.Config
	// LogLevel of the client's own logger.
	LogLevel log.Level
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           "localhost:5555",
		GatewayURL:     "http://localhost:8080",
		ConnectTimeout: 10 * time.Second,
		CallTimeout:    10 * time.Second,
		Transport:      protocol.DefaultConfig(),
		LogLevel:       log.LevelInfo,
	}
}

// Client is one connection to an orrery server.
type Client struct {
	cfg    Config
	conn   *quic.Client
	http   *http.Client
	logger log.Log
	closed int32 // atomic
}

// Dial connects to the server named in the config.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidConfig)
	}
	logger := log.New(cfg.LogLevel).With(log.String("component", "client"))

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	conn, err := quic.Dial(ctx, cfg.Addr, cfg.Transport, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("connected", log.String("addr", cfg.Addr))
	return &Client{
		cfg:    cfg,
		conn:   conn,
		http:   &http.Client{Timeout: cfg.CallTimeout},
		logger: logger,
	}, nil
}

// Close tears down the connection. Pending calls fail.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.logger.Info("closing")
	return c.conn.Close()
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// Handler adapts the client to the in-process handler shape, so code
// written against handlers (the script session, for one) can run against a
// remote server unchanged.
func (c *Client) Handler() protocol.Handler {
	return func(ctx context.Context, req *protocol.Request) *protocol.Response {
		resp, err := c.conn.Roundtrip(ctx, req)
		if err != nil {
			return protocol.Failure("%v", err)
		}
		return resp
	}
}

// call runs one command and binds the reply payload into result.
func (c *Client) call(ctx context.Context, cmd string, payload, result any) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if _, ok := ctx.Deadline(); !ok && c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	req, err := protocol.NewRequest(cmd, payload)
	if err != nil {
		return err
	}
	defer protocol.ReleaseRequest(req)

	resp, err := c.conn.Roundtrip(ctx, req)
	if err != nil {
		return err
	}
	if !resp.OK {
		return &CommandError{Cmd: cmd, Msg: resp.Msg}
	}
	if result == nil || len(resp.Data) == 0 {
		return nil
	}
	return resp.Bind(result)
}

// Ping checks liveness and returns the server's answer string.
func (c *Client) Ping(ctx context.Context) (string, error) {
	var res protocol.PingResult
	if err := c.call(ctx, protocol.CmdPing, struct{}{}, &res); err != nil {
		return "", err
	}
	return res.Response, nil
}

// AddTemplates registers new templates. Template IDs must be fresh.
func (c *Client) AddTemplates(ctx context.Context, templates ...template.Template) error {
	req := protocol.AddTemplatesRequest{Templates: templates}
	return c.call(ctx, protocol.CmdAddTemplates, req, nil)
}

// GetTemplates fetches templates with the URL prefix their files download
// from.
func (c *Client) GetTemplates(ctx context.Context, ids ...string) (protocol.GetTemplatesResult, error) {
	var res protocol.GetTemplatesResult
	err := c.call(ctx, protocol.CmdGetTemplates, protocol.GetTemplatesRequest{TemplateIDs: ids}, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetTemplateID reports which template an object spawned from.
func (c *Client) GetTemplateID(ctx context.Context, objID uint64) (string, error) {
	var res protocol.GetTemplateIDResult
	err := c.call(ctx, protocol.CmdGetTemplateID, protocol.GetTemplateIDRequest{ObjID: objID}, &res)
	if err != nil {
		return "", err
	}
	return res.TemplateID, nil
}

// Spawn creates objects from templates and returns their IDs in order.
func (c *Client) Spawn(ctx context.Context, orders ...protocol.SpawnOrder) ([]uint64, error) {
	var res protocol.ObjectIDsResult
	err := c.call(ctx, protocol.CmdSpawn, protocol.SpawnRequest{Payload: orders}, &res)
	if err != nil {
		return nil, err
	}
	return res.ObjIDs, nil
}

// Remove deletes an object. Removing an unknown object is not an error.
func (c *Client) Remove(ctx context.Context, objID uint64) error {
	return c.call(ctx, protocol.CmdRemove, protocol.RemoveRequest{ObjID: objID}, nil)
}

// AllObjectIDs lists every live object.
func (c *Client) AllObjectIDs(ctx context.Context) ([]uint64, error) {
	var res protocol.ObjectIDsResult
	err := c.call(ctx, protocol.CmdGetAllObjectIDs, protocol.ObjectIDsRequest{}, &res)
	if err != nil {
		return nil, err
	}
	return res.ObjIDs, nil
}

// RigidBodies fetches full body states. With no IDs it fetches every live
// object; unknown IDs map to nil.
func (c *Client) RigidBodies(ctx context.Context, ids ...uint64) (map[uint64]*protocol.RigidBodyEntry, error) {
	var res protocol.GetRigidBodiesResult
	err := c.call(ctx, protocol.CmdGetRigidBodies, protocol.ObjectIDsRequest{ObjIDs: ids}, &res)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// SetRigidBodies applies partial body updates. Updates for unknown objects
// are skipped silently.
func (c *Client) SetRigidBodies(ctx context.Context, updates map[uint64]body.Override) error {
	req := protocol.SetRigidBodyRequest{Bodies: updates}
	return c.call(ctx, protocol.CmdSetRigidBody, req, nil)
}

// ObjectStates fetches the per-frame render state. With no IDs it fetches
// every live object; unknown IDs map to nil.
func (c *Client) ObjectStates(ctx context.Context, ids ...uint64) (map[uint64]*protocol.ObjectState, error) {
	var res protocol.GetObjectStatesResult
	err := c.call(ctx, protocol.CmdGetObjectStates, protocol.ObjectIDsRequest{ObjIDs: ids}, &res)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// SetForce applies a central force at an offset from the center of mass.
// The force stays in effect until replaced.
func (c *Client) SetForce(ctx context.Context, objID uint64, force, relPos mgl64.Vec3) error {
	req := protocol.SetForceRequest{ObjID: objID, Force: force, RelPos: relPos}
	return c.call(ctx, protocol.CmdSetForce, req, nil)
}

// Fragments returns the download references of the selected objects'
// fragments.
func (c *Client) Fragments(ctx context.Context, ids ...uint64) (protocol.GetFragmentsResult, error) {
	var res protocol.GetFragmentsResult
	err := c.call(ctx, protocol.CmdGetFragments, protocol.ObjectIDsRequest{ObjIDs: ids}, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SetFragments applies partial fragment updates per object.
func (c *Client) SetFragments(ctx context.Context, updates protocol.SetFragmentsRequest) error {
	return c.call(ctx, protocol.CmdSetFragments, updates, nil)
}

// ControlParts steers one object's boosters and factories. The returned
// IDs name the objects spawned by factory commands, in factory order.
func (c *Client) ControlParts(ctx context.Context, objID uint64, boosters map[string]parts.BoosterCmd, factories map[string]parts.FactoryCmd) ([]uint64, error) {
	req := protocol.ControlPartsRequest{ObjID: objID, Boosters: boosters, Factories: factories}
	var res protocol.ObjectIDsResult
	if err := c.call(ctx, protocol.CmdControlParts, req, &res); err != nil {
		return nil, err
	}
	return res.ObjIDs, nil
}

// AddConstraints stores constraints and reports how many were new.
func (c *Client) AddConstraints(ctx context.Context, constraints ...constraint.Meta) (int, error) {
	var res protocol.ConstraintsChangedResult
	err := c.call(ctx, protocol.CmdAddConstraints, protocol.ConstraintsRequest{Constraints: constraints}, &res)
	if err != nil {
		return 0, err
	}
	return res.Added, nil
}

// Constraints lists the constraints touching the given bodies, or all of
// them when no IDs are given.
func (c *Client) Constraints(ctx context.Context, bodyIDs ...uint64) ([]constraint.Meta, error) {
	var res protocol.GetConstraintsResult
	err := c.call(ctx, protocol.CmdGetConstraints, protocol.GetConstraintsRequest{BodyIDs: bodyIDs}, &res)
	if err != nil {
		return nil, err
	}
	return res.Constraints, nil
}

// DeleteConstraints removes constraints and reports how many existed.
func (c *Client) DeleteConstraints(ctx context.Context, constraints ...constraint.Meta) (int, error) {
	var res protocol.ConstraintsChangedResult
	err := c.call(ctx, protocol.CmdDeleteConstraints, protocol.ConstraintsRequest{Constraints: constraints}, &res)
	if err != nil {
		return 0, err
	}
	return res.Added, nil
}

// SetCustomData replaces per-object blobs and returns the IDs that were
// rejected.
func (c *Client) SetCustomData(ctx context.Context, blobs map[uint64]string) ([]uint64, error) {
	req := make(protocol.SetCustomDataRequest, len(blobs))
	for id, blob := range blobs {
		raw, err := json.Marshal(blob)
		if err != nil {
			return nil, err
		}
		req[id] = raw
	}
	var res protocol.SetCustomDataResult
	if err := c.call(ctx, protocol.CmdSetCustomData, req, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// CustomData fetches per-object blobs. Unknown IDs map to nil.
func (c *Client) CustomData(ctx context.Context, ids ...uint64) (map[uint64]*string, error) {
	var res protocol.GetCustomDataResult
	err := c.call(ctx, protocol.CmdGetCustomData, protocol.ObjectIDsRequest{ObjIDs: ids}, &res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// FetchFile downloads one fragment file from the gateway. The path is the
// fragment reference URL plus the file name, e.g. "/instances/1/hull/model.json".
func (c *Client) FetchFile(ctx context.Context, path string) ([]byte, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return nil, ErrClientClosed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.GatewayURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", path, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
