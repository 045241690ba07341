// Package memregistry is an in-memory device registry that speaks the
// getDevice and deviceUpdate commands. It backs local development, examples,
// and tests, either called in-process or mounted on a bus.Server inbox.
package memregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/MrEthical07/authcenter/bus"
	"github.com/MrEthical07/authcenter/registry"
)

// CodeNotFound is returned by deviceUpdate when the target uuid is unknown.
const CodeNotFound = 404

type fault struct {
	code        int
	description string
	err         error
}

// Registry stores records as nested maps keyed by uuid.
type Registry struct {
	mu     sync.RWMutex
	docs   map[string]map[string]any
	order  []string
	calls  map[string]int
	faults map[string][]fault
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		docs:   make(map[string]map[string]any),
		calls:  make(map[string]int),
		faults: make(map[string][]fault),
	}
}

// Put stores doc, replacing any record with the same uuid.
func (r *Registry) Put(doc map[string]any) error {
	uuid, _ := doc[registry.FieldUUID].(string)
	if strings.TrimSpace(uuid) == "" {
		return fmt.Errorf("memregistry: document without uuid")
	}
	cp, _ := normalize(doc).(map[string]any)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[uuid]; !ok {
		r.order = append(r.order, uuid)
	}
	r.docs[uuid] = cp
	return nil
}

// PutUser stores a user record with the given category tag and credentials.
func (r *Registry) PutUser(uuid, typeID, phoneNumber, password string) error {
	return r.Put(map[string]any{
		registry.FieldUUID: uuid,
		"type":             map[string]any{"id": typeID},
		"extra": map[string]any{
			"phoneNumber": phoneNumber,
			"password":    password,
		},
	})
}

// Load reads a JSON array of documents and stores each one.
func (r *Registry) Load(src io.Reader) (int, error) {
	dec := json.NewDecoder(src)
	dec.UseNumber()

	var docs []map[string]any
	if err := dec.Decode(&docs); err != nil {
		return 0, fmt.Errorf("memregistry: decode seed: %w", err)
	}
	for i, doc := range docs {
		if err := r.Put(doc); err != nil {
			return i, err
		}
	}
	return len(docs), nil
}

// Set applies dotted-path fields to the record, as deviceUpdate does, without
// counting a call.
func (r *Registry) Set(uuid string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[uuid]
	if !ok {
		return fmt.Errorf("memregistry: unknown uuid %q", uuid)
	}
	for path, value := range fields {
		if path == registry.FieldUUID {
			continue
		}
		setPath(doc, path, normalize(value))
	}
	return nil
}

// Document returns a copy of the stored record.
func (r *Registry) Document(uuid string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[uuid]
	if !ok {
		return nil, false
	}
	cp, _ := normalize(doc).(map[string]any)
	return cp, true
}

// Device returns the stored record decoded as a registry.Device.
func (r *Registry) Device(uuid string) (registry.Device, bool) {
	doc, ok := r.Document(uuid)
	if !ok {
		return registry.Device{}, false
	}
	return registry.DeviceFromDocument(doc), true
}

// Calls returns how many times cmdName was received, faulted calls included.
func (r *Registry) Calls(cmdName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calls[cmdName]
}

// ResetCalls zeroes all call counters.
func (r *Registry) ResetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = make(map[string]int)
}

// FailNext makes the next cmdName call reply with code and description.
func (r *Registry) FailNext(cmdName string, code int, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults[cmdName] = append(r.faults[cmdName], fault{code: code, description: description})
}

// BreakNext makes the next in-process cmdName call fail with err, as if the
// transport had dropped it.
func (r *Registry) BreakNext(cmdName string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults[cmdName] = append(r.faults[cmdName], fault{err: err})
}

// Call serves payload in-process. The endpoint is ignored.
func (r *Registry) Call(_ context.Context, _ string, payload bus.Payload) (*bus.Response, error) {
	f, faulted := r.take(payload.CmdName)
	if faulted {
		if f.err != nil {
			return nil, f.err
		}
		return bus.ErrorResponse(f.code, f.description), nil
	}
	return r.execute(payload), nil
}

// ServeMessage lets the Registry be mounted on a bus.Server.
func (r *Registry) ServeMessage(ctx context.Context, req *bus.Request) *bus.Response {
	resp, err := r.Call(ctx, req.Devices, req.Payload)
	if err != nil {
		return bus.ErrorResponse(bus.CodeInternal, err.Error())
	}
	return resp
}

func (r *Registry) take(cmdName string) (fault, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls[cmdName]++
	queue := r.faults[cmdName]
	if len(queue) == 0 {
		return fault{}, false
	}
	f := queue[0]
	r.faults[cmdName] = queue[1:]
	return f, true
}

func (r *Registry) execute(payload bus.Payload) *bus.Response {
	switch payload.CmdName {
	case registry.CmdGetDevice:
		return r.getDevice(payload.Parameters)
	case registry.CmdDeviceUpdate:
		return r.deviceUpdate(payload.Parameters)
	default:
		return bus.ErrorResponse(bus.CodeBadRequest, "Unknown command: "+payload.CmdName)
	}
}

func (r *Registry) getDevice(params map[string]any) *bus.Response {
	if len(params) == 0 {
		return bus.ErrorResponse(bus.CodeBadRequest, "getDevice requires parameters.")
	}
	filters, _ := normalize(params).(map[string]any)

	r.mu.RLock()
	matches := make([]map[string]any, 0, 1)
	for _, uuid := range r.order {
		doc := r.docs[uuid]
		if matchAll(doc, filters) {
			cp, _ := normalize(doc).(map[string]any)
			matches = append(matches, cp)
		}
	}
	r.mu.RUnlock()

	resp, err := bus.NewResponse(bus.CodeOK, "Success.", matches)
	if err != nil {
		return bus.ErrorResponse(bus.CodeInternal, err.Error())
	}
	return resp
}

func (r *Registry) deviceUpdate(params map[string]any) *bus.Response {
	uuid, _ := params[registry.FieldUUID].(string)
	if uuid == "" {
		return bus.ErrorResponse(bus.CodeBadRequest, "deviceUpdate requires uuid.")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[uuid]
	if !ok {
		return bus.ErrorResponse(CodeNotFound, "Device not found.")
	}
	for path, value := range params {
		if path == registry.FieldUUID {
			continue
		}
		setPath(doc, path, normalize(value))
	}
	return bus.ErrorResponse(bus.CodeOK, "Success.")
}

func matchAll(doc map[string]any, filters map[string]any) bool {
	for path, want := range filters {
		got, ok := lookupPath(doc, path)
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func lookupPath(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(doc map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// normalize deep-copies v, collapsing every integer kind to int64 so stored
// values compare equal regardless of how they arrived.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return uintToInt(uint64(t))
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return uintToInt(t)
	default:
		return v
	}
}

func uintToInt(u uint64) any {
	if u > math.MaxInt64 {
		return u
	}
	return int64(u)
}
