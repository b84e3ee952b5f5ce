package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Danz17/txmtc-relay/internal/server/storage"
	"github.com/Danz17/txmtc-relay/pkg/models"
)

// Operation is the closed set of things a command can do to a resource path.
type Operation int

const (
	OpRead Operation = iota
	OpCreate
	OpUpdate
	OpDelete
	OpInvoke
)

// ParseOperation maps the wire name onto an Operation. An empty string
// defaults to read, matching the common case of "just show me the resource".
func ParseOperation(s string) (Operation, error) {
	switch s {
	case "", "read":
		return OpRead, nil
	case "create":
		return OpCreate, nil
	case "update":
		return OpUpdate, nil
	case "delete":
		return OpDelete, nil
	case "invoke":
		return OpInvoke, nil
	default:
		return 0, fmt.Errorf("%w: unknown operation %q", models.ErrValidation, s)
	}
}

func (o Operation) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpInvoke:
		return "invoke"
	}
	return "unknown"
}

// executeTimeout bounds one command round trip, connect included.
const executeTimeout = 30 * time.Second

// CommandDispatcher executes one logical operation against one device, or
// fans it out to every registered device with independent outcomes.
type CommandDispatcher struct {
	pool    *ConnectionPool
	devices *storage.DeviceRepository
}

func NewCommandDispatcher(pool *ConnectionPool, devices *storage.DeviceRepository) *CommandDispatcher {
	return &CommandDispatcher{pool: pool, devices: devices}
}

// Execute runs command against the named device. It never returns an error:
// every failure, acquisition included, becomes a success=false Result so one
// dead device cannot abort a caller iterating over many.
func (d *CommandDispatcher) Execute(ctx context.Context, name, command string, op Operation, method string, args map[string]string) models.Result {
	start := time.Now()
	result := models.Result{Device: name, Command: command}

	callCtx, cancel := context.WithTimeout(ctx, executeTimeout)
	defer cancel()

	words, err := buildSentence(command, op, method, args)
	if err == nil {
		var conn Conn
		conn, err = d.pool.Acquire(callCtx, name)
		if err == nil {
			result.Data, err = conn.Run(callCtx, words...)
		}
	}

	result.ElapsedMs = roundMs(time.Since(start))
	if err != nil {
		log.Printf("Command failed on %s: %v", name, err)
		result.Error = err.Error()
		return result
	}

	result.Success = true
	return result
}

// ExecuteOnAll runs the command once per registered device, in registry
// order, collecting one Result per device. No early abort: a failing device
// contributes a failed Result and its siblings still run.
func (d *CommandDispatcher) ExecuteOnAll(ctx context.Context, command string, op Operation, method string, args map[string]string) []models.Result {
	names := d.devices.Names()
	results := make([]models.Result, 0, len(names))
	for _, name := range names {
		results = append(results, d.Execute(ctx, name, command, op, method, args))
	}
	return results
}

// buildSentence resolves the command to a resource path and assembles the
// wire sentence for the operation. Each kind maps onto exactly one device
// verb: read->print, create->add, update->set, delete->remove, invoke->the
// caller-named method.
func buildSentence(command string, op Operation, method string, args map[string]string) ([]string, error) {
	path := strings.TrimRight(strings.TrimSpace(command), "/")
	if path == "" || !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: command must be a /resource/path, got %q", models.ErrValidation, command)
	}

	var verb string
	switch op {
	case OpRead:
		verb = "print"
	case OpCreate:
		verb = "add"
	case OpUpdate:
		verb = "set"
	case OpDelete:
		verb = "remove"
	case OpInvoke:
		if method == "" {
			return nil, fmt.Errorf("%w: invoke requires a method", models.ErrValidation)
		}
		verb = method
	default:
		return nil, fmt.Errorf("%w: unknown operation", models.ErrValidation)
	}

	words := []string{path + "/" + verb}

	// Read arguments are query words, everything else is attributes.
	prefix := "="
	if op == OpRead {
		prefix = "?"
	}
	for _, key := range sortedKeys(args) {
		words = append(words, prefix+key+"="+args[key])
	}
	return words, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func roundMs(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000*100) / 100
}
