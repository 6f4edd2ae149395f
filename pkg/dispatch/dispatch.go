// Package dispatch maps parsed RESP commands onto two-tier store
// operations and produces RESP-encoded replies, per spec.md §4.5.
// Grounded on original_source/lib/server.h's handle_command, with verbs
// routed to github.com/blinkdb/blink/pkg/store instead of a raw LRUCache.
package dispatch

import (
	"strconv"
	"strings"

	"github.com/blinkdb/blink/pkg/lru"
	"github.com/blinkdb/blink/pkg/resp"
	"github.com/blinkdb/blink/pkg/store"
)

// Dispatcher executes commands against a Store and encodes their replies.
type Dispatcher struct {
	store *store.Store
}

// New returns a Dispatcher bound to s.
func New(s *store.Store) *Dispatcher {
	return &Dispatcher{store: s}
}

// Dispatch executes args (the already-parsed command, args[0] the verb)
// and returns the RESP-encoded reply.
func (d *Dispatcher) Dispatch(args []string) []byte {
	if len(args) == 0 {
		return resp.Error("invalid command")
	}

	switch strings.ToUpper(args[0]) {
	case "SET":
		return d.set(args)
	case "GET":
		return d.get(args)
	case "DEL":
		return d.del(args)
	case "INFO":
		return d.info(args)
	case "CONFIG":
		return d.config(args)
	default:
		return resp.Error("unknown command")
	}
}

func (d *Dispatcher) set(args []string) []byte {
	if len(args) < 3 {
		return resp.Error("SET command requires key and value")
	}
	if err := d.store.Set(args[1], args[2]); err != nil {
		if err == lru.ErrTooLarge {
			return resp.Error("entry too large")
		}
		return resp.Error(err.Error())
	}
	return resp.SimpleString("OK")
}

func (d *Dispatcher) get(args []string) []byte {
	if len(args) < 2 {
		return resp.Error("GET command requires key")
	}
	v, ok := d.store.Get(args[1])
	if !ok {
		return resp.NullBulkString()
	}
	return resp.BulkString(v)
}

func (d *Dispatcher) del(args []string) []byte {
	if len(args) < 2 {
		return resp.Error("DEL command requires key")
	}
	count := 0
	for _, key := range args[1:] {
		if d.store.Del(key) {
			count++
		}
	}
	return resp.Integer(count)
}

func (d *Dispatcher) info(args []string) []byte {
	var b strings.Builder
	b.WriteString("# Memory\r\n")
	b.WriteString("used_memory:" + strconv.FormatInt(d.store.MemoryUsage(), 10) + "\r\n")
	b.WriteString("maxmemory:" + strconv.FormatInt(d.store.MaxMemory(), 10) + "\r\n")
	b.WriteString("maxmemory_policy:allkeys-lru\r\n")
	b.WriteString("# Stats\r\n")
	b.WriteString("keyspace_hits:" + strconv.Itoa(d.store.Size()) + "\r\n")
	return resp.BulkString(b.String())
}

func (d *Dispatcher) config(args []string) []byte {
	if len(args) < 2 {
		return resp.Error("CONFIG command requires subcommand")
	}
	if strings.ToUpper(args[1]) == "GET" && len(args) >= 3 {
		switch strings.ToLower(args[2]) {
		case "maxmemory":
			return resp.Array(
				resp.BulkString("maxmemory"),
				resp.BulkString(strconv.FormatInt(d.store.MaxMemory(), 10)),
			)
		case "maxmemory-policy":
			return resp.Array(
				resp.BulkString("maxmemory-policy"),
				resp.BulkString("allkeys-lru"),
			)
		}
	}
	return resp.SimpleString("Supported CONFIG commands: GET maxmemory, GET maxmemory-policy")
}
