package config

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"goa.design/stepflow/state"
	statefile "goa.design/stepflow/state/file"
	stateinmem "goa.design/stepflow/state/inmem"
	stateremote "goa.design/stepflow/state/remote"
	"goa.design/stepflow/stream"
	streaminmem "goa.design/stepflow/stream/inmem"
	streamremote "goa.design/stepflow/stream/remote"
)

// BuildState constructs the state.Store the configuration selects.
func BuildState(c BackendConfig) (state.Store, error) {
	switch c.Adapter {
	case AdapterMemory, "":
		return stateinmem.New(), nil
	case AdapterFile:
		st, err := statefile.New(c.Path)
		if err != nil {
			return nil, fmt.Errorf("config: build file state store: %w", err)
		}
		return st, nil
	case AdapterRemote:
		ttl, err := c.Duration()
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(&redis.Options{
			Addr:     c.Addr(),
			Password: c.Password,
			DB:       c.DB,
		})
		return stateremote.New(client, ttl), nil
	default:
		return nil, fmt.Errorf("config: unknown state adapter %q", c.Adapter)
	}
}

// BuildStream constructs the stream.Registry the configuration selects.
// There is no file adapter for streams (Load rejects it); a zero-value
// BackendConfig or AdapterMemory both select the in-memory registry.
func BuildStream(c BackendConfig) (stream.Registry, error) {
	switch c.Adapter {
	case AdapterMemory, "":
		return streaminmem.New(), nil
	case AdapterRemote:
		client := redis.NewClient(&redis.Options{
			Addr:     c.Addr(),
			Password: c.Password,
			DB:       c.DB,
		})
		return streamremote.New(client), nil
	default:
		return nil, fmt.Errorf("config: unknown stream adapter %q", c.Adapter)
	}
}
