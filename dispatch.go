package dsstub

import (
	"fmt"
	"time"
)

type methodFunc func(e *Engine, req, resp Message) error

var methods = map[string]methodFunc{
	"Put": func(e *Engine, req, resp Message) error {
		r := req.(*PutRequest)
		keys, err := e.Put(r.Entities, r.Transaction)
		resp.(*PutResponse).Keys = keys
		return err
	},
	"Get": func(e *Engine, req, resp Message) error {
		ents, err := e.Get(req.(*GetRequest).Keys)
		resp.(*GetResponse).Entities = ents
		return err
	},
	"Delete": func(e *Engine, req, resp Message) error {
		r := req.(*DeleteRequest)
		_ = resp.(*VoidMessage)
		return e.Delete(r.Keys, r.Transaction)
	},
	"RunQuery": func(e *Engine, req, resp Message) error {
		res, err := e.RunQuery(req.(*QueryRequest).Query)
		if err != nil {
			return err
		}
		*resp.(*QueryResult) = *res
		return nil
	},
	"Next": func(e *Engine, req, resp Message) error {
		r := req.(*NextRequest)
		res, err := e.Next(r.Cursor, r.Count)
		if err != nil {
			return err
		}
		*resp.(*QueryResult) = *res
		return nil
	},
	"Count": func(e *Engine, req, resp Message) error {
		n, err := e.Count(req.(*QueryRequest).Query)
		resp.(*CountResponse).Count = n
		return err
	},
	"BeginTransaction": func(e *Engine, req, resp Message) error {
		_ = req.(*VoidMessage)
		tx, err := e.BeginTransaction()
		if err != nil {
			return err
		}
		*resp.(*Transaction) = *tx
		return nil
	},
	"Commit": func(e *Engine, req, resp Message) error {
		_ = resp.(*VoidMessage)
		return e.Commit(req.(*Transaction))
	},
	"Rollback": func(e *Engine, req, resp Message) error {
		_ = resp.(*VoidMessage)
		return e.Rollback(req.(*Transaction))
	},
	"AllocateIds": func(e *Engine, req, resp Message) error {
		r := req.(*AllocateIdsRequest)
		start, end, err := e.AllocateIds(r.Key, r.Size)
		out := resp.(*AllocateIdsResponse)
		out.Start, out.End = start, end
		return err
	},
	"GetSchema": func(e *Engine, req, resp Message) error {
		resp.(*SchemaResponse).Kinds = e.GetSchema(req.(*AppRequest).App)
		return nil
	},
	"CreateIndex": func(e *Engine, req, resp Message) error {
		id, err := e.CreateIndex(req.(*CompositeIndex))
		resp.(*IndexIDResponse).ID = id
		return err
	},
	"UpdateIndex": func(e *Engine, req, resp Message) error {
		_ = resp.(*VoidMessage)
		return e.UpdateIndex(req.(*CompositeIndex))
	},
	"DeleteIndex": func(e *Engine, req, resp Message) error {
		_ = resp.(*VoidMessage)
		return e.DeleteIndex(req.(*CompositeIndex))
	},
	"GetIndices": func(e *Engine, req, resp Message) error {
		resp.(*IndicesResponse).Indices = e.GetIndices(req.(*AppRequest).App)
		return nil
	},
}

// MakeSyncCall dispatches a call by method name. The service must be
// ServiceName, and req and resp must be the message types the method
// expects; violating either, or passing uninitialized messages, panics.
func (e *Engine) MakeSyncCall(service, method string, req, resp Message) error {
	if service != ServiceName {
		panic(fmt.Errorf("dsstub: unsupported service %q", service))
	}
	fn := methods[method]
	if fn == nil {
		return badRequestf("unknown method %s.%s", service, method)
	}
	if !req.IsInitialized() {
		panic(fmt.Errorf("dsstub: %s request is not initialized: %+v", method, req))
	}

	start := time.Now()
	err := fn(e, req, resp)
	promCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	promCalls.WithLabelValues(method, ErrorCode(err).String()).Inc()
	if err != nil {
		if e.verbose {
			e.logger.Debug("dsstub: call failed", "method", method, "err", err)
		}
		return err
	}

	if !resp.IsInitialized() {
		panic(fmt.Errorf("dsstub: %s response is not initialized: %+v", method, resp))
	}
	return nil
}
