package dsstub

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/andreyvit/dsstub/recfile"
)

// ServiceName is the service tag the dispatch shim accepts.
const ServiceName = "datastore_v3"

// Engine executes datastore RPCs against in-memory state persisted to
// snapshot files.
//
// Lock order: txLock, fileLock, entitiesLock, then the small counter and
// table locks.
type Engine struct {
	appID          string
	requireIndexes bool
	logger         *slog.Logger
	verbose        bool
	trackTxns      bool

	entitiesLock sync.Mutex
	store        *store
	schemaCache  map[kindRef]*KindSchema

	ids         idAllocator
	nextCursor  atomic.Int64
	nextTx      atomic.Int64
	nextIndexID atomic.Int64

	cursorsLock sync.Mutex
	cursors     map[Cursor]*cursorState

	// txLock is held from BeginTransaction until Commit or Rollback, and by
	// non-transactional writes for their duration.
	txLock       sync.Mutex
	txHandleLock sync.Mutex
	tx           *openTx

	indexesLock sync.Mutex
	indexes     map[string][]*CompositeIndex

	historyLock sync.Mutex
	history     map[string]*historyEntry

	fileLock    sync.Mutex
	entityFile  recfile.Store
	historyFile recfile.Store
}

type Options struct {
	AppID string

	// EntityFile and HistoryFile name the snapshot files. An empty path or
	// "/dev/null" disables persistence of that file.
	EntityFile  string
	HistoryFile string

	RequireIndexes bool

	Backend  recfile.Backend
	Compress bool

	Logger  *slog.Logger
	Verbose bool

	// TrackTransactions records the stack of BeginTransaction for
	// DescribeTransaction.
	TrackTransactions bool
}

// Open creates an engine and loads both snapshot files. A snapshot that
// cannot be decoded fails with CodeInternalError; nothing is recovered.
func Open(opt Options) (*Engine, error) {
	if opt.AppID == "" {
		return nil, errors.New("dsstub: app id is required")
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Backend == recfile.BackendBolt && opt.EntityFile != "" && opt.EntityFile != recfile.DevNull && opt.EntityFile == opt.HistoryFile {
		return nil, fmt.Errorf("dsstub: entity and history files must differ, both are %s", opt.EntityFile)
	}

	e := &Engine{
		appID:          opt.AppID,
		requireIndexes: opt.RequireIndexes,
		logger:         opt.Logger,
		verbose:        opt.Verbose,
		trackTxns:      opt.TrackTransactions,
		store:          newStore(),
		schemaCache:    make(map[kindRef]*KindSchema),
		cursors:        make(map[Cursor]*cursorState),
		indexes:        make(map[string][]*CompositeIndex),
		history:        make(map[string]*historyEntry),
	}
	e.ids.reset()

	ropt := recfile.Options{
		Backend:  opt.Backend,
		Compress: opt.Compress,
		Logger:   opt.Logger,
		Verbose:  opt.Verbose,
	}
	var err error
	e.entityFile, err = recfile.Open(opt.EntityFile, ropt)
	if err != nil {
		return nil, snapshotLoadErr(opt.EntityFile, err)
	}
	e.historyFile, err = recfile.Open(opt.HistoryFile, ropt)
	if err != nil {
		e.entityFile.Close()
		return nil, snapshotLoadErr(opt.HistoryFile, err)
	}

	if err := e.load(); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) AppID() string {
	return e.appID
}

// Close releases the snapshot files. It does not write them.
func (e *Engine) Close() error {
	e.fileLock.Lock()
	defer e.fileLock.Unlock()
	return errors.Join(e.entityFile.Close(), e.historyFile.Close())
}

// Clear drops all entities, cursors and query history and resets the
// counters. Index definitions are kept. Snapshot files are not touched.
func (e *Engine) Clear() {
	e.entitiesLock.Lock()
	e.store = newStore()
	clear(e.schemaCache)
	e.ids.reset()
	e.noteEntityCount()
	e.entitiesLock.Unlock()

	e.cursorsLock.Lock()
	promOpenCursors.Sub(float64(len(e.cursors)))
	clear(e.cursors)
	e.cursorsLock.Unlock()

	e.historyLock.Lock()
	clear(e.history)
	e.historyLock.Unlock()

	e.logger.Debug("dsstub: cleared", "app", e.appID)
}

// resolveKey returns k with an empty app replaced by the engine's app id,
// copying k only when a change is needed.
func (e *Engine) resolveKey(k *Key) *Key {
	if k == nil || k.App != "" {
		return k
	}
	c := *k
	c.App = e.appID
	return &c
}

func (e *Engine) resolveApp(app string) string {
	if app == "" {
		return e.appID
	}
	return app
}
