// Command server runs a headless block-lifecycle engine: an in-memory world
// host, the furnace block manager with region persistence, lifecycle sinks
// (JSONL audit log plus a sqlite index), and a websocket admin endpoint for
// tuning reloads and status.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"enchantedblocks.dev/internal/persistence/auditlog"
	"enchantedblocks.dev/internal/persistence/indexdb"
	"enchantedblocks.dev/internal/persistence/regionstore"
	"enchantedblocks.dev/internal/protocol"
	"enchantedblocks.dev/internal/sim/blocks"
	"enchantedblocks.dev/internal/sim/catalogs"
	"enchantedblocks.dev/internal/sim/host"
	"enchantedblocks.dev/internal/sim/host/memhost"
	"enchantedblocks.dev/internal/sim/tuning"
	"enchantedblocks.dev/internal/transport/ws"
)

const serverName = "enchantedblocks-server"

func main() {
	var (
		addr       = flag.String("addr", ":8420", "listen address for the admin endpoint")
		dataDir    = flag.String("data", "data", "data directory (region files, audit log, index db)")
		configDir  = flag.String("configs", "configs", "catalog config directory")
		schemaDir  = flag.String("schemas", "schemas", "json schema directory (empty to skip validation)")
		tuningPath = flag.String("tuning", filepath.Join("configs", "tuning.yaml"), "tuning yaml path")
		worldList  = flag.String("worlds", "world", "comma-separated world names")
		tickEvery  = flag.Duration("tick", 50*time.Millisecond, "tick interval")
	)
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("server: ")

	if err := run(*addr, *dataDir, *configDir, *schemaDir, *tuningPath, *worldList, *tickEvery); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(addr, dataDir, configDir, schemaDir, tuningPath, worldList string, tickEvery time.Duration) error {
	cats, err := catalogs.Load(configDir, schemaDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}
	tune, tuneDigest, err := loadTuning(tuningPath)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	h := memhost.New()
	var worlds []string
	for _, name := range strings.Split(worldList, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		h.AddWorld(name)
		worlds = append(worlds, name)
	}
	if len(worlds) == 0 {
		return errors.New("no worlds configured")
	}

	audit := auditlog.NewLogger(dataDir)
	index, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index.db"))
	if err != nil {
		return fmt.Errorf("open index db: %w", err)
	}
	if err := index.UpsertCatalogs(configDir, cats, tune); err != nil {
		log.Printf("index catalogs: %v", err)
	}

	srv := &server{
		tuningPath:   tuningPath,
		tune:         tune,
		tuningDigest: tuneDigest,
		cats:         cats,
		worlds:       worlds,
		started:      time.Now(),
	}

	registry := blocks.NewRegistry(srv.currentTuning)
	registry.Register(blocks.FurnaceRegistration())
	srv.registry = registry

	mgr := blocks.NewManager(blocks.ManagerConfig{
		StorageRoot: filepath.Join(dataDir, "blocks"),
		Registry:    registry,
		Tuning:      srv.currentTuning,
		Worlds:      h.Lookup,
		Recorder:    multiRecorder{audit, index},
	})
	srv.mgr = mgr
	srv.hooks = blocks.NewFurnaceHooks(mgr, cats, h.Scheduler, memhost.Precise{})

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin", ws.NewAdminServer(srv, log.Printf).Handler())
	mux.HandleFunc("/v1/chunk", srv.handleChunk(h))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Printf("admin endpoint on %s/v1/admin", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-errc:
			return fmt.Errorf("admin listener: %w", err)
		case <-ticker.C:
			h.Scheduler.Run()
		}
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
	h.Scheduler.Close()
	h.Scheduler.Run()
	mgr.ExpireCache()
	if err := index.Close(); err != nil {
		log.Printf("close index: %v", err)
	}
	if err := audit.Close(); err != nil {
		log.Printf("close audit log: %v", err)
	}
	return nil
}

func loadTuning(path string) (*tuning.Tuning, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("tuning file %s missing, using defaults", path)
			return tuning.Default(), "", nil
		}
		return nil, "", err
	}
	t, err := tuning.Load(path)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(raw)
	return t, hex.EncodeToString(sum[:]), nil
}

// server holds the mutable configuration state and implements ws.Control.
type server struct {
	tuningPath string
	cats       *catalogs.Catalogs
	worlds     []string
	started    time.Time
	registry   *blocks.Registry
	mgr        *blocks.Manager
	hooks      *blocks.FurnaceHooks

	mu           sync.RWMutex
	tune         *tuning.Tuning
	tuningDigest string
}

func (s *server) currentTuning() *tuning.Tuning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tune
}

func (s *server) ServerName() string { return serverName }

// Reload re-reads the tuning file and swaps it in. Registration config
// caches are invalidated so the next lookup sees the new values. Reload
// never fails outright: a malformed file leaves the previous tuning in
// place and the outcome is reported in the message.
func (s *server) Reload() (string, error) {
	t, digest, err := loadTuning(s.tuningPath)
	if err != nil {
		log.Printf("reload tuning: %v", err)
		return fmt.Sprintf("tuning unchanged: %v", err), nil
	}
	s.mu.Lock()
	s.tune = t
	s.tuningDigest = digest
	s.mu.Unlock()
	s.registry.Reload()
	log.Printf("tuning reloaded from %s (digest %.12s)", s.tuningPath, digest)
	return fmt.Sprintf("tuning reloaded (digest %.12s)", digest), nil
}

func (s *server) Status() protocol.StatusBody {
	s.mu.RLock()
	tuneDigest := s.tuningDigest
	s.mu.RUnlock()
	return protocol.StatusBody{
		Digests: protocol.CatalogDigests{
			Materials:    s.cats.Materials.Digest,
			Enchantments: s.cats.Enchantments.Digest,
			Recipes:      s.cats.Recipes.Digest,
			Tuning:       tuneDigest,
		},
		Worlds:        s.worlds,
		LoadedBlocks:  s.mgr.LoadedBlocks(),
		LoadedRegions: s.mgr.LoadedRegions(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
}

// handleChunk marks a chunk loaded or unloaded in the in-memory host and
// runs the matching lifecycle hook, restoring or persisting the chunk's
// enchantable blocks. POST /v1/chunk?world=W&cx=N&cz=N&op=load|unload.
func (s *server) handleChunk(h *memhost.Host) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		world, ok := h.Worlds[q.Get("world")]
		if !ok {
			http.Error(w, "unknown world", http.StatusNotFound)
			return
		}
		var cx, cz int
		if _, err := fmt.Sscanf(q.Get("cx")+" "+q.Get("cz"), "%d %d", &cx, &cz); err != nil {
			http.Error(w, "bad chunk coordinates", http.StatusBadRequest)
			return
		}
		// World state is only touched on the tick goroutine.
		ck := host.ChunkKey{World: world.Name(), CX: cx, CZ: cz}
		switch q.Get("op") {
		case "load":
			h.Scheduler.NextTick(func() {
				world.SetChunkLoaded(cx, cz, true)
				s.hooks.HandleChunkLoad(ck)
			})
		case "unload":
			h.Scheduler.NextTick(func() {
				s.hooks.HandleChunkUnload(ck)
				world.SetChunkLoaded(cx, cz, false)
			})
		default:
			http.Error(w, "op must be load or unload", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "accepted")
	}
}

// multiRecorder fans lifecycle events out to every sink.
type multiRecorder []blocks.Recorder

func (m multiRecorder) BlockEvent(event string, key host.BlockKey, variant string) {
	for _, r := range m {
		r.BlockEvent(event, key, variant)
	}
}

func (m multiRecorder) RegionFlush(region regionstore.Region) {
	for _, r := range m {
		r.RegionFlush(region)
	}
}
