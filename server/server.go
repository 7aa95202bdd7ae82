package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/zenazn/goji/web"
	"github.com/zenazn/goji/web/middleware"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/lwansbrough/craft2/craft"
	"github.com/lwansbrough/craft2/storage"
)

// Server serves live volumes over HTTP.
type Server struct {
	config    Config
	store     storage.Store
	snapshots storage.Snapshots
	events    *storage.EventPublisher
	cache     *gpuCache
	volumes   *registry
	users     map[string]string // from the auth file; nil allows every authenticated user

	createSchema *jsonschema.Schema
	voxelSchema  *jsonschema.Schema

	handler http.Handler
	started time.Time
}

// New opens the configured store and event publisher.  Call LoadVolumes to bring stored
// snapshots into memory.
func New(config Config) (*Server, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	compress, err := craft.ParseCompression(config.Volume.Compression)
	if err != nil {
		return nil, err
	}
	users, err := loadAuthFile(config.Auth.AuthFile)
	if err != nil {
		return nil, err
	}
	if config.Auth.SecretKey != "" && users == nil {
		craft.Infof("No authorization file found.  Any valid JWT may write.\n")
	}
	createSchema, err := jsonschema.CompileString("create.json", createVolumeSchema)
	if err != nil {
		return nil, fmt.Errorf("bad volume creation schema: %v", err)
	}
	voxelSchema, err := jsonschema.CompileString("voxels.json", voxelBatchSchema)
	if err != nil {
		return nil, fmt.Errorf("bad voxel batch schema: %v", err)
	}

	store, created, err := storage.Open(config.Store)
	if err != nil {
		return nil, err
	}
	if created {
		craft.Infof("Created new %s\n", store)
	}
	hostID := config.Server.Host
	if hostID == "" {
		if hostID, err = os.Hostname(); err != nil {
			hostID = "localhost"
		}
	}
	events, err := storage.NewEventPublisher(config.Kafka, hostID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("unable to start kafka producer: %v", err)
	}

	s := &Server{
		config:       config,
		store:        store,
		snapshots:    storage.Snapshots{Store: store, Compression: compress},
		events:       events,
		cache:        newGPUCache(config.CacheSize()),
		volumes:      newRegistry(),
		users:        users,
		createSchema: createSchema,
		voxelSchema:  voxelSchema,
		started:      time.Now(),
	}
	s.handler = s.routes()
	return s, nil
}

// routes builds the goji mux wrapped for CORS.
func (s *Server) routes() http.Handler {
	mux := web.New()
	mux.Use(middleware.EnvInit)
	mux.Use(middleware.Recoverer)
	mux.Use(logRequests)
	mux.Use(s.isAuthorized)

	mux.Get(WebAPIPath+"server/info", s.serverInfoHandler)
	mux.Get(WebAPIPath+"volumes", s.volumesHandler)
	mux.Post(WebAPIPath+"volumes", s.createVolumeHandler)

	mux.Get(WebAPIPath+"volume/:name/info", s.volumeInfoHandler)
	mux.Post(WebAPIPath+"volume/:name/voxels", s.voxelsHandler)
	mux.Get(WebAPIPath+"volume/:name/voxel/:x/:y/:z", s.voxelHandler)
	mux.Put(WebAPIPath+"volume/:name/palette/:index", s.paletteHandler)
	mux.Get(WebAPIPath+"volume/:name/raycast", s.raycastHandler)
	mux.Get(WebAPIPath+"volume/:name/octree", s.octreeHandler)
	mux.Get(WebAPIPath+"volume/:name/gpu", s.gpuHandler)
	mux.Post(WebAPIPath+"volume/:name/snapshot", s.snapshotHandler)
	mux.Delete(WebAPIPath+"volume/:name", s.deleteVolumeHandler)
	mux.NotFound(notFoundHandler)

	c := cors.New(cors.Options{
		AllowedOrigins: s.config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodHead},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(mux)
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// LoadVolumes decodes every stored snapshot into a live volume, a bounded number at a time.
// Snapshots that fail to decode are logged and skipped.
func (s *Server) LoadVolumes(ctx context.Context) error {
	names, err := s.snapshots.List(ctx)
	if err != nil {
		return fmt.Errorf("unable to list stored volumes: %w", err)
	}
	limit := s.config.Server.LoadConcurrency
	if limit <= 0 {
		limit = DefaultLoadConcurrency
	}
	timedLog := craft.NewTimeLog()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, name := range names {
		name := name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			snap, err := s.snapshots.Load(gctx, name)
			if err != nil {
				craft.Errorf("skipping stored volume %q: %v\n", name, err)
				return nil
			}
			v, err := snap.Volume()
			if err != nil {
				craft.Errorf("skipping stored volume %q: %v\n", name, err)
				return nil
			}
			if _, err := s.volumes.add(name, v); err != nil {
				craft.Warningf("stored volume %q already live, keeping live copy\n", name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	timedLog.Infof("Loaded %d of %d stored volumes from %s", s.volumes.len(), len(names), s.store)
	return nil
}

// Serve listens on the configured address until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	addr := s.config.Server.HTTPAddress
	if addr == "" {
		addr = DefaultWebAddress
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves HTTP on ln until ctx is done, then shuts down gracefully, waiting up
// to the configured shutdown delay for requests in flight.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	if limit := s.config.Server.MaxConnections; limit > 0 {
		ln = netutil.LimitListener(ln, limit)
	}
	srv := &http.Server{
		Handler:     s.handler,
		ReadTimeout: 1 * time.Hour,
	}
	craft.Infof("Web server listening at %s ...\n", ln.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	craft.Infof("Shutting down web server, waiting up to %s for requests...\n", s.config.shutdownDelay())
	sctx, cancel := context.WithTimeout(context.Background(), s.config.shutdownDelay())
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the event publisher and closes the store.
func (s *Server) Close() error {
	if err := s.events.Close(); err != nil {
		craft.Errorf("closing event publisher: %v\n", err)
	}
	return s.store.Close()
}
