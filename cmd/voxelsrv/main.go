package main

import (
	"flag"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"voxelstream/internal/config"
	"voxelstream/internal/engine"
	"voxelstream/internal/persistence"
	"voxelstream/internal/profiling"
	"voxelstream/internal/registry"
	"voxelstream/internal/remote"
)

func main() {
	var (
		configPath = flag.String("config", "", "worldgen yaml config (empty = built-in defaults)")
		dataDir    = flag.String("data", "", "leveldb world directory (empty = no persistence)")
		seed       = flag.Int64("seed", 0, "override the config seed when nonzero")
		distance   = flag.Int("distance", 8, "load radius in chunks")
		listen     = flag.String("listen", "", "websocket scene sink address, e.g. :8080")
		tickRate   = flag.Duration("tick", 4*time.Millisecond, "frame interval")
		walkSpeed  = flag.Float64("walk", 4.0, "player walk speed in blocks/s (0 = stand still)")
	)
	flag.Parse()

	gen, err := config.LoadWorldGen(*configPath)
	if err != nil {
		log.Fatalf("voxelsrv: %v", err)
	}
	if *seed != 0 {
		gen.Seed = *seed
	}

	settings := config.NewEngineSettings()
	settings.SetChunkDistance(*distance)

	eng, err := engine.New(settings, registry.Default(), gen)
	if err != nil {
		log.Fatalf("voxelsrv: %v", err)
	}

	if *dataDir != "" {
		store, err := persistence.Open(*dataDir)
		if err == nil {
			if meta, ok := store.LoadMeta(); ok && meta.Seed != gen.Seed && *seed == 0 {
				log.Printf("voxelsrv: resuming saved world (seed %d)", meta.Seed)
				eng.Reset(meta.Seed)
			}
		}
		eng.SetPersistence(store)
	}

	if *listen != "" {
		hub := remote.NewHub()
		eng.SetSceneSink(hub)
		go func() {
			log.Printf("voxelsrv: scene sink listening on %s", *listen)
			if err := http.ListenAndServe(*listen, hub); err != nil {
				log.Printf("voxelsrv: scene sink: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	pos := mgl64.Vec3{0, 80, 0}
	eng.SetPlayer(pos)

	ticker := time.NewTicker(*tickRate)
	defer ticker.Stop()
	report := time.NewTicker(5 * time.Second)
	defer report.Stop()

	start := time.Now()
	log.Printf("voxelsrv: running (seed %d, distance %d)", eng.Seed(), *distance)
	for {
		select {
		case <-stop:
			log.Print("voxelsrv: shutting down")
			eng.Dispose()
			return
		case <-report.C:
			log.Printf("voxelsrv: columns=%d top=[%s]", eng.Manager().Len(), profiling.TopN(4))
			profiling.ResetFrame()
		case <-ticker.C:
			if *walkSpeed > 0 {
				// A slow figure-eight exercises load, unload, and reload.
				t := time.Since(start).Seconds() * *walkSpeed
				pos = mgl64.Vec3{t, 80, 200 * math.Sin(t*0.005)}
				eng.SetPlayer(pos)
			}
			eng.Tick()
		}
	}
}
