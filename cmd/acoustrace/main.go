package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/acoustrace/acoustrace"
	"github.com/acoustrace/acoustrace/audio"
	"github.com/acoustrace/acoustrace/omath"
	"github.com/acoustrace/acoustrace/raytrace"
	"github.com/acoustrace/acoustrace/settings"
	"github.com/acoustrace/acoustrace/source"
	"github.com/acoustrace/acoustrace/utils"
	"github.com/acoustrace/acoustrace/world"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/getsentry/sentry-go"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"
)

// bodyID is the box that stands in for the listener's own body.
const bodyID = 1000

// The following program walks a listener around a box room with two emitters and logs what
// the per-direction sinks hear.
func main() {
	path := "config.toml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := settings.SaveDefault(path); err != nil {
			panic(err)
		}
	}
	s, err := settings.Load(path)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	})
	log.SetLevel(s.LogLevel())

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.1,
		}); err != nil {
			log.Fatalf("unable to initialize sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	if os.Getenv("PPROF_ENABLED") != "" {
		// set configurations before calling `statsview.New()` method
		viewer.SetConfiguration(viewer.WithTheme(viewer.ThemeWesteros), viewer.WithAddr("localhost:8080"))

		mgr := statsview.New()
		go mgr.Start()
		defer mgr.Stop()
	}

	scene := world.NewScene(world.Room(mgl64.Vec3{-20, 0, -20}, mgl64.Vec3{20, 10, 20}, 1, 1)...)
	scene.Add(world.Box{ID: 7, BBox: cube.Box(-2, 0, 4, 2, 6, 5)})

	registry := source.NewRegistry()
	radio, err := registry.Add("radio", mgl64.Vec3{12, 2, 8})
	if err != nil {
		log.Fatal(err)
	}
	if _, err := registry.Add("fountain", mgl64.Vec3{-10, 1, -14}); err != nil {
		log.Fatal(err)
	}

	sinks := make([]audio.Sink, s.Directions.Count)
	recorders := make([]*audio.RecordingSink, s.Directions.Count)
	for i := range sinks {
		recorders[i] = &audio.RecordingSink{}
		sinks[i] = recorders[i]
	}

	engine, err := acoustrace.New(log, s, scene, registry, sinks)
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()
	engine.SetFilter(raytrace.Filter{Exclude: []uint32{bodyID}})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(s.Directions.TickIntervalMillis) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	report := time.NewTicker(5 * time.Second)
	defer report.Stop()

	log.Infof("tracing %d directions with %d workers every %v", s.Directions.Count, s.Workers.Count, interval)
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			t := time.Since(start).Seconds()
			listener := mgl64.Vec3{8 * math.Cos(t/4), 1.7, 8 * math.Sin(t/4)}

			// Geometry only changes between frames. Frames are only started from this loop, so
			// nothing can start tracing between the check and Tick.
			if engine.Busy() {
				log.Debug("previous frame still running, dropped this one")
				continue
			}
			scene.Remove(bodyID)
			scene.Add(world.Box{ID: bodyID, BBox: cube.Box(-0.3, 0, -0.3, 0.3, 1.8, 0.3).Translate(omath.Vec64To32(listener.Sub(mgl64.Vec3{0, 1.7, 0})))})
			registry.SetPosition(radio, mgl64.Vec3{12, 2 + math.Sin(t), 8})
			engine.Tick(ctx, listener)
		case <-report.C:
			logSummary(log, engine, recorders)
		}
	}
}

func logSummary(log *logrus.Logger, engine *acoustrace.Engine, recorders []*audio.RecordingSink) {
	var (
		connected int
		volume    float32
	)
	for _, r := range recorders {
		st := r.State()
		if st.Connected {
			connected++
			volume += st.Volume
		}
	}

	stats := engine.Stats()
	fields := orderedmap.NewOrderedMap[string, any]()
	fields.Set("frames", stats.Frames)
	fields.Set("skipped", stats.Skipped)
	fields.Set("avg", stats.MeanFrameTime)
	fields.Set("stddev", stats.FrameTimeStdDev)
	fields.Set("max", stats.MaxFrameTime)
	fields.Set("connected", connected)
	fields.Set("volume", omath.Round(float64(volume), 4))
	log.Infof("engine %s", utils.OrderedMapToString(fields))
}
