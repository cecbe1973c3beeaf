// Headlock - webcam head tracking with a stabilized overlay pose.
//
// Captures frames, detects facial landmarks, solves head pose and shows
// the tracked result in a preview window and web dashboard.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image/jpeg"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gocv.io/x/gocv"

	"github.com/mwestergaard/go-headlock/internal/config"
	"github.com/mwestergaard/go-headlock/internal/log"
	"github.com/mwestergaard/go-headlock/pkg/camera"
	"github.com/mwestergaard/go-headlock/pkg/debug"
	"github.com/mwestergaard/go-headlock/pkg/detect"
	"github.com/mwestergaard/go-headlock/pkg/landmarks"
	"github.com/mwestergaard/go-headlock/pkg/pipeline"
	"github.com/mwestergaard/go-headlock/pkg/web"
)

func main() {
	opts := parseFlags()

	log.Init(opts.logLevel)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Error("configuration error", "err", err)
		os.Exit(1)
	}

	if opts.preset != "" {
		preset, err := camera.PresetConfig(opts.preset)
		if err != nil {
			log.Error("configuration error", "err", err)
			os.Exit(1)
		}
		preset.DeviceID = cfg.Camera.DeviceID
		cfg.Camera = preset
	}

	if err := run(cfg, opts); err != nil {
		log.Error("runtime error", "err", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	logLevel   string
	preset     string
	headless   bool
}

// parseFlags parses command line flags.
func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to YAML config file (optional)")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.preset, "preset", "", "Camera preset: default, vga, 720p, 1080p")
	flag.BoolVar(&opts.headless, "headless", false, "Run without a preview window")
	flag.BoolVar(&debug.Enabled, "debug", false, "Enable verbose debug output")
	flag.BoolVar(&debug.Tracking, "debug-tracking", false, "Enable per-frame tracking logs")
	flag.Parse()
	return opts
}

func run(cfg config.Config, opts options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Dashboard first so component status is visible while starting up.
	var dashboard *web.Server
	if cfg.WebPort != "" {
		dashboard = web.NewServer(cfg.WebPort)
		dashboard.StartAsync()
		defer dashboard.Shutdown()
	}

	var source camera.Source
	cam, err := camera.OpenWebcam(cfg.Camera)
	if err != nil {
		return err
	}
	source = cam
	defer source.Close()
	resolution := fmt.Sprintf("%dx%d", cfg.Camera.Width, cfg.Camera.Height)
	if dashboard != nil {
		dashboard.SetCameraConnected(true)
		dashboard.AddLog("info", "camera opened at "+resolution)
	}
	log.Info("camera opened", "device", cfg.Camera.DeviceID, "resolution", resolution)

	var detector detect.Detector
	detector, err = detect.NewYuNet(cfg.Detector)
	if err != nil {
		return err
	}
	defer detector.Close()
	if dashboard != nil {
		dashboard.SetDetectorLoaded(true)
		dashboard.AddLog("info", "face detector loaded: "+cfg.Detector.ModelPath)
	}
	log.Info("face detector loaded", "model", cfg.Detector.ModelPath)

	params := pipeline.Params{
		Intrinsics: camera.IntrinsicsFromFOV(cfg.Camera.Width, cfg.Camera.Height, cfg.FOVDegrees),
		Reference:  landmarks.DefaultReferenceModel(),
		Solver:     cfg.Solver,
		Stabilizer: cfg.Stabilizer,
		Transform:  cfg.Transform,
		Compositor: cfg.Compositor,
		HUD:        cfg.HUD,
		FrameSkip:  cfg.FrameSkip,
	}
	if dashboard != nil {
		params.Diagnostics = dashboard
	}

	pipe, err := pipeline.New(params)
	if err != nil {
		return err
	}

	var window *gocv.Window
	if !opts.headless {
		window = gocv.NewWindow("headlock")
		defer window.Close()
	}

	log.Info("tracking started", "fov", cfg.FOVDegrees, "web_port", cfg.WebPort)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		default:
		}

		frame, err := source.ReadFrame()
		if err != nil {
			return err
		}

		obs, err := detector.Detect(frame)
		if err != nil {
			log.Warn("detection failed", "err", err)
			continue
		}

		out, _, err := pipe.Process(frame, obs, time.Now())
		if err != nil {
			return err
		}

		if dashboard != nil && dashboard.PreviewClientCount() > 0 {
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 70}); err == nil {
				dashboard.SendPreviewFrame(buf.Bytes())
			}
		}

		if window != nil {
			display, err := gocv.ImageToMatRGBA(out)
			if err != nil {
				log.Warn("display conversion failed", "err", err)
				continue
			}
			bgr := gocv.NewMat()
			gocv.CvtColor(display, &bgr, gocv.ColorRGBAToBGR)
			display.Close()
			window.IMShow(bgr)
			key := window.WaitKey(1)
			bgr.Close()
			if key == 'q' || key == 27 { // q or ESC
				log.Info("quit requested")
				return nil
			}
		}
	}
}
