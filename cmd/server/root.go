package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/lizzycam/internal/config"
	"github.com/Brownie44l1/lizzycam/internal/model"
	"github.com/Brownie44l1/lizzycam/internal/pipeline"
)

const Version = "0.1.0"

// cfg is loaded once in PersistentPreRunE and shared by every subcommand.
var cfg *config.Config

var flags struct {
	modelPath    string
	metadataPath string
	libPath      string
	threshold    float64
	target       string
	resampler    string
	decodeMode   string
	frameLayout  string
	timeout      time.Duration
	debug        bool
}

var rootCmd = &cobra.Command{
	Use:     "lizzycam",
	Short:   "Tells whether the camera is looking at Lizzy",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		applyFlags(cmd)
		return cfg.Validate()
	},
	SilenceUsage: true,
}

func Execute() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.modelPath, "model", "", "path to the .onnx model (env MODEL_PATH)")
	pf.StringVar(&flags.metadataPath, "metadata", "", "path to the model metadata JSON (env METADATA_PATH)")
	pf.StringVar(&flags.libPath, "onnxruntime-lib", "", "path to the ONNX Runtime shared library (env ONNXRUNTIME_LIB)")
	pf.Float64Var(&flags.threshold, "threshold", 0, "confidence threshold for a definite answer (env CONFIDENCE_THRESHOLD)")
	pf.StringVar(&flags.target, "target", "", "label of the target class (env TARGET_LABEL)")
	pf.StringVar(&flags.resampler, "resampler", "", "resize library: imaging or nfnt (env RESAMPLER)")
	pf.StringVar(&flags.decodeMode, "decode-mode", "", "frame decode mode: direct or jpeg (env DECODE_MODE)")
	pf.StringVar(&flags.frameLayout, "frame-layout", "", "chroma layout: nv21 or planar (env FRAME_LAYOUT)")
	pf.DurationVar(&flags.timeout, "timeout", 0, "per-frame inference timeout (env INFERENCE_TIMEOUT)")
	pf.BoolVar(&flags.debug, "debug", false, "log per-frame stage timings (env DEBUG)")
}

// applyFlags overrides the environment with flags the user actually set.
func applyFlags(cmd *cobra.Command) {
	changed := cmd.Flags().Changed
	if changed("model") {
		cfg.ModelPath = flags.modelPath
	}
	if changed("metadata") {
		cfg.MetadataPath = flags.metadataPath
	}
	if changed("onnxruntime-lib") {
		cfg.SharedLibraryPath = flags.libPath
	}
	if changed("threshold") {
		cfg.Threshold = flags.threshold
	}
	if changed("target") {
		cfg.Target = flags.target
	}
	if changed("resampler") {
		cfg.Resampler = flags.resampler
	}
	if changed("decode-mode") {
		cfg.DecodeMode = flags.decodeMode
	}
	if changed("frame-layout") {
		cfg.FrameLayout = flags.frameLayout
	}
	if changed("timeout") {
		cfg.InferenceTimeout = flags.timeout
	}
	if changed("debug") {
		cfg.Debug = flags.debug
	}
}

// loadPipeline opens the model once and builds the pipeline around it.
// The caller closes the returned session.
func loadPipeline(c *config.Config) (*pipeline.Pipeline, *model.Session, error) {
	metadata := model.DefaultMetadata(c.ImageSize, c.ClassCount, c.Target)
	if c.MetadataPath != "" {
		var err error
		if metadata, err = model.LoadMetadata(c.MetadataPath); err != nil {
			return nil, nil, err
		}
		if metadata.Size() != c.ImageSize {
			log.Printf("Using image size %d from metadata", metadata.Size())
			c.ImageSize = metadata.Size()
		}
		if metadata.ClassCount() != c.ClassCount {
			log.Printf("Using %d classes from metadata", metadata.ClassCount())
			c.ClassCount = metadata.ClassCount()
		}
	}

	log.Printf("Loading model from: %s", c.ModelPath)
	session, err := model.NewSession(model.Options{
		ModelPath:         c.ModelPath,
		SharedLibraryPath: c.SharedLibraryPath,
		InputName:         c.InputName,
		OutputName:        c.OutputName,
		Metadata:          metadata,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize model: %w", err)
	}

	p := &pipeline.Pipeline{
		Decoder: c.Decoder(),
		Builder: c.Builder(),
		Engine:  session,
		Policy:  c.Policy(),
		Timeout: c.InferenceTimeout,
		Debug:   c.Debug,
	}
	if got, want := session.InputLen(), p.Builder.Len(); got != want {
		session.Close()
		return nil, nil, fmt.Errorf("model expects %d input values, pipeline builds %d", got, want)
	}
	if err := p.Policy.Validate(); err != nil {
		session.Close()
		return nil, nil, err
	}
	return p, session, nil
}
