package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/disintegration/imaging"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/lizzycam/internal/decision"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <image>...",
	Short: "Classify still images with the same pipeline as the camera",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClassify(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

type classified struct {
	path   string
	result decision.Result
	err    error
}

func runClassify(ctx context.Context, paths []string) error {
	p, session, err := loadPipeline(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Classifying"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	results := make([]classified, 0, len(paths))
	failed := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c := classified{path: path}
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			c.err = err
		} else {
			c.result, c.err = p.ClassifyImage(ctx, img)
		}
		if c.err != nil {
			failed++
			log.Printf("Skipping %s: %v", path, c.err)
		}
		results = append(results, c)
		bar.Add(1)
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	for _, c := range results {
		if c.err != nil {
			fmt.Printf("%s: error: %v\n", c.path, c.err)
			continue
		}
		fmt.Printf("%s: %s\n", c.path, c.result.Text)
	}

	if failed == len(paths) {
		return fmt.Errorf("no image could be classified")
	}
	return nil
}
