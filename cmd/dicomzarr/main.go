package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrsinham/dicomzarr/internal/compress"
	"github.com/mrsinham/dicomzarr/internal/config"
	"github.com/mrsinham/dicomzarr/internal/convert"
	"github.com/mrsinham/dicomzarr/internal/zarrstore"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	input := flag.String("input", "", "Directory of input series, one subdirectory per series (required)")
	converted := flag.String("converted", "", "Destination for array stores and sidecars")
	reconstructed := flag.String("reconstructed", "", "Destination for reconstructed series")
	codec := flag.String("codec", "", "Chunk codec: zstd, lz4, none (default: zstd)")
	level := flag.Int("level", -1, "Codec compression level (default: 1)")
	shuffle := flag.String("shuffle", "", "Pre-compression filter: byte, none (default: byte)")
	positional := flag.Bool("positional-names", false, "Name reconstructed slices positionally, ignoring recorded filenames")
	noVerify := flag.Bool("no-verify", false, "Skip the round-trip equivalence check")
	preview := flag.Bool("preview", false, "Write a PNG preview of each volume's middle slice")
	quiet := flag.Bool("quiet", false, "Suppress progress output")
	configFile := flag.String("config", "", "Load configuration from YAML file")
	saveConfig := flag.String("save-config", "", "Save effective configuration to YAML file")
	help := flag.Bool("help", false, "Show help message")
	showVersion := flag.Bool("version", false, "Show version")

	flag.Parse()

	if *showVersion {
		fmt.Printf("dicomzarr %s\n", version)
		os.Exit(0)
	}

	if *help {
		printHelp()
		os.Exit(0)
	}

	cfg := config.DefaultConfig()
	if *configFile != "" {
		loaded, err := config.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags set on the command line win over the config file.
	if *input != "" {
		cfg.Paths.Raw = *input
	}
	if *converted != "" {
		cfg.Paths.Converted = *converted
	}
	if *reconstructed != "" {
		cfg.Paths.Reconstructed = *reconstructed
	}
	if *codec != "" {
		cfg.Compression.Codec = *codec
	}
	if *level >= 0 {
		cfg.Compression.Level = *level
	}
	if *shuffle != "" {
		cfg.Compression.Shuffle = *shuffle
	}
	if *noVerify {
		cfg.Verify = false
	}
	if *preview {
		cfg.Preview = true
	}
	if *quiet {
		cfg.Quiet = true
	}

	if *input == "" && *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: --input is required\n")
		printUsage()
		os.Exit(1)
	}

	switch cfg.Compression.Codec {
	case compress.CodecZstd, compress.CodecLZ4, compress.CodecNone:
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid codec %q, valid options: zstd, lz4, none\n", cfg.Compression.Codec)
		os.Exit(1)
	}
	switch cfg.Compression.Shuffle {
	case zarrstore.ShuffleByte, zarrstore.ShuffleNone:
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid shuffle mode %q, valid options: byte, none\n", cfg.Compression.Shuffle)
		os.Exit(1)
	}

	if *saveConfig != "" {
		if err := config.SaveConfig(cfg, *saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save config: %v\n", err)
		} else if !cfg.Quiet {
			fmt.Printf("Configuration saved to %s\n", *saveConfig)
		}
	}

	seriesNames, err := discoverSeries(cfg.Paths.Raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	naming := convert.NameOriginal
	if *positional {
		naming = convert.NamePositional
	}

	if !cfg.Quiet {
		fmt.Println("dicomzarr")
		fmt.Println("=========")
		fmt.Printf("Found %d series under %s\n\n", len(seriesNames), cfg.Paths.Raw)
	}

	ctx := context.Background()
	failures := 0
	for _, s := range seriesNames {
		name := s.name
		opts := convert.Options{
			Store:  cfg.StoreConfig(),
			Naming: naming,
			Verify: cfg.Verify,
		}
		if cfg.Preview {
			opts.PreviewPath = filepath.Join(cfg.Paths.Converted, name+".png")
		}

		inputDir := s.dir
		storePath := filepath.Join(cfg.Paths.Converted, name+".zarr")
		sidecarPath := filepath.Join(cfg.Paths.Converted, name+".json")
		outputDir := filepath.Join(cfg.Paths.Reconstructed, name)

		if !cfg.Quiet {
			fmt.Printf("Processing %s...\n", name)
		}
		if err := convert.RunSeries(ctx, inputDir, storePath, sidecarPath, outputDir, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: series %s: %v\n", name, err)
			failures++
			continue
		}
		if !cfg.Quiet {
			fmt.Printf("  ✓ %s round-tripped\n", name)
		}
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "\n%d of %d series failed\n", failures, len(seriesNames))
		os.Exit(1)
	}
	if !cfg.Quiet {
		fmt.Printf("\n✓ All %d series round-tripped\n", len(seriesNames))
	}
}

type seriesDir struct {
	name string
	dir  string
}

// discoverSeries lists the series under root: every subdirectory is one
// series. A root holding slice files directly is treated as a single
// series named after the directory itself.
func discoverSeries(root string) ([]seriesDir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read input directory %s: %w", root, err)
	}

	var series []seriesDir
	hasFiles := false
	for _, entry := range entries {
		if entry.IsDir() {
			series = append(series, seriesDir{name: entry.Name(), dir: filepath.Join(root, entry.Name())})
		} else if entry.Name()[0] != '.' {
			hasFiles = true
		}
	}
	if len(series) == 0 {
		if !hasFiles {
			return nil, fmt.Errorf("input directory %s is empty", root)
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			abs = root
		}
		series = []seriesDir{{name: filepath.Base(abs), dir: root}}
	}
	return series, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "\nUsage:")
	fmt.Fprintln(os.Stderr, "  dicomzarr --input <DIR> [options]")
	fmt.Fprintln(os.Stderr, "\nOptions:")
	flag.PrintDefaults()
}

func printHelp() {
	fmt.Println("dicomzarr")
	fmt.Println("=========")
	fmt.Println()
	fmt.Println("Convert DICOM slice series to compressed Zarr arrays with a JSON sidecar,")
	fmt.Println("reconstruct equivalent series from them, and verify the round trip.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  dicomzarr --input <DIR> [options]")
	fmt.Println()
	fmt.Println("Required arguments:")
	fmt.Println("  --input <DIR>          Directory of input series, one subdirectory per series")
	fmt.Println()
	fmt.Println("Optional arguments:")
	fmt.Println("  --converted <DIR>      Destination for array stores and sidecars (default: 'converted')")
	fmt.Println("  --reconstructed <DIR>  Destination for reconstructed series (default: 'reconstructed')")
	fmt.Println("  --codec <NAME>         Chunk codec: zstd, lz4, none (default: zstd)")
	fmt.Println("  --level <N>            Codec compression level (default: 1)")
	fmt.Println("  --shuffle <MODE>       Pre-compression filter: byte, none (default: byte)")
	fmt.Println("  --positional-names     Name reconstructed slices positionally")
	fmt.Println("  --no-verify            Skip the round-trip equivalence check")
	fmt.Println("  --preview              Write a PNG preview of each volume's middle slice")
	fmt.Println("  --quiet                Suppress progress output")
	fmt.Println("  --config <FILE>        Load configuration from YAML file")
	fmt.Println("  --save-config <FILE>   Save effective configuration to YAML file")
	fmt.Println("  --version              Show version")
	fmt.Println("  --help                 Show this help message")
	fmt.Println()
	fmt.Println("Exit status is 0 when every series round-trips within tolerance,")
	fmt.Println("non-zero otherwise, with a per-series error report on stderr.")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Round-trip every series under ./raw")
	fmt.Println("  dicomzarr --input raw --converted converted --reconstructed reconstructed")
	fmt.Println()
	fmt.Println("  # Encode with lz4 and name reconstructed slices positionally")
	fmt.Println("  dicomzarr --input raw --codec lz4 --positional-names")
	fmt.Println()
}
