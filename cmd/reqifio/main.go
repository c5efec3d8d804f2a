// Command reqifio converts ReqIF documents between interchange formats
// (ReqIF XML, JSON) and relational stores (SQLite, CSV), and validates
// stored documents.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/j-rig/reqifio/internal/codec"
	"github.com/j-rig/reqifio/internal/config"
	"github.com/j-rig/reqifio/internal/repository"
	csvstore "github.com/j-rig/reqifio/internal/repository/csv"
	"github.com/j-rig/reqifio/internal/repository/sqlite"
	"github.com/j-rig/reqifio/internal/service"
)

func main() {
	app := kingpin.New("reqifio", "Convert ReqIF documents between XML/JSON interchange files and relational stores.")
	debug := app.Flag("debug", "Enable development logging.").Bool()
	configPath := app.Flag("config", "Path to a config file (overrides the default lookup).").String()

	convertCmd := app.Command("convert", "Parse an interchange file and write it into a store.")
	convertInput := convertCmd.Arg("input", "Input file to read.").Required().ExistingFile()
	convertMode := convertCmd.Flag("mode", "Store type: sqlite or csv.").Short('m').Required().Enum("sqlite", "csv")
	convertOutput := convertCmd.Flag("output", "Database file (sqlite) or directory (csv); defaults from config.").Short('o').String()
	convertFormat := convertCmd.Flag("format", "Input format: reqif or json.").Short('f').Default("reqif").Enum("reqif", "json")

	exportCmd := app.Command("export", "Load a store and write the document as an interchange file.")
	exportMode := exportCmd.Flag("mode", "Store type: sqlite or csv.").Short('m').Required().Enum("sqlite", "csv")
	exportSource := exportCmd.Flag("source", "Database file (sqlite) or directory (csv); defaults from config.").Short('s').String()
	exportFormat := exportCmd.Flag("format", "Output format: reqif or json.").Short('f').Default("reqif").Enum("reqif", "json")
	exportOutput := exportCmd.Flag("output", "Output file, or - for stdout.").Short('o').Default("-").String()

	validateCmd := app.Command("validate", "Load a store and check every implied reference.")
	validateMode := validateCmd.Flag("mode", "Store type: sqlite or csv.").Short('m').Required().Enum("sqlite", "csv")
	validateSource := validateCmd.Flag("source", "Database file (sqlite) or directory (csv); defaults from config.").Short('s').String()

	cmdName := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, cfgSource, err := loadConfig(*configPath)
	if err != nil {
		app.Fatalf("%v", err)
	}

	logger := newLogger(*debug || cfg.Log.Development)
	defer logger.Sync()
	sugar := logger.Sugar()
	if cfgSource != "" {
		sugar.Debugw("loaded config", "path", cfgSource)
	}

	svc := service.New(sugar)
	ctx := context.Background()

	switch cmdName {
	case convertCmd.FullCommand():
		err = runConvert(ctx, svc, cfg, *convertInput, *convertFormat, *convertMode, *convertOutput)
	case exportCmd.FullCommand():
		err = runExport(ctx, svc, cfg, *exportMode, *exportSource, *exportFormat, *exportOutput)
	case validateCmd.FullCommand():
		err = runValidate(ctx, svc, cfg, *validateMode, *validateSource)
	}
	if err != nil {
		sugar.Errorw("command failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func newLogger(development bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// openStore opens the requested store, falling back to configured paths
// when no explicit target was given.
func openStore(cfg *config.Config, mode, target string) (repository.Store, error) {
	switch mode {
	case "sqlite":
		if target == "" {
			target = cfg.Database.Path
		}
		return sqlite.Open(target)
	case "csv":
		if target == "" {
			target = cfg.CSV.Dir
		}
		return csvstore.Open(target)
	default:
		return nil, fmt.Errorf("unknown store mode %q", mode)
	}
}

func newImporter(format string) (codec.Importer, error) {
	switch format {
	case "reqif":
		return codec.NewReqIFCodec(), nil
	case "json":
		return codec.NewJSONCodec(), nil
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
}

func newExporter(format string) (codec.Exporter, error) {
	switch format {
	case "reqif":
		return codec.NewReqIFCodec(), nil
	case "json":
		return codec.NewJSONCodec(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func runConvert(ctx context.Context, svc *service.DocumentService, cfg *config.Config, input, format, mode, output string) error {
	imp, err := newImporter(format)
	if err != nil {
		return err
	}

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	store, err := openStore(cfg, mode, output)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := svc.Convert(ctx, f, imp, store)
	if err != nil {
		return err
	}

	fmt.Printf("converted %s into %s store: %d requirements, %d spec objects, %d relations, %d hierarchy nodes\n",
		input, mode, stats.Requirements, stats.SpecObjects, stats.SpecRelations, stats.HierarchyNodes)
	return nil
}

func runExport(ctx context.Context, svc *service.DocumentService, cfg *config.Config, mode, source, format, output string) error {
	exp, err := newExporter(format)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, mode, source)
	if err != nil {
		return err
	}
	defer store.Close()

	var w io.Writer = os.Stdout
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := svc.Export(ctx, store, exp, w); err != nil {
		return err
	}
	return nil
}

func runValidate(ctx context.Context, svc *service.DocumentService, cfg *config.Config, mode, source string) error {
	store, err := openStore(cfg, mode, source)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := svc.Validate(ctx, store)
	if err != nil {
		return err
	}

	fmt.Printf("store is consistent: %d requirements, %d spec objects, %d relations, %d types, %d hierarchy nodes\n",
		stats.Requirements, stats.SpecObjects, stats.SpecRelations, stats.SpecTypes, stats.HierarchyNodes)
	return nil
}
