package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/drillboard/internal/api"
	"github.com/lox/drillboard/internal/chat"
	"github.com/lox/drillboard/internal/config"
	"github.com/lox/drillboard/internal/dataset"
	"github.com/lox/drillboard/internal/httputil"
	"github.com/lox/drillboard/internal/ingest"
	"github.com/lox/drillboard/internal/store"
)

type CLI struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file.'"`

	config.Config `embed:""`

	Serve  ServeCmd  `cmd:"" default:"1" help:"Run the HTTP API."`
	Import ImportCmd `cmd:"" help:"Import a spreadsheet for a well from disk or FTP."`
}

type ServeCmd struct {
	config.ServerConfig `embed:""`
}

func (c *ServeCmd) Run(cfg *config.Config) error {
	st, closeDB, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	for _, w := range cfg.Warnings() {
		log.Printf("warning: %s", w)
	}

	datasets, backend := dataset.Open(cfg, st, httputil.NewClient())
	assistant := chat.New(cfg.OpenAI)
	log.Printf("dataset store: %s, chat: %s", backend, assistant.Name())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := api.NewServer(ctx, api.Options{
		Config:    cfg,
		Server:    c.ServerConfig,
		Store:     st,
		Datasets:  datasets,
		Backend:   backend,
		Assistant: assistant,
	})

	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

type ImportCmd struct {
	Well string `required:"" help:"Well id to store the dataset under."`
	FTP  string `name:"ftp" help:"Fetch the file from an ftp:// URL instead of disk."`
	Path string `arg:"" optional:"" help:"Spreadsheet file to import." type:"existingfile"`
}

func (c *ImportCmd) Run(cfg *config.Config) error {
	if c.FTP == "" && c.Path == "" {
		return fmt.Errorf("a file path or --ftp URL is required")
	}

	st, closeDB, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		name string
		data []byte
	)
	if c.FTP != "" {
		name, data, err = ingest.FetchFTP(ctx, c.FTP, cfg.MaxUploadBytes)
		if err != nil {
			return err
		}
	} else {
		f, err := os.Open(c.Path)
		if err != nil {
			return err
		}
		data, err = ingest.ReadLimited(f, cfg.MaxUploadBytes)
		f.Close()
		if err != nil {
			return err
		}
		name = filepath.Base(c.Path)
	}

	datasets, backend := dataset.Open(cfg, st, httputil.NewClient())
	importer := ingest.NewImporter(st, datasets, ingest.NewPipeline(cfg.MaxUploadBytes), backend)

	// Accepted by extension; no MIME type from disk or FTP.
	result, err := importer.Import(ctx, ingest.ImportRequest{
		WellID:   c.Well,
		FileName: name,
		Data:     data,
	})
	if err != nil {
		return err
	}

	log.Printf("imported %d records from %s into well %s (%s, upload %s)",
		result.RecordCount, name, c.Well, backend, result.UploadID)
	for flag, n := range result.Flags {
		log.Printf("  %s: %d", flag, n)
	}
	return nil
}

// openStore opens and migrates the SQLite database and seeds the well
// directory. The returned func closes the database.
func openStore(cfg *config.Config) (*store.Store, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	log.Println("database migrated")

	if err := st.SeedWells(store.DefaultWells); err != nil {
		db.Close()
		return nil, nil, err
	}

	if n, err := st.CleanupOldRawFiles(cfg.RawRetentionDays); err != nil {
		log.Printf("store: cleanup raw files: %v", err)
	} else if n > 0 {
		log.Printf("store: removed %d raw files older than %d days", n, cfg.RawRetentionDays)
	}

	return st, func() { db.Close() }, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("drillboard"),
		kong.Description("Well data dashboard API: spreadsheet ingestion, datasets and chat."),
		kong.UsageOnError(),
	)
	ctx.Bind(&cli.Config)
	ctx.FatalIfErrorf(ctx.Run())
}
